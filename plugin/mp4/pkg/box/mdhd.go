package box

import (
	"encoding/binary"

	"github.com/yapingcat/gomedia/go-codec"
	"m7s.live/qtmp4/pkg/util"
)

// aligned(8) class MediaHeaderBox extends FullBox(‘mdhd’, version, 0) {
//  if (version==1) {
// 	unsigned int(64)  creation_time;
// 	unsigned int(64)  modification_time;
// 	unsigned int(32)  timescale;
// 	unsigned int(64)  duration;
//  } else { // version==0
// 	unsigned int(32)  creation_time;
// 	unsigned int(32)  modification_time;
// 	unsigned int(32)  timescale;
// 	unsigned int(32)  duration;
// }
// bit(1) pad = 0;
// unsigned int(5)[3] language; // ISO-639-2/T language code
// unsigned int(16) pre_defined = 0;
// }

type MediaHeaderBox struct {
	Timescale uint32
	Duration  uint64
	// RawLanguage is the 15 bit field; values below 0x400 are Macintosh language codes.
	RawLanguage uint16
	// Language is the packed ISO-639-2/T code, empty for Macintosh codes.
	Language string
}

func (mdhd *MediaHeaderBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeMDHD)
	if err != nil {
		return
	}
	need := util.Conditional(fullbox.Version == 1, 32, 20)
	if len(b) < need {
		return short(TypeMDHD, need, len(b))
	}
	offset := 0
	if fullbox.Version == 1 {
		mdhd.Timescale = binary.BigEndian.Uint32(b[16:])
		mdhd.Duration = binary.BigEndian.Uint64(b[20:])
		offset = 28
	} else {
		mdhd.Timescale = binary.BigEndian.Uint32(b[8:])
		mdhd.Duration = uint64(binary.BigEndian.Uint32(b[12:]))
		offset = 16
	}
	mdhd.RawLanguage = binary.BigEndian.Uint16(b[offset:]) & 0x7fff
	if mdhd.RawLanguage < 0x400 {
		return
	}
	bs := codec.NewBitStream(b[offset:])
	bs.GetBit()
	var lang [3]byte
	for i := range lang {
		lang[i] = bs.Uint8(5) + 0x60
	}
	mdhd.Language = string(lang[:])
	return
}

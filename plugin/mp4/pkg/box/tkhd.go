package box

import (
	"encoding/binary"

	"m7s.live/qtmp4/pkg/util"
)

// aligned(8) class TrackHeaderBox
// 	extends FullBox(‘tkhd’, version, flags){
// 	if (version==1) {
// 		unsigned int(64) creation_time;
// 		unsigned int(64) modification_time;
// 		unsigned int(32) track_ID;
// 		const unsigned int(32) reserved = 0;
// 		unsigned int(64) duration;
// 	} else { // version==0
// 		unsigned int(32) creation_time;
// 		unsigned int(32) modification_time;
// 		unsigned int(32) track_ID;
// 		const unsigned int(32) reserved = 0;
// 		unsigned int(32) duration;
// 	}
// 	const unsigned int(32)[2] reserved = 0;
// 	template int(16) layer = 0;
// 	template int(16) alternate_group = 0;
// 	template int(16) volume = {if track_is_audio 0x0100 else 0};
// 	const unsigned int(16) reserved = 0;
// 	template int(32)[9] matrix=
// 	{ 0x00010000,0,0,0,0x00010000,0,0,0,0x40000000 };
// 	// unity matrix
// 	unsigned int(32) width;
// 	unsigned int(32) height;
// }

const (
	TKHD_FLAG_ENABLED    uint32 = 0x000001
	TKHD_FLAG_IN_MOVIE   uint32 = 0x000002
	TKHD_FLAG_IN_PREVIEW uint32 = 0x000004
)

type TrackHeaderBox struct {
	Flags   uint32
	TrackID uint32
	// Duration is in movie time scale.
	Duration uint64
	// Width and Height are 16.16 fixed point.
	Width  uint32
	Height uint32
}

func (tkhd *TrackHeaderBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeTKHD)
	if err != nil {
		return
	}
	tkhd.Flags = fullbox.Flags
	head := util.Conditional(fullbox.Version == 1, 32, 20)
	if len(b) < head+60 {
		return short(TypeTKHD, head+60, len(b))
	}
	if fullbox.Version == 1 {
		tkhd.TrackID = binary.BigEndian.Uint32(b[16:])
		tkhd.Duration = binary.BigEndian.Uint64(b[24:])
	} else {
		tkhd.TrackID = binary.BigEndian.Uint32(b[8:])
		tkhd.Duration = uint64(binary.BigEndian.Uint32(b[16:]))
	}
	b = b[head+52:]
	tkhd.Width = binary.BigEndian.Uint32(b)
	tkhd.Height = binary.BigEndian.Uint32(b[4:])
	return
}

// DisplaySize returns the integer part of the presentation size.
func (tkhd *TrackHeaderBox) DisplaySize() (int, int) {
	return int(tkhd.Width >> 16), int(tkhd.Height >> 16)
}

package box

import (
	"encoding/binary"
)

// aligned(8) class TrackExtendsBox extends FullBox(‘trex’, 0, 0){
// 	unsigned int(32) track_ID;
// 	unsigned int(32) default_sample_description_index;
// 	unsigned int(32) default_sample_duration;
// 	unsigned int(32) default_sample_size;
// 	unsigned int(32) default_sample_flags
// }

type TrackExtendsBox struct {
	TrackID                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

func (trex *TrackExtendsBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeTREX)
	if err != nil {
		return
	}
	if len(b) < 20 {
		return short(TypeTREX, 20, len(b))
	}
	trex.TrackID = binary.BigEndian.Uint32(b)
	trex.DefaultSampleDescriptionIndex = binary.BigEndian.Uint32(b[4:])
	trex.DefaultSampleDuration = binary.BigEndian.Uint32(b[8:])
	trex.DefaultSampleSize = binary.BigEndian.Uint32(b[12:])
	trex.DefaultSampleFlags = binary.BigEndian.Uint32(b[16:])
	return
}

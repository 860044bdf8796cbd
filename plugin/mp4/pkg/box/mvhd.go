package box

import (
	"encoding/binary"

	"m7s.live/qtmp4/pkg/util"
)

// aligned(8) class MovieHeaderBox extends FullBox(‘mvhd’, version, 0) {
// 	if (version==1) {
// 		unsigned int(64) creation_time;
// 		unsigned int(64) modification_time;
// 		unsigned int(32) timescale;
// 		unsigned int(64) duration;
// 	} else { // version==0
// 		unsigned int(32) creation_time;
// 		unsigned int(32) modification_time;
// 		unsigned int(32) timescale;
// 		unsigned int(32) duration;
// 	}
// 	template int(32) rate = 0x00010000; // typically 1.0
// 	template int(16) volume = 0x0100; // typically, full volume
// 	const bit(16) reserved = 0;
// 	const unsigned int(32)[2] reserved = 0;
// 	template int(32)[9] matrix =
// 	{ 0x00010000,0,0,0,0x00010000,0,0,0,0x40000000 };
// 	// Unity matrix
// 	bit(32)[6] pre_defined = 0;
// 	unsigned int(32) next_track_ID;
// }

type MovieHeaderBox struct {
	Timescale   uint32
	Duration    uint64
	NextTrackID uint32
}

func (mvhd *MovieHeaderBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeMVHD)
	if err != nil {
		return
	}
	need := util.Conditional(fullbox.Version == 1, 28, 16)
	if len(b) < need {
		return short(TypeMVHD, need, len(b))
	}
	if fullbox.Version == 1 {
		mvhd.Timescale = binary.BigEndian.Uint32(b[16:])
		mvhd.Duration = binary.BigEndian.Uint64(b[20:])
	} else {
		mvhd.Timescale = binary.BigEndian.Uint32(b[8:])
		mvhd.Duration = uint64(binary.BigEndian.Uint32(b[12:]))
	}
	if len(b) >= need+80 {
		mvhd.NextTrackID = binary.BigEndian.Uint32(b[need+76:])
	}
	return
}

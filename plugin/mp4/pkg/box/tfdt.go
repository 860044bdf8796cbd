package box

import (
	"encoding/binary"
)

// aligned(8) class TrackFragmentBaseMediaDecodeTimeBox
// 	extends FullBox(‘tfdt’, version, 0) {
// 	if (version==1) {
// 		unsigned int(64) baseMediaDecodeTime;
// 	} else { // version==0
// 		unsigned int(32) baseMediaDecodeTime;
// 	}
// }

type TrackFragmentBaseMediaDecodeTimeBox uint64

func (tfdt *TrackFragmentBaseMediaDecodeTimeBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeTFDT)
	if err != nil {
		return
	}
	if fullbox.Version == 1 {
		if len(b) < 8 {
			return short(TypeTFDT, 8, len(b))
		}
		*tfdt = TrackFragmentBaseMediaDecodeTimeBox(binary.BigEndian.Uint64(b))
		return
	}
	if len(b) < 4 {
		return short(TypeTFDT, 4, len(b))
	}
	*tfdt = TrackFragmentBaseMediaDecodeTimeBox(binary.BigEndian.Uint32(b))
	return
}

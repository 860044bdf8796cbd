package box

import (
	"encoding/binary"
)

// aligned(8) class CompositionOffsetBox
// extends FullBox(‘ctts’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 		int i;
// 	if (version==0) {
// 		for (i=0; i < entry_count; i++) {
// 			unsigned int(32) sample_count;
// 			unsigned int(32) sample_offset;
// 		}
// 	}
// 	else if (version == 1) {
// 		for (i=0; i < entry_count; i++) {
// 			unsigned int(32) sample_count;
// 			signed int(32) sample_offset;
// 		}
// 	}
// }

type CTTSEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

type CompositionOffsetBox []CTTSEntry

// Decode reads both versions as signed offsets; version 0 writers are known
// to store negative values as well.
func (ctts *CompositionOffsetBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeCTTS)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeCTTS, 4, len(b))
	}
	n, err := checkCount(TypeCTTS, binary.BigEndian.Uint32(b), len(b)-4, 8)
	b = b[4:]
	entries := make(CompositionOffsetBox, n)
	for i := range entries {
		entries[i].SampleCount = binary.BigEndian.Uint32(b[8*i:])
		entries[i].SampleOffset = int32(binary.BigEndian.Uint32(b[8*i+4:]))
	}
	*ctts = entries
	return
}

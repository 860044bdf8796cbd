package box

import (
	"encoding/binary"
)

// aligned(8) class SampleToChunkBox
// 	extends FullBox(‘stsc’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		unsigned int(32) first_chunk;
// 		unsigned int(32) samples_per_chunk;
// 		unsigned int(32) sample_description_index;
// 	}
// }

type STSCEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

type SampleToChunkBox []STSCEntry

func (stsc *SampleToChunkBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTSC)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeSTSC, 4, len(b))
	}
	n, err := checkCount(TypeSTSC, binary.BigEndian.Uint32(b), len(b)-4, 12)
	b = b[4:]
	entries := make(SampleToChunkBox, n)
	for i := range entries {
		entries[i].FirstChunk = binary.BigEndian.Uint32(b[12*i:])
		entries[i].SamplesPerChunk = binary.BigEndian.Uint32(b[12*i+4:])
		entries[i].SampleDescriptionIndex = binary.BigEndian.Uint32(b[12*i+8:])
	}
	*stsc = entries
	return
}

package box

import (
	"encoding/binary"
)

// aligned(8) class ChunkOffsetBox
// 	extends FullBox(‘stco’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		unsigned int(32) chunk_offset;
// 	}
// }

// aligned(8) class ChunkLargeOffsetBox
// 	extends FullBox(‘co64’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		unsigned int(64) chunk_offset;
// 	}
// }

type ChunkOffsetBox []uint64

func (stco *ChunkOffsetBox) Decode(b []byte, large bool) (err error) {
	t, width := TypeSTCO, 4
	if large {
		t, width = TypeCO64, 8
	}
	_, b, err = DecodeFullBox(b, t)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(t, 4, len(b))
	}
	n, err := checkCount(t, binary.BigEndian.Uint32(b), len(b)-4, width)
	b = b[4:]
	offsets := make(ChunkOffsetBox, n)
	for i := range offsets {
		if large {
			offsets[i] = binary.BigEndian.Uint64(b[8*i:])
		} else {
			offsets[i] = uint64(binary.BigEndian.Uint32(b[4*i:]))
		}
	}
	*stco = offsets
	return
}

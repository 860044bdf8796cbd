package box

import (
	"encoding/binary"
)

// aligned(8) class SyncSampleBox
// 	extends FullBox(‘stss’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 	int i;
// 	for (i=0; i < entry_count; i++) {
// 		unsigned int(32) sample_number;
// 	}
// }

type SyncSampleBox []uint32

func (stss *SyncSampleBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTSS)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeSTSS, 4, len(b))
	}
	n, err := checkCount(TypeSTSS, binary.BigEndian.Uint32(b), len(b)-4, 4)
	b = b[4:]
	numbers := make(SyncSampleBox, n)
	for i := range numbers {
		numbers[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	*stss = numbers
	return
}

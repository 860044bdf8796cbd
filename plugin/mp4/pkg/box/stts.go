package box

import (
	"encoding/binary"
)

// aligned(8) class TimeToSampleBox
// 	extends FullBox(’stts’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 		int i;
// 	for (i=0; i < entry_count; i++) {
// 		unsigned int(32) sample_count;
// 		unsigned int(32) sample_delta;
// 	}
// }

type STTSEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

type TimeToSampleBox []STTSEntry

func (stts *TimeToSampleBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTTS)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeSTTS, 4, len(b))
	}
	n, err := checkCount(TypeSTTS, binary.BigEndian.Uint32(b), len(b)-4, 8)
	b = b[4:]
	entries := make(TimeToSampleBox, n)
	for i := range entries {
		entries[i].SampleCount = binary.BigEndian.Uint32(b[8*i:])
		entries[i].SampleDelta = binary.BigEndian.Uint32(b[8*i+4:])
	}
	*stts = entries
	return
}

// SampleTotal is the number of samples the table covers.
func (stts TimeToSampleBox) SampleTotal() (n uint64) {
	for _, e := range stts {
		n += uint64(e.SampleCount)
	}
	return
}

package box

import (
	"encoding/binary"
)

// aligned(8) class SampleSizeBox extends FullBox(‘stsz’, version = 0, 0) {
// 		unsigned int(32) sample_size;
// 		unsigned int(32) sample_count;
// 		if (sample_size==0) {
// 		for (i=1; i <= sample_count; i++) {
// 		unsigned int(32) entry_size;
// 		}
// 	}
// }

// aligned(8) class CompactSampleSizeBox extends FullBox(‘stz2’, version = 0, 0) {
// 		unsigned int(24) reserved = 0;
// 		unsigned int(8) field_size;
// 		unsigned int(32) sample_count;
// 		for (i=1; i <= sample_count; i++) {
// 		unsigned int(field_size) entry_size;
// 		}
// }

type SampleSizeBox struct {
	SampleSize    uint32
	SampleCount   uint32
	EntrySizelist []uint32
}

func (stsz *SampleSizeBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTSZ)
	if err != nil {
		return
	}
	if len(b) < 8 {
		return short(TypeSTSZ, 8, len(b))
	}
	stsz.SampleSize = binary.BigEndian.Uint32(b)
	stsz.SampleCount = binary.BigEndian.Uint32(b[4:])
	if stsz.SampleSize != 0 {
		return
	}
	n, err := checkCount(TypeSTSZ, stsz.SampleCount, len(b)-8, 4)
	stsz.EntrySizelist = make([]uint32, n)
	for i := range stsz.EntrySizelist {
		stsz.EntrySizelist[i] = binary.BigEndian.Uint32(b[8+4*i:])
	}
	stsz.SampleCount = uint32(n)
	return
}

// DecodeCompact reads the stz2 variant into the same table.
func (stsz *SampleSizeBox) DecodeCompact(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTZ2)
	if err != nil {
		return
	}
	if len(b) < 8 {
		return short(TypeSTZ2, 8, len(b))
	}
	fieldSize := int(b[3])
	count := binary.BigEndian.Uint32(b[4:])
	b = b[8:]
	var n int
	switch fieldSize {
	case 4:
		// two entries per byte, a trailing nibble may be padding
		n, err = checkCount(TypeSTZ2, (count+1)/2, len(b), 1)
		n = min(n*2, int(count))
	case 8, 16:
		n, err = checkCount(TypeSTZ2, count, len(b), fieldSize/8)
	default:
		return short(TypeSTZ2, fieldSize, 0)
	}
	stsz.SampleSize = 0
	stsz.EntrySizelist = make([]uint32, n)
	for i := range stsz.EntrySizelist {
		switch fieldSize {
		case 4:
			if i%2 == 0 {
				stsz.EntrySizelist[i] = uint32(b[i/2] >> 4)
			} else {
				stsz.EntrySizelist[i] = uint32(b[i/2] & 0x0f)
			}
		case 8:
			stsz.EntrySizelist[i] = uint32(b[i])
		case 16:
			stsz.EntrySizelist[i] = uint32(binary.BigEndian.Uint16(b[2*i:]))
		}
	}
	stsz.SampleCount = uint32(n)
	return
}

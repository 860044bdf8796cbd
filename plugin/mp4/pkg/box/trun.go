package box

import (
	"encoding/binary"
	"fmt"

	"m7s.live/qtmp4/pkg"
)

// aligned(8) class TrackRunBox extends FullBox(‘trun’, version, tr_flags) {
//      unsigned int(32) sample_count;
//      // the following are optional fields
//      signed int(32) data_offset;
//       unsigned int(32) first_sample_flags;
//      // all fields in the following array are optional
//      {
//          unsigned int(32) sample_duration;
//          unsigned int(32) sample_size;
//          unsigned int(32) sample_flags
//          if (version == 0)
//          {
//              unsigned int(32) sample_composition_time_offset;
//          }
//          else
//          {
//              signed int(32) sample_composition_time_offset;
//          }
//      }[ sample_count ]
// }

const (
	TR_FLAG_DATA_OFFSET                  uint32 = 0x000001
	TR_FLAG_DATA_FIRST_SAMPLE_FLAGS      uint32 = 0x000004
	TR_FLAG_DATA_SAMPLE_DURATION         uint32 = 0x000100
	TR_FLAG_DATA_SAMPLE_SIZE             uint32 = 0x000200
	TR_FLAG_DATA_SAMPLE_FLAGS            uint32 = 0x000400
	TR_FLAG_DATA_SAMPLE_COMPOSITION_TIME uint32 = 0x000800
)

// TrunEntry holds the per-sample fields; a field is only meaningful when its
// flag is set on the run.
const maxImplicitSamples = 1 << 24

type TrunEntry struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int32
}

type TrackRunBox struct {
	Flags            uint32
	SampleCount      uint32
	DataOffset       *int32
	FirstSampleFlags *uint32
	Entries          []TrunEntry
}

func (trun *TrackRunBox) Has(flag uint32) bool {
	return trun.Flags&flag != 0
}

func (trun *TrackRunBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeTRUN)
	if err != nil {
		return
	}
	trun.Flags = fullbox.Flags
	need := 4
	if trun.Has(TR_FLAG_DATA_OFFSET) {
		need += 4
	}
	if trun.Has(TR_FLAG_DATA_FIRST_SAMPLE_FLAGS) {
		need += 4
	}
	if len(b) < need {
		return short(TypeTRUN, need, len(b))
	}
	trun.SampleCount = binary.BigEndian.Uint32(b)
	n := 4
	if trun.Has(TR_FLAG_DATA_OFFSET) {
		v := int32(binary.BigEndian.Uint32(b[n:]))
		trun.DataOffset = &v
		n += 4
	}
	if trun.Has(TR_FLAG_DATA_FIRST_SAMPLE_FLAGS) {
		v := binary.BigEndian.Uint32(b[n:])
		trun.FirstSampleFlags = &v
		n += 4
	}
	entrySize := 0
	for _, flag := range [...]uint32{TR_FLAG_DATA_SAMPLE_DURATION, TR_FLAG_DATA_SAMPLE_SIZE, TR_FLAG_DATA_SAMPLE_FLAGS, TR_FLAG_DATA_SAMPLE_COMPOSITION_TIME} {
		if trun.Has(flag) {
			entrySize += 4
		}
	}
	count := int(trun.SampleCount)
	if entrySize == 0 && trun.SampleCount > maxImplicitSamples {
		return fmt.Errorf("%w: trun declares %d samples without per-sample fields", pkg.ErrMalformedAtom, trun.SampleCount)
	}
	if entrySize > 0 {
		count, err = checkCount(TypeTRUN, trun.SampleCount, len(b)-n, entrySize)
	}
	trun.Entries = make([]TrunEntry, count)
	for i := range trun.Entries {
		e := &trun.Entries[i]
		if trun.Has(TR_FLAG_DATA_SAMPLE_DURATION) {
			e.Duration = binary.BigEndian.Uint32(b[n:])
			n += 4
		}
		if trun.Has(TR_FLAG_DATA_SAMPLE_SIZE) {
			e.Size = binary.BigEndian.Uint32(b[n:])
			n += 4
		}
		if trun.Has(TR_FLAG_DATA_SAMPLE_FLAGS) {
			e.Flags = binary.BigEndian.Uint32(b[n:])
			n += 4
		}
		if trun.Has(TR_FLAG_DATA_SAMPLE_COMPOSITION_TIME) {
			// version 0 is unsigned, but offsets beyond 2^31 do not occur in practice
			e.CompositionTimeOffset = int32(binary.BigEndian.Uint32(b[n:]))
			n += 4
		}
	}
	trun.SampleCount = uint32(count)
	return
}

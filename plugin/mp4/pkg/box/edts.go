package box

import (
	"encoding/binary"
)

// aligned(8) class EditListBox extends FullBox(‘elst’, version, 0) {
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		  if (version==1) {
// 			 unsigned int(64) segment_duration;
// 			 int(64) media_time;
// 		  } else { // version==0
// 			 unsigned int(32) segment_duration;
// 			 int(32)  media_time;
// 		  }
// 		  int(16) media_rate_integer;
// 		  int(16) media_rate_fraction = 0;
// 	}
// }

type ELSTEntry struct {
	SegmentDuration   uint64
	MediaTime         int64
	MediaRateInteger  int16
	MediaRateFraction int16
}

// Empty reports a presentation gap.
func (e ELSTEntry) Empty() bool {
	return e.MediaTime < 0
}

// Dwell reports a segment that holds a single media instant.
func (e ELSTEntry) Dwell() bool {
	return e.MediaTime >= 0 && e.MediaRateInteger == 0 && e.MediaRateFraction == 0
}

type EditListBox []ELSTEntry

func (elst *EditListBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeELST)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeELST, 4, len(b))
	}
	entrySize := 12
	if fullbox.Version == 1 {
		entrySize = 20
	}
	n, err := checkCount(TypeELST, binary.BigEndian.Uint32(b), len(b)-4, entrySize)
	b = b[4:]
	entries := make(EditListBox, n)
	for i := range entries {
		e := b[entrySize*i:]
		if fullbox.Version == 1 {
			entries[i].SegmentDuration = binary.BigEndian.Uint64(e)
			entries[i].MediaTime = int64(binary.BigEndian.Uint64(e[8:]))
			e = e[16:]
		} else {
			entries[i].SegmentDuration = uint64(binary.BigEndian.Uint32(e))
			entries[i].MediaTime = int64(int32(binary.BigEndian.Uint32(e[4:])))
			e = e[8:]
		}
		entries[i].MediaRateInteger = int16(binary.BigEndian.Uint16(e))
		entries[i].MediaRateFraction = int16(binary.BigEndian.Uint16(e[2:]))
	}
	*elst = entries
	return
}

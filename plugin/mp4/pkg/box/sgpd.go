package box

import (
	"encoding/binary"
)

// aligned(8) class SampleGroupDescriptionBox (unsigned int(32) handler_type)
// 	extends FullBox('sgpd', version, 0){
// 	unsigned int(32) grouping_type;
// 	if (version==1) { unsigned int(32) default_length; }
// 	if (version>=2) { unsigned int(32) default_sample_description_index; }
// 	unsigned int(32) entry_count;
// 	int i;
// 	for (i = 1 ; i <= entry_count ; i++){
// 		if (version==1) {
// 			if (default_length==0) {
// 				unsigned int(32) description_length;
// 			}
// 		}
// 		SampleGroupEntry (grouping_type);
// 	}
// }

// SgpdBox keeps the raw group entries; only the entry count matters for
// random access point groups.
type SgpdBox struct {
	Version       byte
	GroupingType  [4]byte
	DefaultLength uint32
	Entries       [][]byte
}

func (sgpd *SgpdBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeSGPD)
	if err != nil {
		return
	}
	sgpd.Version = fullbox.Version
	need := 8
	if fullbox.Version == 1 || fullbox.Version >= 2 {
		need += 4
	}
	if len(b) < need {
		return short(TypeSGPD, need, len(b))
	}
	copy(sgpd.GroupingType[:], b)
	b = b[4:]
	if fullbox.Version == 1 {
		sgpd.DefaultLength = binary.BigEndian.Uint32(b)
		b = b[4:]
	} else if fullbox.Version >= 2 {
		b = b[4:]
	}
	count := binary.BigEndian.Uint32(b)
	b = b[4:]
	for i := uint32(0); i < count; i++ {
		length := sgpd.DefaultLength
		if fullbox.Version == 1 && length == 0 {
			if len(b) < 4 {
				break
			}
			length = binary.BigEndian.Uint32(b)
			b = b[4:]
		}
		if fullbox.Version == 0 {
			// version 0 carries no length; a random access entry is one byte
			length = 1
		}
		if uint64(length) > uint64(len(b)) {
			break
		}
		sgpd.Entries = append(sgpd.Entries, b[:length])
		b = b[length:]
	}
	if uint32(len(sgpd.Entries)) != count {
		return &TableLengthError{Box: TypeSGPD, Declared: count, Actual: uint32(len(sgpd.Entries))}
	}
	return
}

// aligned(8) class SampleToGroupBox
// 	extends FullBox(‘sbgp’, version, 0) {
// 	unsigned int(32) grouping_type;
// 	if (version == 1) {
// 		unsigned int(32) grouping_type_parameter;
// 	}
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		unsigned int(32) sample_count;
// 		unsigned int(32) group_description_index;
// 	}
// }

type SBGPEntry struct {
	SampleCount           uint32
	GroupDescriptionIndex uint32
}

type SbgpBox struct {
	GroupingType [4]byte
	Entries      []SBGPEntry
}

func (sbgp *SbgpBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeSBGP)
	if err != nil {
		return
	}
	need := 8
	if fullbox.Version == 1 {
		need += 4
	}
	if len(b) < need {
		return short(TypeSBGP, need, len(b))
	}
	copy(sbgp.GroupingType[:], b)
	b = b[need-4:]
	n, err := checkCount(TypeSBGP, binary.BigEndian.Uint32(b), len(b)-4, 8)
	b = b[4:]
	sbgp.Entries = make([]SBGPEntry, n)
	for i := range sbgp.Entries {
		sbgp.Entries[i].SampleCount = binary.BigEndian.Uint32(b[8*i:])
		sbgp.Entries[i].GroupDescriptionIndex = binary.BigEndian.Uint32(b[8*i+4:])
	}
	return
}

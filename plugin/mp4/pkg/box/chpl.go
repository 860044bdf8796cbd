package box

import (
	"encoding/binary"
	"fmt"

	"m7s.live/qtmp4/pkg"
)

// Nero chapter list, found in moov/udta.
//
//	aligned(8) class ChapterListBox extends FullBox(‘chpl’, version, 0) {
//		unsigned int(32) reserved;
//		unsigned int(8) chapter_count;
//		for (i=1; i <= chapter_count; i++) {
//			unsigned int(64) start_time; // 100 ns units
//			unsigned int(8) title_length;
//			char title[title_length];
//		}
//	}

type ChapterListEntry struct {
	// Start is in 100 ns units.
	Start uint64
	Title []byte
}

type ChapterListBox []ChapterListEntry

func (chpl *ChapterListBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeCHPL)
	if err != nil {
		return
	}
	if len(b) < 5 {
		return short(TypeCHPL, 5, len(b))
	}
	count := uint32(b[4])
	b = b[5:]
	entries := make(ChapterListBox, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 9 || len(b) < 9+int(b[8]) {
			*chpl = entries
			return &TableLengthError{Box: TypeCHPL, Declared: count, Actual: i}
		}
		n := int(b[8])
		entries = append(entries, ChapterListEntry{
			Start: binary.BigEndian.Uint64(b),
			Title: b[9 : 9+n],
		})
		b = b[9+n:]
	}
	*chpl = entries
	return
}

// iTunes style metadata item payload, found as 'data' inside every ilst item.
//
//	aligned(8) class DataBox extends Box(‘data’) {
//		unsigned int(32) type_indicator; // well-known type
//		unsigned int(32) locale;
//		unsigned int(8) value[];
//	}

const (
	DataTypeImplicit = 0
	DataTypeUTF8     = 1
	DataTypeUTF16    = 2
	DataTypeJPEG     = 13
	DataTypePNG      = 14
	DataTypeInteger  = 21
)

type DataBox struct {
	TypeIndicator uint32
	Locale        uint32
	Value         []byte
}

func (data *DataBox) Decode(b []byte) error {
	if len(b) < 8 {
		return short(TypeDATA, 8, len(b))
	}
	data.TypeIndicator = binary.BigEndian.Uint32(b) & 0x00ffffff
	data.Locale = binary.BigEndian.Uint32(b[4:])
	data.Value = b[8:]
	return nil
}

// DecodeString reads the full box string of 'mean' and 'name' atoms.
func DecodeString(b []byte, t [4]byte) (string, error) {
	_, b, err := DecodeFullBox(b, t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// aligned(8) class TrackReferenceTypeBox (unsigned int(32) reference_type) extends Box(reference_type) {
// 	unsigned int(32) track_IDs[];
// }

type TrackReference struct {
	Type     [4]byte
	TrackIDs []uint32
}

// DecodeTrackReferences reads every reference type box inside 'tref'.
func DecodeTrackReferences(b []byte) (refs []TrackReference, err error) {
	for _, ext := range ParseExtensions(b) {
		if len(ext.Data)%4 != 0 {
			err = fmt.Errorf("%w: tref/%s payload of %d bytes", pkg.ErrMalformedAtom, TypeName(ext.Type), len(ext.Data))
		}
		ref := TrackReference{Type: ext.Type, TrackIDs: make([]uint32, len(ext.Data)/4)}
		for i := range ref.TrackIDs {
			ref.TrackIDs[i] = binary.BigEndian.Uint32(ext.Data[4*i:])
		}
		refs = append(refs, ref)
	}
	return
}

package box

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// aligned(8) class SampleDescriptionBox (unsigned int(32) handler_type)
// 	extends FullBox('stsd', 0, 0){
// 	int i ;
// 	unsigned int(32) entry_count;
// 	for (i = 1 ; i <= entry_count ; i++){
// 		SampleEntry(); // an instance of a class derived from SampleEntry
// 	}
// }

// aligned(8) abstract class SampleEntry (unsigned int(32) format) extends Box(format){
// 	const unsigned int(8)[6] reserved = 0;
// 	unsigned int(16) data_reference_index;
// 	}

// SampleDescriptionBox keeps every entry header but only the first entry is
// interpreted by the reader.
type SampleDescriptionBox struct {
	EntryCount uint32
	Entries    []*SampleEntry
}

type SampleEntry struct {
	Format             [4]byte
	DataReferenceIndex uint16
	// Body is everything after the common 8 byte prefix.
	Body       []byte
	Audio      *AudioSampleEntry
	Visual     *VisualSampleEntry
	Extensions []Extension
}

// Extension is a child atom of a sample entry, e.g. esds, avcC or colr.
// Children of a QuickTime 'wave' atom are flattened into the same list.
type Extension struct {
	Type [4]byte
	Data []byte
}

func (stsd *SampleDescriptionBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeSTSD)
	if err != nil {
		return
	}
	if len(b) < 4 {
		return short(TypeSTSD, 4, len(b))
	}
	stsd.EntryCount = binary.BigEndian.Uint32(b)
	r := bytes.NewReader(b)
	for pos := int64(4); uint32(len(stsd.Entries)) < stsd.EntryCount; {
		atom, err := ReadAtom(r, pos, r.Size())
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		payload := b[atom.PayloadOffset():atom.End()]
		if len(payload) < 8 {
			return short(atom.Type, 8, len(payload))
		}
		stsd.Entries = append(stsd.Entries, &SampleEntry{
			Format:             atom.Type,
			DataReferenceIndex: binary.BigEndian.Uint16(payload[6:]),
			Body:               payload[8:],
		})
		pos = atom.End()
	}
	if uint32(len(stsd.Entries)) != stsd.EntryCount {
		return &TableLengthError{Box: TypeSTSD, Declared: stsd.EntryCount, Actual: uint32(len(stsd.Entries))}
	}
	return
}

// class AudioSampleEntry(codingname) extends SampleEntry (codingname){
//  const unsigned int(32)[2] reserved = 0;
// 	template unsigned int(16) channelcount = 2;
// 	template unsigned int(16) samplesize = 16;
// 	unsigned int(16) pre_defined = 0;
// 	const unsigned int(16) reserved = 0 ;
// 	template unsigned int(32) samplerate = { default samplerate of media}<<16;
// }

// AudioSampleEntry covers the QuickTime sound description versions 0, 1 and 2.
type AudioSampleEntry struct {
	Version       uint16 // ffmpeg mov.c mov_parse_stsd_audio
	ChannelCount  uint32
	SampleSize    uint16
	CompressionID int16
	SampleRate    float64
	// version 1
	SamplesPerPacket uint32
	BytesPerPacket   uint32
	BytesPerFrame    uint32
	BytesPerSample   uint32
	// version 2
	ConstBitsPerChannel uint32
	FormatSpecificFlags uint32
}

func (entry *SampleEntry) DecodeAudio() error {
	b := entry.Body
	if len(b) < 20 {
		return short(entry.Format, 28, len(b)+8)
	}
	a := &AudioSampleEntry{
		Version:       binary.BigEndian.Uint16(b),
		ChannelCount:  uint32(binary.BigEndian.Uint16(b[8:])),
		SampleSize:    binary.BigEndian.Uint16(b[10:]),
		CompressionID: int16(binary.BigEndian.Uint16(b[12:])),
		SampleRate:    float64(binary.BigEndian.Uint32(b[16:])) / 65536,
	}
	offset := 20
	switch a.Version {
	case 1:
		if len(b) < offset+16 {
			return short(entry.Format, offset+24, len(b)+8)
		}
		a.SamplesPerPacket = binary.BigEndian.Uint32(b[offset:])
		a.BytesPerPacket = binary.BigEndian.Uint32(b[offset+4:])
		a.BytesPerFrame = binary.BigEndian.Uint32(b[offset+8:])
		a.BytesPerSample = binary.BigEndian.Uint32(b[offset+12:])
		offset += 16
	case 2:
		if len(b) < offset+36 {
			return short(entry.Format, offset+44, len(b)+8)
		}
		a.SampleRate = math.Float64frombits(binary.BigEndian.Uint64(b[offset+4:]))
		a.ChannelCount = binary.BigEndian.Uint32(b[offset+12:])
		a.ConstBitsPerChannel = binary.BigEndian.Uint32(b[offset+20:])
		a.FormatSpecificFlags = binary.BigEndian.Uint32(b[offset+24:])
		a.BytesPerFrame = binary.BigEndian.Uint32(b[offset+28:])
		a.SamplesPerPacket = binary.BigEndian.Uint32(b[offset+32:])
		if a.ConstBitsPerChannel != 0 {
			a.SampleSize = uint16(a.ConstBitsPerChannel)
		}
		offset += 36
	}
	entry.Audio = a
	entry.Extensions = ParseExtensions(b[offset:])
	return nil
}

// class VisualSampleEntry(codingname) extends SampleEntry (codingname){
// 	unsigned int(16) pre_defined = 0;
// 	const unsigned int(16) reserved = 0;
// 	unsigned int(32)[3] pre_defined = 0;
// 	unsigned int(16) width;
// 	unsigned int(16) height;
// 	template unsigned int(32) horizresolution = 0x00480000; // 72 dpi
// 	template unsigned int(32) vertresolution = 0x00480000; // 72 dpi
// 	const unsigned int(32) reserved = 0;
// 	template unsigned int(16) frame_count = 1;
// 	string[32] compressorname;
// 	template unsigned int(16) depth = 0x0018;
// 	int(16) pre_defined = -1;
// 	// other boxes from derived specifications
// 	CleanApertureBox clap; // optional
// 	PixelAspectRatioBox pasp; // optional
// }

type VisualSampleEntry struct {
	Width          uint16
	Height         uint16
	FrameCount     uint16
	CompressorName string
	Depth          uint16
}

func (entry *SampleEntry) DecodeVisual() error {
	b := entry.Body
	if len(b) < 70 {
		return short(entry.Format, 78, len(b)+8)
	}
	v := &VisualSampleEntry{
		Width:      binary.BigEndian.Uint16(b[16:]),
		Height:     binary.BigEndian.Uint16(b[18:]),
		FrameCount: binary.BigEndian.Uint16(b[32:]),
		Depth:      binary.BigEndian.Uint16(b[66:]),
	}
	if n := int(b[34]); n > 0 && n < 32 {
		v.CompressorName = string(b[35 : 35+n])
	}
	entry.Visual = v
	entry.Extensions = ParseExtensions(b[70:])
	return nil
}

// DecodeGeneric reads entries without fixed fields, e.g. mp4s.
func (entry *SampleEntry) DecodeGeneric() {
	entry.Extensions = ParseExtensions(entry.Body)
}

// Extension returns the first child atom of the given type.
func (entry *SampleEntry) Extension(t [4]byte) []byte {
	for _, ext := range entry.Extensions {
		if ext.Type == t {
			return ext.Data
		}
	}
	return nil
}

// ParseExtensions splits b into child atoms and stops at the first one that
// does not fit.
func ParseExtensions(b []byte) (exts []Extension) {
	r := bytes.NewReader(b)
	for pos := int64(0); ; {
		atom, err := ReadAtom(r, pos, r.Size())
		if err != nil {
			return
		}
		data := b[atom.PayloadOffset():atom.End()]
		exts = append(exts, Extension{Type: atom.Type, Data: data})
		if atom.Type == TypeWAVE {
			exts = append(exts, ParseExtensions(data)...)
		}
		pos = atom.End()
	}
}

// ColourInformation is the 'colr' extension of a visual sample entry.
type ColourInformation struct {
	ColourType              [4]byte
	ColourPrimaries         uint16
	TransferCharacteristics uint16
	MatrixCoefficients      uint16
	FullRange               bool
}

//	aligned(8) class ColourInformationBox extends Box(‘colr’){
//		unsigned int(32) colour_type;
//		if (colour_type == ‘nclx’) {
//			unsigned int(16) colour_primaries;
//			unsigned int(16) transfer_characteristics;
//			unsigned int(16) matrix_coefficients;
//			unsigned int(1) full_range_flag;
//			unsigned int(7) reserved = 0;
//		}
//	}
func (colr *ColourInformation) Decode(b []byte) error {
	if len(b) < 4 {
		return short(TypeCOLR, 4, len(b))
	}
	copy(colr.ColourType[:], b)
	switch string(colr.ColourType[:]) {
	case "nclc", "nclx":
		if len(b) < 10 {
			return short(TypeCOLR, 10, len(b))
		}
		colr.ColourPrimaries = binary.BigEndian.Uint16(b[4:])
		colr.TransferCharacteristics = binary.BigEndian.Uint16(b[6:])
		colr.MatrixCoefficients = binary.BigEndian.Uint16(b[8:])
		if colr.ColourType[3] == 'x' && len(b) > 10 {
			colr.FullRange = b[10]&0x80 != 0
		}
		return nil
	}
	// 'prof' and 'rICC' carry an ICC profile which is not interpreted
	return nil
}

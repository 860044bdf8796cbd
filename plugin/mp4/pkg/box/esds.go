package box

import (
	"fmt"

	"github.com/yapingcat/gomedia/go-codec"
	"m7s.live/qtmp4/pkg"
)

// abstract aligned(8) expandable(228-1) class BaseDescriptor : bit(8) tag=0 {
// 	// empty. To be filled by classes extending this class.
// }

//  int sizeOfInstance = 0;
// 	bit(1) nextByte;
// 	bit(7) sizeOfInstance;
// 	while(nextByte) {
// 		bit(1) nextByte;
// 		bit(7) sizeByte;
// 		sizeOfInstance = sizeOfInstance<<7 | sizeByte;
// }

const (
	ES_DescrTag           uint8 = 0x03
	DecoderConfigDescrTag uint8 = 0x04
	DecSpecificInfoTag    uint8 = 0x05
	SLConfigDescrTag      uint8 = 0x06

	maxDescriptorDepth = 8
)

// Descriptor is one node of the esds descriptor tree.
type Descriptor interface {
	Tag() uint8
}

//	class ES_Descriptor extends BaseDescriptor : bit(8) tag=ES_DescrTag {
//		bit(16) ES_ID;
//		bit(1) streamDependenceFlag;
//		bit(1) URL_Flag;
//		bit(1) OCRstreamFlag;
//		bit(5) streamPriority;
//		if (streamDependenceFlag)
//			bit(16) dependsOn_ES_ID;
//		if (URL_Flag) {
//			bit(8) URLlength;
//			bit(8) URLstring[URLlength];
//		}
//		if (OCRstreamFlag)
//			bit(16) OCR_ES_Id;
//		DecoderConfigDescriptor decConfigDescr;
//		SLConfigDescriptor slConfigDescr;
//		...
//	}
type ESDescriptor struct {
	ESID           uint16
	DependsOnESID  *uint16
	URL            string
	OCRESID        *uint16
	StreamPriority uint8
	Children       []Descriptor
}

//	class DecoderConfigDescriptor extends BaseDescriptor : bit(8) tag=DecoderConfigDescrTag {
//		bit(8) objectTypeIndication;
//		bit(6) streamType;
//		bit(1) upStream;
//		const bit(1) reserved=1;
//		bit(24) bufferSizeDB;
//		bit(32) maxBitrate;
//		bit(32) avgBitrate;
//		DecoderSpecificInfo decSpecificInfo[0 .. 1];
//		profileLevelIndicationIndexDescriptor profileLevelIndicationIndexDescr [0..255];
//	}
type DecoderConfigDescriptor struct {
	ObjectTypeIndication uint8
	StreamType           uint8
	UpStream             bool
	BufferSizeDB         uint32
	MaxBitrate           uint32
	AvgBitrate           uint32
	Children             []Descriptor
}

type DecoderSpecificInfo []byte

type SLConfigDescriptor struct {
	Predefined uint8
}

type UnknownDescriptor struct {
	tag  uint8
	Data []byte
}

func (*ESDescriptor) Tag() uint8            { return ES_DescrTag }
func (*DecoderConfigDescriptor) Tag() uint8 { return DecoderConfigDescrTag }
func (DecoderSpecificInfo) Tag() uint8      { return DecSpecificInfoTag }
func (*SLConfigDescriptor) Tag() uint8      { return SLConfigDescrTag }
func (d *UnknownDescriptor) Tag() uint8     { return d.tag }

// ParseDescriptors decodes a sequence of sibling descriptors. A trailing
// byte too short for a descriptor header is padding. On error the
// descriptors decoded so far are returned with it.
func ParseDescriptors(b []byte) ([]Descriptor, error) {
	return parseDescriptors(b, 0)
}

func parseDescriptors(b []byte, depth int) (list []Descriptor, err error) {
	if depth > maxDescriptorDepth {
		return nil, fmt.Errorf("%w: esds descriptors nested deeper than %d", pkg.ErrMalformedAtom, maxDescriptorDepth)
	}
	for len(b) >= 2 {
		var d Descriptor
		d, b, err = parseDescriptor(b, depth)
		if d != nil {
			list = append(list, d)
		}
		if err != nil {
			return
		}
	}
	return
}

func parseDescriptor(b []byte, depth int) (d Descriptor, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("%w: truncated descriptor header", pkg.ErrMalformedAtom)
	}
	bs := codec.NewBitStream(b)
	tag := bs.Uint8(8)
	var size uint32
	headerLen := 1
	for i := 0; ; i++ {
		if i == 4 || headerLen >= len(b) {
			return nil, nil, fmt.Errorf("%w: descriptor 0x%02x has an invalid size field", pkg.ErrMalformedAtom, tag)
		}
		nextByte := bs.GetBit()
		size = size<<7 | bs.Uint32(7)
		headerLen++
		if nextByte == 0 {
			break
		}
	}
	if uint64(size) > uint64(len(b)-headerLen) {
		return nil, nil, fmt.Errorf("%w: descriptor 0x%02x size %d exceeds remaining %d bytes", pkg.ErrMalformedAtom, tag, size, len(b)-headerLen)
	}
	body, rest := b[headerLen:headerLen+int(size)], b[headerLen+int(size):]
	switch tag {
	case ES_DescrTag:
		var es *ESDescriptor
		if es, err = parseESDescriptor(body, depth); es != nil {
			d = es
		}
	case DecoderConfigDescrTag:
		var dc *DecoderConfigDescriptor
		if dc, err = parseDecoderConfig(body, depth); dc != nil {
			d = dc
		}
	case DecSpecificInfoTag:
		d = DecoderSpecificInfo(body)
	case SLConfigDescrTag:
		sl := &SLConfigDescriptor{}
		if len(body) > 0 {
			sl.Predefined = body[0]
		}
		d = sl
	default:
		d = &UnknownDescriptor{tag: tag, Data: body}
	}
	return
}

func parseESDescriptor(b []byte, depth int) (*ESDescriptor, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("%w: ES_Descriptor needs 3 bytes, has %d", pkg.ErrMalformedAtom, len(b))
	}
	es := &ESDescriptor{}
	bs := codec.NewBitStream(b)
	es.ESID = bs.Uint16(16)
	streamDependenceFlag := bs.GetBit()
	urlFlag := bs.GetBit()
	ocrStreamFlag := bs.GetBit()
	es.StreamPriority = bs.Uint8(5)
	need := 3
	if streamDependenceFlag == 1 {
		need += 2
	}
	if urlFlag == 1 && len(b) > need {
		need += 1 + int(b[need])
	}
	if ocrStreamFlag == 1 {
		need += 2
	}
	if len(b) < need {
		return nil, fmt.Errorf("%w: ES_Descriptor needs %d bytes, has %d", pkg.ErrMalformedAtom, need, len(b))
	}
	if streamDependenceFlag == 1 {
		v := bs.Uint16(16)
		es.DependsOnESID = &v
	}
	if urlFlag == 1 {
		es.URL = string(bs.GetBytes(int(bs.Uint8(8))))
	}
	if ocrStreamFlag == 1 {
		v := bs.Uint16(16)
		es.OCRESID = &v
	}
	var err error
	es.Children, err = parseDescriptors(b[need:], depth+1)
	return es, err
}

func parseDecoderConfig(b []byte, depth int) (*DecoderConfigDescriptor, error) {
	if len(b) < 13 {
		return nil, fmt.Errorf("%w: DecoderConfigDescriptor needs 13 bytes, has %d", pkg.ErrMalformedAtom, len(b))
	}
	bs := codec.NewBitStream(b)
	dc := &DecoderConfigDescriptor{}
	dc.ObjectTypeIndication = bs.Uint8(8)
	dc.StreamType = bs.Uint8(6)
	dc.UpStream = bs.GetBit() == 1
	bs.SkipBits(1)
	dc.BufferSizeDB = bs.Uint32(24)
	dc.MaxBitrate = bs.Uint32(32)
	dc.AvgBitrate = bs.Uint32(32)
	var err error
	dc.Children, err = parseDescriptors(b[13:], depth+1)
	return dc, err
}

// ESDSBox is 'esds': a full box around one ES_Descriptor.
type ESDSBox struct {
	Descriptors []Descriptor
}

func (esds *ESDSBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeESDS)
	if err != nil {
		return
	}
	esds.Descriptors, err = ParseDescriptors(b)
	return
}

// DecoderConfig finds the decoder configuration wherever it is nested.
func (esds *ESDSBox) DecoderConfig() *DecoderConfigDescriptor {
	return findDecoderConfig(esds.Descriptors)
}

// DecoderSpecificInfo returns the codec private bytes, nil when absent.
func (esds *ESDSBox) DecoderSpecificInfo() []byte {
	if dc := esds.DecoderConfig(); dc != nil {
		for _, child := range dc.Children {
			if dsi, ok := child.(DecoderSpecificInfo); ok {
				return dsi
			}
		}
	}
	return nil
}

func findDecoderConfig(list []Descriptor) *DecoderConfigDescriptor {
	for _, d := range list {
		switch v := d.(type) {
		case *DecoderConfigDescriptor:
			return v
		case *ESDescriptor:
			if dc := findDecoderConfig(v.Children); dc != nil {
				return dc
			}
		}
	}
	return nil
}

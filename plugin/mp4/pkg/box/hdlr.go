package box

import (
	"bytes"
)

// aligned(8) class HandlerBox extends FullBox(‘hdlr’, version = 0, 0) {
// 	unsigned int(32) pre_defined = 0;
// 	unsigned int(32) handler_type;
// 	const unsigned int(32)[3] reserved = 0;
// 	string name;
// }

type HandlerBox struct {
	// PreDefined is the QuickTime component type ('mhlr' or 'dhlr').
	PreDefined  [4]byte
	HandlerType [4]byte
	Name        string
}

func (hdlr *HandlerBox) Decode(b []byte) (err error) {
	_, b, err = DecodeFullBox(b, TypeHDLR)
	if err != nil {
		return
	}
	if len(b) < 8 {
		return short(TypeHDLR, 8, len(b))
	}
	copy(hdlr.PreDefined[:], b)
	copy(hdlr.HandlerType[:], b[4:])
	if len(b) <= 20 {
		return
	}
	name := b[20:]
	// QuickTime stores a pascal string
	if int(name[0]) == len(name)-1 {
		name = name[1:]
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	hdlr.Name = string(name)
	return
}

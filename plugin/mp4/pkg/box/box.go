package box

import (
	"encoding/binary"
	"fmt"
	"io"

	"m7s.live/qtmp4/pkg"
)

const (
	BasicBoxLen = 8
	LargeBoxLen = 16
	FullBoxLen  = 12
)

func f(s string) [4]byte {
	return [4]byte([]byte(s))
}

var (
	TypeFTYP = f("ftyp")
	TypeSTYP = f("styp")
	TypeMOOV = f("moov")
	TypeCMOV = f("cmov")
	TypeDCOM = f("dcom")
	TypeCMVD = f("cmvd")
	TypeMVHD = f("mvhd")
	TypeTRAK = f("trak")
	TypeTKHD = f("tkhd")
	TypeTREF = f("tref")
	TypeMDIA = f("mdia")
	TypeMDHD = f("mdhd")
	TypeHDLR = f("hdlr")
	TypeMINF = f("minf")
	TypeSTBL = f("stbl")
	TypeSTSD = f("stsd")
	TypeSTTS = f("stts")
	TypeSTSC = f("stsc")
	TypeSTSZ = f("stsz")
	TypeSTZ2 = f("stz2")
	TypeSTCO = f("stco")
	TypeCO64 = f("co64")
	TypeSTSS = f("stss")
	TypeCTTS = f("ctts")
	TypeSGPD = f("sgpd")
	TypeSBGP = f("sbgp")
	TypeEDTS = f("edts")
	TypeELST = f("elst")
	TypeDINF = f("dinf")
	TypeMDAT = f("mdat")
	TypeFREE = f("free")
	TypeSKIP = f("skip")
	TypeWIDE = f("wide")
	TypePNOT = f("pnot")
	TypePICT = f("PICT")
	TypePict = f("pict")
	TypeUUID = f("uuid")
	TypeJUNK = f("junk")

	TypeMVEX = f("mvex")
	TypeTREX = f("trex")
	TypeMOOF = f("moof")
	TypeMFHD = f("mfhd")
	TypeTRAF = f("traf")
	TypeTFHD = f("tfhd")
	TypeTFDT = f("tfdt")
	TypeTRUN = f("trun")
	TypeMFRA = f("mfra")
	TypeSIDX = f("sidx")

	TypeUDTA     = f("udta")
	TypeCHPL     = f("chpl")
	TypeMETA     = f("meta")
	TypeILST     = f("ilst")
	TypeDATA     = f("data")
	TypeMEAN     = f("mean")
	TypeNAME     = f("name")
	TypeFREEFORM = f("----")
	TypeCHAP     = f("chap")

	TypeESDS = f("esds")
	TypeWAVE = f("wave")
	TypeFRMA = f("frma")
	TypeENDA = f("enda")
	TypeAVCC = f("avcC")
	TypeHVCC = f("hvcC")
	TypeALAC = f("alac")
	TypeDAC3 = f("dac3")
	TypeDEC3 = f("dec3")
	TypeDDTS = f("ddts")
	TypeCOLR = f("colr")
	TypePASP = f("pasp")

	TypeVIDE = f("vide")
	TypeSOUN = f("soun")
	TypeSUBP = f("subp")
	TypeSBTL = f("sbtl")
	TypeTEXT = f("text")
	TypeTX3G = f("tx3g")
	TypeCLCP = f("clcp")
	TypeDHLR = f("dhlr")

	TypeRAP = f("rap ")
)

// TopLevel lists the fourccs accepted at file level when probing or resynchronising.
var TopLevel = map[[4]byte]bool{
	TypeMOOV: true, TypeMOOF: true, TypeMDAT: true, TypeFTYP: true, TypeFREE: true,
	TypeSKIP: true, TypeWIDE: true, TypePNOT: true, TypePict: true, TypePICT: true,
	TypeUUID: true, TypeMFRA: true, TypeSTYP: true, TypeSIDX: true, TypeMETA: true,
	TypeJUNK: true,
}

//	aligned(8) class Box (unsigned int(32) boxtype, optional unsigned int(8)[16] extended_type) {
//	    unsigned int(32) size;
//	    unsigned int(32) type = boxtype;
//	    if (size==1) {
//	       unsigned int(64) largesize;
//	    } else if (size==0) {
//	       // box extends to end of file
//	    }
//	    if (boxtype=='uuid') {
//	    unsigned int(8)[16] usertype = extended_type;
//	 }
//	}

// Atom is one box header located in the stream.
type Atom struct {
	Type       [4]byte
	Size       int64
	HeaderSize int64
	Offset     int64
}

func (a Atom) End() int64 {
	return a.Offset + a.Size
}

func (a Atom) PayloadOffset() int64 {
	return a.Offset + a.HeaderSize
}

func (a Atom) PayloadSize() int64 {
	return a.Size - a.HeaderSize
}

// AsParent rebases the atom to its payload region, which is where its children live.
func (a Atom) AsParent() Atom {
	return Atom{
		Type:   a.Type,
		Size:   a.Size - a.HeaderSize,
		Offset: a.Offset + a.HeaderSize,
	}
}

func (a Atom) String() string {
	return fmt.Sprintf("'%s' at %d size %d header %d", TypeName(a.Type), a.Offset, a.Size, a.HeaderSize)
}

func TypeName(t [4]byte) string {
	b := make([]byte, 4)
	for i, c := range t {
		if c < 0x20 || c > 0x7e {
			c = '?'
		}
		b[i] = c
	}
	return string(b)
}

// ReadAtom reads the header at pos. limit is the end of the enclosing parent.
// io.EOF means there is no room left for another header; ErrMalformedAtom
// means the declared size does not fit and the parent should be treated as
// finished.
func ReadAtom(r io.ReaderAt, pos, limit int64) (atom Atom, err error) {
	if pos+BasicBoxLen > limit {
		return atom, io.EOF
	}
	var buf [LargeBoxLen]byte
	if err = readFull(r, buf[:BasicBoxLen], pos); err != nil {
		return
	}
	atom.Offset = pos
	atom.HeaderSize = BasicBoxLen
	copy(atom.Type[:], buf[4:8])
	switch size := binary.BigEndian.Uint32(buf[:4]); size {
	case 0:
		atom.Size = limit - pos
	case 1:
		if pos+LargeBoxLen > limit {
			return atom, fmt.Errorf("%w: %s has no room for its extended size", pkg.ErrMalformedAtom, TypeName(atom.Type))
		}
		if err = readFull(r, buf[BasicBoxLen:], pos+BasicBoxLen); err != nil {
			return
		}
		atom.HeaderSize = LargeBoxLen
		large := binary.BigEndian.Uint64(buf[BasicBoxLen:])
		if large > uint64(limit-pos) {
			return atom, fmt.Errorf("%w: %s size %d exceeds parent end %d", pkg.ErrMalformedAtom, TypeName(atom.Type), large, limit)
		}
		atom.Size = int64(large)
	default:
		atom.Size = int64(size)
	}
	if atom.Size < atom.HeaderSize {
		return atom, fmt.Errorf("%w: %s size %d smaller than its header", pkg.ErrMalformedAtom, TypeName(atom.Type), atom.Size)
	}
	if atom.End() > limit {
		return atom, fmt.Errorf("%w: %s size %d exceeds parent end %d", pkg.ErrMalformedAtom, TypeName(atom.Type), atom.Size, limit)
	}
	return
}

func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: header at %d: %v", pkg.ErrIoFailure, off, err)
}

// Children iterates the atoms inside parent. It stops at the first header
// that does not fit and returns that error so the caller can report it.
func Children(r io.ReaderAt, parent Atom, yield func(Atom) error) error {
	p := parent.AsParent()
	for pos := p.Offset; ; {
		child, err := ReadAtom(r, pos, p.End())
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = yield(child); err != nil {
			return err
		}
		pos = child.End()
	}
}

// ReadPayload returns the payload bytes of atom.
func ReadPayload(r io.ReaderAt, atom Atom) ([]byte, error) {
	buf := make([]byte, atom.PayloadSize())
	if err := readFull(r, buf, atom.PayloadOffset()); err != nil {
		return nil, err
	}
	return buf, nil
}

//	aligned(8) class FullBox(unsigned int(32) boxtype, unsigned int(8) v, bit(24) f) extends Box(boxtype) {
//		unsigned int(8) version = v;
//		bit(24) flags = f;
//	}
type FullBox struct {
	Version uint8
	Flags   uint32
}

// DecodeFullBox splits the version/flags prefix off a payload.
func DecodeFullBox(b []byte, t [4]byte) (FullBox, []byte, error) {
	if len(b) < 4 {
		return FullBox{}, nil, fmt.Errorf("%w: %s payload too short for version and flags", pkg.ErrMalformedAtom, TypeName(t))
	}
	return FullBox{Version: b[0], Flags: uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])}, b[4:], nil
}

// TableLengthError reports a table whose declared entry count does not match
// the payload. The decoded table holds only the entries actually present.
type TableLengthError struct {
	Box      [4]byte
	Declared uint32
	Actual   uint32
}

func (e *TableLengthError) Error() string {
	return fmt.Sprintf("%s declares %d entries but holds %d", TypeName(e.Box), e.Declared, e.Actual)
}

func (e *TableLengthError) Unwrap() error {
	return pkg.ErrTableLengthMismatch
}

func checkCount(t [4]byte, declared uint32, remain int, entrySize int) (int, error) {
	present := remain / entrySize
	if uint64(declared) <= uint64(present) {
		return int(declared), nil
	}
	return present, &TableLengthError{Box: t, Declared: declared, Actual: uint32(present)}
}

func short(t [4]byte, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, has %d", pkg.ErrMalformedAtom, TypeName(t), need, have)
}

package codec

import (
	"encoding/binary"
	"fmt"
)

type FourCC [4]byte

var (
	FourCC_H264 = FourCC{'a', 'v', 'c', '1'}
	FourCC_H265 = FourCC{'h', 'v', 'c', '1'}
	FourCC_MP4A = FourCC{'m', 'p', '4', 'a'}
	FourCC_MP4V = FourCC{'m', 'p', '4', 'v'}
	FourCC_MP4S = FourCC{'m', 'p', '4', 's'}
	FourCC_AC3  = FourCC{'a', 'c', '-', '3'}
	FourCC_EAC3 = FourCC{'e', 'c', '-', '3'}
	FourCC_DTS  = FourCC{'d', 't', 's', 'c'}
	FourCC_ALAC = FourCC{'a', 'l', 'a', 'c'}
	FourCC_MP3  = FourCC{'.', 'm', 'p', '3'}
)

func (f FourCC) String() string {
	return string(f[:])
}

func (f FourCC) Uint32() uint32 {
	return binary.BigEndian.Uint32(f[:])
}

// Rational is an exact fraction, e.g. a frame rate of 30000/1001.
type Rational struct {
	Num uint64
	Den uint64
}

func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Colour carries the colr atom of a video sample description.
type Colour struct {
	Primaries               uint16
	TransferCharacteristics uint16
	MatrixCoefficients      uint16
	FullRange               bool
}

// VideoCtx describes video codecs whose parameters come from the sample
// description only (MPEG-1/2, MPEG-4 part 2, ProRes).
type VideoCtx struct {
	Format FourCC
	Width  int
	Height int
	Record []byte
}

func (ctx *VideoCtx) FourCC() FourCC {
	return ctx.Format
}

func (ctx *VideoCtx) GetInfo() string {
	return fmt.Sprintf("resolution: %dx%d", ctx.Width, ctx.Height)
}

func (ctx *VideoCtx) GetBase() ICodecCtx {
	return ctx
}

func (ctx *VideoCtx) GetRecord() []byte {
	return ctx.Record
}

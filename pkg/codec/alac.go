package codec

import (
	"errors"

	"github.com/yapingcat/gomedia/go-codec"
)

const alacConfigLen = 24

type ALACCtx struct {
	AudioCtx
	FrameLength   uint32
	MaxRun        uint16
	MaxFrameBytes uint32
	AvgBitRate    uint32
	Cookie        []byte
}

// NewALACCtx parses the ALACSpecificConfig cookie. A leading version and
// flags word, as stored in the MP4 'alac' atom, is skipped.
func NewALACCtx(cookie []byte) (*ALACCtx, error) {
	switch {
	case len(cookie) >= alacConfigLen+4:
		cookie = cookie[4:]
	case len(cookie) < alacConfigLen:
		return nil, errors.New("alac: magic cookie too short")
	}
	cookie = cookie[:alacConfigLen]
	bs := codec.NewBitStream(cookie)
	ctx := &ALACCtx{Cookie: cookie}
	ctx.FrameLength = bs.Uint32(32)
	bs.SkipBits(8) // compatible version
	ctx.SampleSize = int(bs.Uint8(8))
	bs.SkipBits(24) // rice parameters
	ctx.Channels = int(bs.Uint8(8))
	ctx.MaxRun = bs.Uint16(16)
	ctx.MaxFrameBytes = bs.Uint32(32)
	ctx.AvgBitRate = bs.Uint32(32)
	ctx.SampleRate = int(bs.Uint32(32))
	if ctx.Channels == 0 || ctx.SampleRate == 0 {
		return nil, errors.New("alac: invalid magic cookie")
	}
	return ctx, nil
}

func (*ALACCtx) FourCC() FourCC {
	return FourCC_ALAC
}

func (ctx *ALACCtx) GetBase() ICodecCtx {
	return ctx
}

func (ctx *ALACCtx) GetRecord() []byte {
	return ctx.Cookie
}

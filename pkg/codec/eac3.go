package codec

import (
	"errors"

	"github.com/yapingcat/gomedia/go-codec"
)

var (
	eac3SampleRates  = [3]int{48000, 44100, 32000}
	eac3ReducedRates = [3]int{24000, 22050, 16000}
	acmodChannels    = [8]int{2, 1, 2, 3, 3, 4, 4, 5}
)

type EAC3Ctx struct {
	AudioCtx
	StreamType  uint8
	SubstreamID uint8
	FrameSize   int
}

// NewEAC3Ctx reads the bitstream header of the first independent E-AC-3 frame.
func NewEAC3Ctx(frame []byte) (*EAC3Ctx, error) {
	if len(frame) < 6 {
		return nil, errors.New("eac3: frame too short")
	}
	bs := codec.NewBitStream(frame)
	if bs.Uint16(16) != 0x0b77 {
		return nil, errors.New("eac3: missing syncword")
	}
	ctx := &EAC3Ctx{}
	ctx.StreamType = bs.Uint8(2)
	ctx.SubstreamID = bs.Uint8(3)
	ctx.FrameSize = (int(bs.Uint16(11)) + 1) * 2
	fscod := bs.Uint8(2)
	if fscod == 3 {
		fscod2 := bs.Uint8(2)
		if fscod2 == 3 {
			return nil, errors.New("eac3: reserved sample rate code")
		}
		ctx.SampleRate = eac3ReducedRates[fscod2]
	} else {
		bs.SkipBits(2) // numblkscod
		ctx.SampleRate = eac3SampleRates[fscod]
	}
	acmod := bs.Uint8(3)
	lfeon := bs.Uint8(1)
	bsid := bs.Uint8(5)
	if bsid <= 10 || bsid > 16 {
		return nil, errors.New("eac3: unexpected bsid")
	}
	ctx.Channels = acmodChannels[acmod] + int(lfeon)
	ctx.SampleSize = 16
	return ctx, nil
}

func (*EAC3Ctx) FourCC() FourCC {
	return FourCC_EAC3
}

func (ctx *EAC3Ctx) GetBase() ICodecCtx {
	return ctx
}

package codec

import (
	"bytes"
	"errors"

	"github.com/yapingcat/gomedia/go-codec"
)

var (
	dtsSyncWord    = []byte{0x7f, 0xfe, 0x80, 0x01}
	dtsSampleRates = [16]int{0, 8000, 16000, 32000, 0, 0, 11025, 22050, 44100, 0, 0, 12000, 24000, 48000, 0, 0}
	dtsChannels    = [16]int{1, 2, 2, 2, 2, 3, 3, 4, 4, 5, 6, 6, 6, 7, 8, 8}
)

const dtsCoreHeaderLen = 11

type DTSCtx struct {
	AudioCtx
	Blocks    int
	FrameSize int
	LFE       bool
}

// NewDTSCtx locates the big endian core syncword in sample and reads the
// core frame header that follows it.
func NewDTSCtx(sample []byte) (*DTSCtx, error) {
	i := bytes.Index(sample, dtsSyncWord)
	if i < 0 {
		return nil, errors.New("dts: no core syncword")
	}
	frame := sample[i:]
	if len(frame) < dtsCoreHeaderLen {
		return nil, errors.New("dts: header too short")
	}
	bs := codec.NewBitStream(frame[4:])
	bs.SkipBits(1 + 5 + 1) // frame type, deficit sample count, crc present
	ctx := &DTSCtx{}
	ctx.Blocks = int(bs.Uint8(7)) + 1
	ctx.FrameSize = int(bs.Uint16(14)) + 1
	amode := bs.Uint8(6)
	sfreq := bs.Uint8(4)
	bs.SkipBits(5 + 1 + 1 + 1 + 1 + 1 + 3 + 1 + 1) // rate through aspf
	lff := bs.Uint8(2)
	ctx.SampleRate = dtsSampleRates[sfreq]
	if ctx.SampleRate == 0 {
		return nil, errors.New("dts: invalid sample rate code")
	}
	if amode < 16 {
		ctx.Channels = dtsChannels[amode]
	} else {
		// user defined layouts
		ctx.Channels = 2
	}
	if lff != 0 {
		ctx.LFE = true
		ctx.Channels++
	}
	ctx.SampleSize = 16
	return ctx, nil
}

func (*DTSCtx) FourCC() FourCC {
	return FourCC_DTS
}

func (ctx *DTSCtx) GetBase() ICodecCtx {
	return ctx
}

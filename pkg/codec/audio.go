package codec

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/ac3"
	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"
	"github.com/deepch/vdk/codec/aacparser"
	"github.com/yapingcat/gomedia/go-codec"
)

type (
	AudioCtx struct {
		SampleRate int
		Channels   int
		SampleSize int
	}
	PCMCtx struct {
		AudioCtx
		Format    FourCC
		BigEndian bool
		Float     bool
	}
	AACCtx struct {
		aacparser.CodecData
		SBR              bool
		PS               bool
		OutputSampleRate int
	}
	AC3Ctx struct {
		AudioCtx
		Sync ac3.SyncInfo
		BSI  ac3.BSI
	}
	MP3Ctx struct {
		AudioCtx
		Layer   int
		Bitrate int
	}
)

func (ctx *AudioCtx) GetRecord() []byte {
	return []byte{}
}

func (ctx *AudioCtx) GetSampleRate() int {
	return ctx.SampleRate
}

func (ctx *AudioCtx) GetChannels() int {
	return ctx.Channels
}

func (ctx *AudioCtx) GetSampleSize() int {
	return ctx.SampleSize
}

func (ctx *AudioCtx) GetInfo() string {
	return fmt.Sprintf("sample rate: %d, channels: %d, sample size: %d", ctx.SampleRate, ctx.Channels, ctx.SampleSize)
}

func (ctx *PCMCtx) FourCC() FourCC {
	return ctx.Format
}

func (ctx *PCMCtx) GetBase() ICodecCtx {
	return ctx
}

// NewAACCtx parses an AudioSpecificConfig. SBR and PS signalled through the
// explicit hierarchical or backward compatible extension raise the output
// sample rate.
func NewAACCtx(config []byte) (*AACCtx, error) {
	data, err := aacparser.NewCodecDataFromMPEG4AudioConfigBytes(config)
	if err != nil {
		return nil, err
	}
	if data.SampleRate() == 0 {
		return nil, errors.New("aac: invalid sampling frequency index")
	}
	ctx := &AACCtx{CodecData: data, OutputSampleRate: data.SampleRate()}
	var conf mpeg4audio.Config
	if conf.Unmarshal(config) == nil {
		switch {
		case conf.Type == mpeg4audio.ObjectTypeSBR || conf.ExtensionType == mpeg4audio.ObjectTypeSBR:
			ctx.SBR = true
		case conf.Type == mpeg4audio.ObjectTypePS || conf.ExtensionType == mpeg4audio.ObjectTypePS:
			ctx.SBR, ctx.PS = true, true
		}
		if ctx.SBR && conf.ExtensionSampleRate > 0 {
			ctx.OutputSampleRate = conf.ExtensionSampleRate
		}
	}
	return ctx, nil
}

// NewAACCtxFromParams builds an AAC-LC configuration from container values.
func NewAACCtxFromParams(sampleRate, channels int) (*AACCtx, error) {
	data, err := aacparser.NewCodecDataFromMPEG4AudioConfig(aacparser.MPEG4AudioConfig{
		ObjectType:    aacparser.AOT_AAC_LC,
		SampleRate:    sampleRate,
		ChannelConfig: uint(channels),
	})
	if err != nil {
		return nil, err
	}
	return &AACCtx{CodecData: data, OutputSampleRate: sampleRate}, nil
}

func (ctx *AACCtx) GetChannels() int {
	return ctx.ChannelLayout().Count()
}
func (ctx *AACCtx) GetSampleSize() int {
	return 16
}
func (ctx *AACCtx) GetSampleRate() int {
	return ctx.SampleRate()
}
func (ctx *AACCtx) GetBase() ICodecCtx {
	return ctx
}
func (ctx *AACCtx) GetRecord() []byte {
	return ctx.ConfigBytes
}
func (ctx *AACCtx) FourCC() FourCC {
	return FourCC_MP4A
}
func (ctx *AACCtx) GetInfo() string {
	return fmt.Sprintf("sample rate: %d, output sample rate: %d, channels: %d, object type: %d, sbr: %t", ctx.SampleRate(), ctx.OutputSampleRate, ctx.GetChannels(), ctx.Config.ObjectType, ctx.SBR)
}

// NewAC3Ctx reads the syncinfo and bsi of the first AC-3 frame.
func NewAC3Ctx(frame []byte) (*AC3Ctx, error) {
	if len(frame) < 8 {
		return nil, errors.New("ac3: frame too short")
	}
	ctx := &AC3Ctx{}
	if err := ctx.Sync.Unmarshal(frame); err != nil {
		return nil, err
	}
	if err := ctx.BSI.Unmarshal(frame[5:]); err != nil {
		return nil, err
	}
	ctx.SampleRate = ctx.Sync.SampleRate()
	ctx.Channels = ctx.BSI.ChannelCount()
	ctx.SampleSize = 16
	return ctx, nil
}

func (*AC3Ctx) FourCC() FourCC {
	return FourCC_AC3
}

func (ctx *AC3Ctx) GetBase() ICodecCtx {
	return ctx
}

// NewMP3Ctx reads the header of the first MPEG audio frame.
func NewMP3Ctx(frame []byte) (ctx *MP3Ctx, err error) {
	if len(frame) < 4 {
		return nil, errors.New("mp3: frame too short")
	}
	defer func() {
		// the bitrate table lookup panics on reserved indexes
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("mp3: invalid frame header: %v", r)
		}
	}()
	head, err := codec.DecodeMp3Head(frame)
	if err != nil {
		return nil, err
	}
	if head.Layer == codec.LAYER_RESERVED || head.BitrateIndex == 0x0f || head.SampleRateIndex == 3 {
		return nil, errors.New("mp3: reserved header fields")
	}
	ctx = &MP3Ctx{
		AudioCtx: AudioCtx{SampleRate: head.GetSampleRate(), Channels: 2, SampleSize: 16},
		Layer:    int(head.Layer),
		Bitrate:  head.GetBitRate(),
	}
	if head.Mode == 3 {
		ctx.Channels = 1
	}
	return
}

func (*MP3Ctx) FourCC() FourCC {
	return FourCC_MP3
}

func (ctx *MP3Ctx) GetBase() ICodecCtx {
	return ctx
}

package codec

import (
	"fmt"

	"github.com/deepch/vdk/codec/h264parser"
)

type (
	H264Ctx struct {
		h264parser.CodecData
	}
)

// NewH264Ctx parses an avcC record. A record without SPS or PPS is rejected.
func NewH264Ctx(record []byte) (*H264Ctx, error) {
	data, err := h264parser.NewCodecDataFromAVCDecoderConfRecord(record)
	if err != nil {
		return nil, err
	}
	return &H264Ctx{data}, nil
}

func (*H264Ctx) FourCC() FourCC {
	return FourCC_H264
}

func (ctx *H264Ctx) GetInfo() string {
	return fmt.Sprintf("resolution: %dx%d", ctx.Width(), ctx.Height())
}

func (h264 *H264Ctx) GetBase() ICodecCtx {
	return h264
}

func (h264 *H264Ctx) GetRecord() []byte {
	return h264.AVCDecoderConfRecordBytes()
}

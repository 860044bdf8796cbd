package codec

import (
	"fmt"

	"github.com/deepch/vdk/codec/h265parser"
)

type (
	H265Ctx struct {
		h265parser.CodecData
	}
)

// NewH265Ctx parses an hvcC record. A record without VPS, SPS or PPS is rejected.
func NewH265Ctx(record []byte) (*H265Ctx, error) {
	data, err := h265parser.NewCodecDataFromAVCDecoderConfRecord(record)
	if err != nil {
		return nil, err
	}
	return &H265Ctx{data}, nil
}

func (ctx *H265Ctx) GetInfo() string {
	return fmt.Sprintf("resolution: %dx%d", ctx.Width(), ctx.Height())
}

func (*H265Ctx) FourCC() FourCC {
	return FourCC_H265
}

func (h265 *H265Ctx) GetBase() ICodecCtx {
	return h265
}

func (h265 *H265Ctx) GetRecord() []byte {
	return h265.Record
}

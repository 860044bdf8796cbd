package pkg

import (
	"fmt"
	"io"

	"github.com/deepch/vdk/codec/aacparser"
	"m7s.live/qtmp4/pkg/codec"
)

const adtsHeaderLen = 7

var _ Packetizer = (*ADTS)(nil)

// ADTS writes raw AAC access units as an ADTS stream.
type ADTS struct {
	w      io.Writer
	ctx    *codec.AACCtx
	header [adtsHeaderLen]byte
	Frames int
}

func NewADTS(w io.Writer, decision *codec.Decision) (*ADTS, error) {
	ctx, ok := decision.Ctx.GetBase().(*codec.AACCtx)
	if !ok {
		return nil, fmt.Errorf("%w: adts needs aac, got %s", ErrUnsupportedCodec, decision.Family)
	}
	return &ADTS{w: w, ctx: ctx}, nil
}

func (a *ADTS) ProcessSample(data []byte, entry IndexEntry) (err error) {
	if len(data)+adtsHeaderLen > 0x1fff {
		return fmt.Errorf("adts: access unit of %d bytes does not fit a frame", len(data))
	}
	aacparser.FillADTSHeader(a.header[:], a.ctx.Config, 1024, len(data))
	if _, err = a.w.Write(a.header[:]); err != nil {
		return
	}
	_, err = a.w.Write(data)
	a.Frames++
	return
}

func (a *ADTS) Flush() error {
	return flushWriter(a.w)
}

func (a *ADTS) String() string {
	return fmt.Sprintf("ADTS{frames:%d}", a.Frames)
}

func flushWriter(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

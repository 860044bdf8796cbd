package pkg

import (
	"fmt"
	"io"

	"m7s.live/qtmp4/pkg/codec"
	"m7s.live/qtmp4/pkg/util"
)

var startCode = []byte{0, 0, 0, 1}

var _ Packetizer = (*AnnexB)(nil)

// AnnexB rewrites length prefixed AVC/HEVC samples into a start code
// stream. Parameter sets are repeated in front of every keyframe.
type AnnexB struct {
	w         io.Writer
	sizeLen   int
	paramSets [][]byte
	nalus     Nalus
	Frames    int
}

func NewAnnexB(w io.Writer, decision *codec.Decision) (*AnnexB, error) {
	a := &AnnexB{w: w}
	switch ctx := decision.Ctx.GetBase().(type) {
	case *codec.H264Ctx:
		record := ctx.AVCDecoderConfRecordBytes()
		if len(record) < 5 {
			return nil, fmt.Errorf("%w: avcC too short", ErrMissingRequiredParameter)
		}
		a.sizeLen = int(record[4]&3) + 1
		a.paramSets = [][]byte{ctx.SPS(), ctx.PPS()}
	case *codec.H265Ctx:
		if len(ctx.Record) < 22 {
			return nil, fmt.Errorf("%w: hvcC too short", ErrMissingRequiredParameter)
		}
		a.sizeLen = int(ctx.Record[21]&3) + 1
		a.paramSets = [][]byte{ctx.VPS(), ctx.SPS(), ctx.PPS()}
	default:
		return nil, fmt.Errorf("%w: annexb needs avc or hevc, got %s", ErrUnsupportedCodec, decision.Family)
	}
	return a, nil
}

func (a *AnnexB) ProcessSample(data []byte, entry IndexEntry) error {
	if len(data) == 0 {
		return nil
	}
	a.nalus.Reset()
	if err := a.nalus.ParseAVCC(util.NewBuffersFromBytes(data), a.sizeLen); err != nil {
		return fmt.Errorf("annexb: %w", err)
	}
	if entry.Keyframe {
		for _, ps := range a.paramSets {
			if err := a.write(ps); err != nil {
				return err
			}
		}
	}
	for _, nalu := range a.nalus.Nalus {
		for _, part := range nalu {
			if err := a.write(part); err != nil {
				return err
			}
		}
	}
	a.Frames++
	return nil
}

func (a *AnnexB) write(nalu []byte) (err error) {
	if len(nalu) == 0 {
		return
	}
	if _, err = a.w.Write(startCode); err == nil {
		_, err = a.w.Write(nalu)
	}
	return
}

func (a *AnnexB) Flush() error {
	return flushWriter(a.w)
}

func (a *AnnexB) String() string {
	return fmt.Sprintf("AnnexB{frames:%d}", a.Frames)
}

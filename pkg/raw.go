package pkg

import (
	"fmt"
	"io"

	"m7s.live/qtmp4/pkg/codec"
)

var _ Packetizer = (*RawWriter)(nil)

// RawWriter writes sample payloads unchanged.
type RawWriter struct {
	w       io.Writer
	Samples int
	Bytes   int64
}

func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: w}
}

func (r *RawWriter) ProcessSample(data []byte, entry IndexEntry) error {
	n, err := r.w.Write(data)
	r.Samples++
	r.Bytes += int64(n)
	return err
}

func (r *RawWriter) Flush() error {
	return flushWriter(r.w)
}

func (r *RawWriter) String() string {
	return fmt.Sprintf("Raw{samples:%d bytes:%d}", r.Samples, r.Bytes)
}

// NewWriterFactory returns a factory producing elementary stream writers:
// ADTS for AAC, Annex B for AVC and HEVC, the raw payload otherwise.
func NewWriterFactory(w io.Writer) PacketizerFactory {
	return func(decision *codec.Decision) (Packetizer, error) {
		switch decision.Family {
		case codec.FamilyAAC:
			return NewADTS(w, decision)
		case codec.FamilyH264, codec.FamilyHEVC:
			return NewAnnexB(w, decision)
		}
		return NewRawWriter(w), nil
	}
}

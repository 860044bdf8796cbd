package pkg

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"m7s.live/qtmp4/pkg/codec"
)

// avcRecord carries a 720x576 baseline SPS and its PPS.
var avcRecord = []byte{
	0x01, 0x42, 0x00, 0x1e, 0xff, 0xe1, 0x00, 0x09,
	0x67, 0x42, 0x00, 0x1e, 0x95, 0xa8, 0x2d, 0x04, 0x99,
	0x01, 0x00, 0x04, 0x68, 0xce, 0x3c, 0x80,
}

func TestADTS(t *testing.T) {
	ctx, err := codec.NewAACCtx([]byte{0x12, 0x10})
	if err != nil {
		t.Error(err)
		return
	}
	var out bytes.Buffer
	p, err := NewWriterFactory(&out)(&codec.Decision{Family: codec.FamilyAAC, Ctx: ctx})
	if err != nil {
		t.Error(err)
		return
	}
	payload := []byte{1, 2, 3, 4, 5}
	if err = p.ProcessSample(payload, IndexEntry{}); err != nil {
		t.Error(err)
		return
	}
	b := out.Bytes()
	if len(b) != 7+len(payload) || b[0] != 0xff || b[1]&0xf0 != 0xf0 {
		t.Errorf("frame % x", b)
		return
	}
	if length := int(b[3]&3)<<11 | int(b[4])<<3 | int(b[5])>>5; length != len(b) {
		t.Errorf("frame length field %d, frame is %d bytes", length, len(b))
	}
	if !bytes.Equal(b[7:], payload) {
		t.Errorf("payload % x", b[7:])
	}
	t.Run("wrong codec", func(t *testing.T) {
		_, err := NewADTS(&out, &codec.Decision{Family: codec.FamilyPCM, Ctx: &codec.PCMCtx{}})
		if !errors.Is(err, ErrUnsupportedCodec) {
			t.Errorf("expected unsupported codec, got %v", err)
		}
	})
}

func TestAnnexB(t *testing.T) {
	ctx, err := codec.NewH264Ctx(avcRecord)
	if err != nil {
		t.Error(err)
		return
	}
	if ctx.Width() != 720 || ctx.Height() != 576 {
		t.Errorf("resolution %dx%d", ctx.Width(), ctx.Height())
	}
	var out bytes.Buffer
	p, err := NewAnnexB(&out, &codec.Decision{Family: codec.FamilyH264, Ctx: ctx})
	if err != nil {
		t.Error(err)
		return
	}
	sample := []byte{0, 0, 0, 2, 0x65, 0x88, 0, 0, 0, 1, 0x06}
	t.Run("keyframe", func(t *testing.T) {
		out.Reset()
		if err := p.ProcessSample(sample, IndexEntry{Keyframe: true}); err != nil {
			t.Error(err)
			return
		}
		var want []byte
		for _, nalu := range [][]byte{ctx.SPS(), ctx.PPS(), {0x65, 0x88}, {0x06}} {
			want = append(append(want, startCode...), nalu...)
		}
		if !bytes.Equal(out.Bytes(), want) {
			t.Errorf("got % x\nwant % x", out.Bytes(), want)
		}
	})
	t.Run("delta", func(t *testing.T) {
		out.Reset()
		if err := p.ProcessSample(sample, IndexEntry{}); err != nil {
			t.Error(err)
			return
		}
		want := []byte{0, 0, 0, 1, 0x65, 0x88, 0, 0, 0, 1, 0x06}
		if !bytes.Equal(out.Bytes(), want) {
			t.Errorf("got % x", out.Bytes())
		}
	})
	t.Run("truncated", func(t *testing.T) {
		if err := p.ProcessSample([]byte{0, 0, 0, 9, 0x65}, IndexEntry{}); err == nil {
			t.Error("length beyond the sample accepted")
		}
	})
}

func TestDiag(t *testing.T) {
	t.Run("topics", func(t *testing.T) {
		topics := ParseDebugTopics("qtmp4_tables_full, QTMP4")
		for _, topic := range []string{DebugTablesFull, DebugTables, DebugQtmp4, DebugHeaders} {
			if !topics.Has(topic) {
				t.Errorf("%s not enabled", topic)
			}
		}
		if topics.Has(DebugFragments) {
			t.Error("fragments enabled")
		}
		if all := ParseDebugTopics(DebugQtmp4Full); !all.Has(DebugResync) || !all.Has(DebugIndexesFull) {
			t.Error("qtmp4_full does not enable every topic")
		}
	})
	t.Run("warn once", func(t *testing.T) {
		records := NewRecordCollector(slog.LevelDebug)
		diag := NewDiag(slog.New(records), ParseDebugTopics(DebugChapters))
		if !diag.Warn(1, ErrInconsistentTables) || diag.Warn(1, ErrInconsistentTables) {
			t.Error("repeat not suppressed")
		}
		if !diag.Warn(2, ErrInconsistentTables) || !diag.Warn(1, ErrMalformedAtom) {
			t.Error("distinct track or kind suppressed")
		}
		other := errors.New("something else")
		if !diag.Warn(1, other) || !diag.Warn(1, other) {
			t.Error("fault without kind suppressed")
		}
		diag.Debug(DebugChapters, "shown")
		diag.Debug(DebugTables, "hidden")
		if records.Count("shown") != 1 || records.Count("hidden") != 0 {
			t.Error("debug topics not honoured")
		}
		if n := len(records.Records()); n != 6 {
			t.Errorf("%d records", n)
		}
	})
	t.Run("fatal", func(t *testing.T) {
		if !Fatal(ErrIoFailure) || Fatal(ErrMalformedAtom) || KindOf(ErrIoFailure) != "" {
			t.Error("fault classification")
		}
	})
}

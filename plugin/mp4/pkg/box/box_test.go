package box

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"m7s.live/qtmp4/pkg"
)

func header(size uint32, t string) []byte {
	b := binary.BigEndian.AppendUint32(nil, size)
	return append(b, t...)
}

func u32s(values ...uint32) (b []byte) {
	for _, v := range values {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return
}

func TestReadAtom(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		data := append(header(12, "free"), 0, 0, 0, 0)
		atom, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data)))
		if err != nil {
			t.Error(err)
			return
		}
		if atom.Type != TypeFREE || atom.Size != 12 || atom.HeaderSize != 8 || atom.PayloadSize() != 4 {
			t.Errorf("unexpected %s", atom)
		}
	})
	t.Run("large", func(t *testing.T) {
		data := append(header(1, "mdat"), make([]byte, 8+4)...)
		binary.BigEndian.PutUint64(data[8:], 20)
		atom, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data)))
		if err != nil {
			t.Error(err)
			return
		}
		if atom.HeaderSize != LargeBoxLen || atom.Size != 20 || atom.PayloadOffset() != 16 {
			t.Errorf("unexpected %s", atom)
		}
	})
	t.Run("to end", func(t *testing.T) {
		data := append(header(0, "mdat"), make([]byte, 100)...)
		atom, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data)))
		if err != nil {
			t.Error(err)
			return
		}
		if atom.End() != int64(len(data)) {
			t.Errorf("size 0 atom ends at %d", atom.End())
		}
	})
	t.Run("overflow", func(t *testing.T) {
		data := append(header(64, "moov"), make([]byte, 8)...)
		if _, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data))); !errors.Is(err, pkg.ErrMalformedAtom) {
			t.Errorf("expected malformed atom, got %v", err)
		}
	})
	t.Run("smaller than header", func(t *testing.T) {
		data := header(4, "trak")
		if _, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data))); !errors.Is(err, pkg.ErrMalformedAtom) {
			t.Errorf("expected malformed atom, got %v", err)
		}
	})
	t.Run("no room", func(t *testing.T) {
		data := []byte{0, 0, 0}
		if _, err := ReadAtom(bytes.NewReader(data), 0, int64(len(data))); err != io.EOF {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})
}

func TestChildren(t *testing.T) {
	var inner []byte
	inner = append(inner, header(8, "mvhd")...)
	inner = append(inner, header(12, "trak")...)
	inner = append(inner, 1, 2, 3, 4)
	// last child claims more than its parent holds
	inner = append(inner, header(40, "udta")...)
	data := append(header(uint32(8+len(inner)), "moov"), inner...)
	r := bytes.NewReader(data)
	parent, err := ReadAtom(r, 0, r.Size())
	if err != nil {
		t.Error(err)
		return
	}
	var seen []string
	err = Children(r, parent, func(child Atom) error {
		seen = append(seen, TypeName(child.Type))
		return nil
	})
	if !errors.Is(err, pkg.ErrMalformedAtom) {
		t.Errorf("expected malformed atom for the last child, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "mvhd" || seen[1] != "trak" {
		t.Errorf("children %v", seen)
	}
}

func TestTables(t *testing.T) {
	full := []byte{0, 0, 0, 0}
	t.Run("stts", func(t *testing.T) {
		var stts TimeToSampleBox
		if err := stts.Decode(append(full, u32s(2, 3, 10, 1, 20)...)); err != nil {
			t.Error(err)
			return
		}
		if len(stts) != 2 || stts.SampleTotal() != 4 || stts[1].SampleDelta != 20 {
			t.Errorf("unexpected %+v", stts)
		}
	})
	t.Run("truncated stco", func(t *testing.T) {
		var stco ChunkOffsetBox
		err := stco.Decode(append(full, u32s(3, 100, 200)...), false)
		var tle *TableLengthError
		if !errors.As(err, &tle) || !errors.Is(err, pkg.ErrTableLengthMismatch) {
			t.Errorf("expected table length error, got %v", err)
			return
		}
		if tle.Declared != 3 || tle.Actual != 2 || len(stco) != 2 || stco[1] != 200 {
			t.Errorf("unexpected %v %v", tle, stco)
		}
	})
	t.Run("stsz uniform", func(t *testing.T) {
		var stsz SampleSizeBox
		if err := stsz.Decode(append(full, u32s(4, 10)...)); err != nil {
			t.Error(err)
			return
		}
		if stsz.SampleSize != 4 || stsz.SampleCount != 10 || len(stsz.EntrySizelist) != 0 {
			t.Errorf("unexpected %+v", stsz)
		}
	})
	t.Run("elst", func(t *testing.T) {
		var elst EditListBox
		b := append(full, u32s(2, 1000, 0xffffffff, 0x00010000, 3000, 500, 0x00010000)...)
		if err := elst.Decode(b); err != nil {
			t.Error(err)
			return
		}
		if len(elst) != 2 || !elst[0].Empty() || elst[1].MediaTime != 500 || elst[1].Dwell() {
			t.Errorf("unexpected %+v", elst)
		}
	})
}

func TestTrackRun(t *testing.T) {
	flags := TR_FLAG_DATA_OFFSET | TR_FLAG_DATA_SAMPLE_DURATION | TR_FLAG_DATA_SAMPLE_SIZE
	b := []byte{0, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	b = append(b, u32s(2, 0xfffffff0, 512, 100, 512, 200)...)
	var trun TrackRunBox
	if err := trun.Decode(b); err != nil {
		t.Error(err)
		return
	}
	if trun.DataOffset == nil || *trun.DataOffset != -16 {
		t.Errorf("data offset %v", trun.DataOffset)
	}
	if trun.FirstSampleFlags != nil || len(trun.Entries) != 2 || trun.Entries[1].Size != 200 {
		t.Errorf("unexpected %+v", trun)
	}
	t.Run("short", func(t *testing.T) {
		var trun TrackRunBox
		err := trun.Decode(b[:len(b)-4])
		if !errors.Is(err, pkg.ErrTableLengthMismatch) || len(trun.Entries) != 1 {
			t.Errorf("expected one entry and a table length error, got %d %v", len(trun.Entries), err)
		}
	})
}

func TestMediaHeader(t *testing.T) {
	b := make([]byte, 4+20)
	binary.BigEndian.PutUint32(b[12:], 48000)
	binary.BigEndian.PutUint32(b[16:], 96000)
	// 'eng' packed as three 5 bit letters
	binary.BigEndian.PutUint16(b[20:], ('e'-0x60)<<10|('n'-0x60)<<5|('g'-0x60))
	var mdhd MediaHeaderBox
	if err := mdhd.Decode(b); err != nil {
		t.Error(err)
		return
	}
	if mdhd.Timescale != 48000 || mdhd.Duration != 96000 || mdhd.Language != "eng" {
		t.Errorf("unexpected %+v", mdhd)
	}
	t.Run("macintosh", func(t *testing.T) {
		binary.BigEndian.PutUint16(b[20:], 2)
		var mdhd MediaHeaderBox
		if err := mdhd.Decode(b); err != nil {
			t.Error(err)
			return
		}
		if mdhd.Language != "" || mdhd.RawLanguage != 2 {
			t.Errorf("unexpected %+v", mdhd)
		}
	})
}

func TestChapterList(t *testing.T) {
	b := []byte{1, 0, 0, 0, 0, 0, 0, 0, 2}
	b = binary.BigEndian.AppendUint64(b, 0)
	b = append(b, 5)
	b = append(b, "Intro"...)
	b = binary.BigEndian.AppendUint64(b, 600_000_000)
	b = append(b, 4)
	b = append(b, "Main"...)
	var chpl ChapterListBox
	if err := chpl.Decode(b); err != nil {
		t.Error(err)
		return
	}
	if len(chpl) != 2 || string(chpl[1].Title) != "Main" || chpl[1].Start != 600_000_000 {
		t.Errorf("unexpected %+v", chpl)
	}
	t.Run("truncated", func(t *testing.T) {
		var chpl ChapterListBox
		err := chpl.Decode(b[:len(b)-2])
		if !errors.Is(err, pkg.ErrTableLengthMismatch) || len(chpl) != 1 {
			t.Errorf("expected the first chapter and a table length error, got %d %v", len(chpl), err)
		}
	})
}

func TestESDS(t *testing.T) {
	// ES_Descriptor > DecoderConfigDescriptor(AAC) > DecoderSpecificInfo
	dsi := []byte{0x05, 0x02, 0x12, 0x10}
	dc := append([]byte{0x04, byte(13 + len(dsi)), 0x40, 0x15, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, dsi...)
	es := append([]byte{0x03, byte(3 + len(dc)), 0, 1, 0}, dc...)
	var esds ESDSBox
	if err := esds.Decode(append([]byte{0, 0, 0, 0}, es...)); err != nil {
		t.Error(err)
		return
	}
	if c := esds.DecoderConfig(); c == nil || c.ObjectTypeIndication != 0x40 {
		t.Errorf("decoder config %+v", c)
	}
	if !bytes.Equal(esds.DecoderSpecificInfo(), []byte{0x12, 0x10}) {
		t.Errorf("decoder specific info %x", esds.DecoderSpecificInfo())
	}
	t.Run("padding", func(t *testing.T) {
		dc := []byte{0x04, 13, 0x6b, 0x15, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		es := append([]byte{0x03, byte(3 + len(dc) + 1), 0, 1, 0}, dc...)
		var esds ESDSBox
		if err := esds.Decode(append(append([]byte{0, 0, 0, 0}, es...), 0)); err != nil {
			t.Error(err)
			return
		}
		if c := esds.DecoderConfig(); c == nil || c.ObjectTypeIndication != 0x6b {
			t.Errorf("decoder config %+v", c)
		}
	})
	t.Run("broken sibling", func(t *testing.T) {
		es := append([]byte{0x03, byte(3 + len(dc) + 2), 0, 1, 0}, dc...)
		es = append(es, 0x06, 0x7f)
		var esds ESDSBox
		if err := esds.Decode(append([]byte{0, 0, 0, 0}, es...)); !errors.Is(err, pkg.ErrMalformedAtom) {
			t.Errorf("expected malformed atom, got %v", err)
		}
		if c := esds.DecoderConfig(); c == nil || c.ObjectTypeIndication != 0x40 {
			t.Errorf("decoder config lost: %+v", c)
		}
	})
	t.Run("oversized", func(t *testing.T) {
		var esds ESDSBox
		if err := esds.Decode([]byte{0, 0, 0, 0, 0x03, 0x7f, 0, 1}); !errors.Is(err, pkg.ErrMalformedAtom) {
			t.Errorf("expected malformed atom, got %v", err)
		}
	})
}

func TestSampleEntry(t *testing.T) {
	body := make([]byte, 20)
	binary.BigEndian.PutUint16(body[8:], 2)
	binary.BigEndian.PutUint16(body[10:], 16)
	binary.BigEndian.PutUint32(body[16:], 44100<<16)
	body = append(body, header(10, "enda")...)
	body = append(body, 0, 1)
	entry := &SampleEntry{Format: f("sowt"), Body: body}
	if err := entry.DecodeAudio(); err != nil {
		t.Error(err)
		return
	}
	if a := entry.Audio; a.ChannelCount != 2 || a.SampleSize != 16 || a.SampleRate != 44100 {
		t.Errorf("unexpected %+v", a)
	}
	if enda := entry.Extension(TypeENDA); len(enda) != 2 || enda[1] != 1 {
		t.Errorf("enda %x", enda)
	}
	t.Run("short visual", func(t *testing.T) {
		entry := &SampleEntry{Format: f("avc1"), Body: make([]byte, 40)}
		if err := entry.DecodeVisual(); !errors.Is(err, pkg.ErrMalformedAtom) {
			t.Errorf("expected malformed atom, got %v", err)
		}
	})
}

func TestFileType(t *testing.T) {
	var ftyp FileTypeBox
	if err := ftyp.Decode([]byte("qt  \x20\x05\x03\x00qt  isom\x00")); err != nil {
		t.Error(err)
		return
	}
	if !ftyp.QuickTime() || ftyp.MinorVersion != 0x20050300 || len(ftyp.CompatibleBrands) != 2 {
		t.Errorf("unexpected %s", ftyp.String())
	}
	if err := ftyp.Decode([]byte("isom")); !errors.Is(err, pkg.ErrMalformedAtom) {
		t.Errorf("expected malformed atom, got %v", err)
	}
}

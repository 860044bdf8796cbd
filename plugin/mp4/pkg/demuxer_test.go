package mp4

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/klauspost/compress/zlib"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

const ms = 1_000_000

func TestSampleTables(t *testing.T) {
	t.Run("timecodes", func(t *testing.T) {
		file := movie(fill(12, 'v'), mvhd(1000, 60),
			videoTrak(1, 1000, stts(1, 10, 1, 20, 1, 30), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, ok := r.Track(1)
		if !ok || !track.OK {
			t.Errorf("track not usable: %v", track.Err)
			return
		}
		if tc := timecodes(track); !slices.Equal(tc, []int64{0, 10 * ms, 30 * ms}) {
			t.Errorf("timecodes %v", tc)
		}
		var total int64
		for i, e := range track.Index {
			total += e.Duration
			if e.Pos != dataStart+int64(4*i) || e.Size != 4 || !e.Keyframe {
				t.Errorf("entry %d: %s", i, e)
			}
		}
		if total != 60*ms {
			t.Errorf("total duration %d", total)
		}
		if v := track.Decision.Video; v == nil || v.Width != 320 || v.Height != 240 || !v.FrameRate.IsZero() {
			t.Errorf("video params %+v", v)
		}
	})
	t.Run("frame rate", func(t *testing.T) {
		file := movie(fill(12, 'v'), mvhd(1000, 100),
			videoTrak(1, 1000, stts(2, 40, 1, 20), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		v := track.Decision.Video
		if v.FrameRate != (codec.Rational{Num: 25, Den: 1}) || v.DefaultDuration != 40*ms {
			t.Errorf("frame rate %s duration %d", v.FrameRate, v.DefaultDuration)
		}
	})
	t.Run("composition offsets", func(t *testing.T) {
		file := movie(fill(12, 'v'), mvhd(1000, 30),
			videoTrak(1, 1000, stts(3, 10), ctts(1, 20, 2, 0), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if tc := timecodes(track); !slices.Equal(tc, []int64{20 * ms, 10 * ms, 20 * ms}) {
			t.Errorf("timecodes %v", tc)
		}
	})
	t.Run("keyframes", func(t *testing.T) {
		file := movie(fill(32, 'v'), mvhd(1000, 80),
			videoTrak(1, 1000, stts(8, 10), stsz(4, 8), stsc(1, 8, 1), stco(dataStart), stss(1, 5)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		var keys []int
		for i, e := range track.Index {
			if e.Keyframe {
				keys = append(keys, i)
			}
		}
		if len(track.Index) != 8 || !slices.Equal(keys, []int{0, 4}) {
			t.Errorf("%d entries, keyframes %v", len(track.Index), keys)
		}
	})
	t.Run("long duration map", func(t *testing.T) {
		file := movie(fill(12, 'v'), mvhd(1000, 120),
			videoTrak(1, 1000, stts(100_000_000, 40, 100_000_000, 40), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 3 {
			t.Errorf("%d entries", len(track.Index))
		}
		if v := track.Decision.Video; v.FrameRate != (codec.Rational{Num: 25, Den: 1}) {
			t.Errorf("frame rate %s", v.FrameRate)
		}
	})
	t.Run("constant size", func(t *testing.T) {
		file := movie(fill(40, 'a'), mvhd(1000, 10), pcmTrak(1, 1000, stts(10, 1), stsz(4, 10)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 10 {
			t.Errorf("%d entries", len(track.Index))
			return
		}
		if last := track.Index[9]; last.Pos != dataStart+36 || last.Size != 4 || last.Timecode != 9*ms {
			t.Errorf("last entry %s", last)
		}
	})
	t.Run("constant size past the data", func(t *testing.T) {
		file := movie(fill(40, 'a'), mvhd(1000, 10), pcmTrak(1, 1000, stts(1_000_000, 1), stsz(4, 1_000_000)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 10 {
			t.Errorf("%d entries", len(track.Index))
		}
		if r.records.Count(pkg.ErrInconsistentTables.Error()) != 1 {
			t.Error("oversized sample count not reported")
		}
	})
	t.Run("chunk past the end", func(t *testing.T) {
		file := movie(fill(12, 'v'), mvhd(1000, 30),
			videoTrak(1, 1000, stts(4_000_000_000, 10), stsz(4, 4_000_000_000), stsc(1, 4_000_000_000, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if n := len(track.Index); n < 3 || n > (len(file)-dataStart)/4 {
			t.Errorf("%d entries", n)
		}
		for i, e := range track.Index {
			if e.Pos+int64(e.Size) > int64(len(file)) {
				t.Errorf("entry %d ends past the file: %s", i, e)
			}
		}
	})
	t.Run("pcm chunks", func(t *testing.T) {
		file := movie(fill(16, 'a'), mvhd(1000, 4),
			pcmTrak(1, 1000, stts(4, 1), stsz(1, 4), stsc(1, 2, 1), stco(dataStart, dataStart+8)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 2 {
			t.Errorf("%d entries", len(track.Index))
			return
		}
		for i, e := range track.Index {
			if e.Size != 8 || e.Timecode != int64(i)*2*ms || e.Duration != 2*ms {
				t.Errorf("entry %d: %s", i, e)
			}
		}
		a := track.Decision.Audio
		if a.Channels != 2 || a.BitsPerSample != 16 || a.BigEndian {
			t.Errorf("audio params %+v", a)
		}
	})
	t.Run("inconsistent tables", func(t *testing.T) {
		file := movie(fill(20, 'v'), mvhd(1000, 50),
			videoTrak(1, 1000, stts(5, 10), stsz(0, 5, 4, 4, 4, 4, 4), stsc(1, 4, 1), stco(dataStart)))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 4 || !track.OK {
			t.Errorf("%d entries, ok %t", len(track.Index), track.OK)
		}
		if n := r.records.Count(pkg.ErrInconsistentTables.Error()); n != 1 {
			t.Errorf("inconsistent tables reported %d times", n)
		}
	})
}

func TestDurationMap(t *testing.T) {
	// expand walks the map one sample at a time through the decode time cursor
	expand := func(runs TimeToSampleBox) (deltas []uint32) {
		c := newDurationCursor(runs)
		for i := 0; i < int(runs.SampleTotal()); i++ {
			deltas = append(deltas, uint32(c.at(i+1)-c.at(i)))
		}
		return
	}
	for _, tc := range []struct {
		name string
		runs TimeToSampleBox
	}{
		{"multiple runs", TimeToSampleBox{{SampleCount: 3, SampleDelta: 10}, {SampleCount: 1, SampleDelta: 20}, {SampleCount: 2, SampleDelta: 10}}},
		{"single run", TimeToSampleBox{{SampleCount: 5, SampleDelta: 40}}},
		{"empty", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var collapsed TimeToSampleBox
			for _, delta := range expand(tc.runs) {
				collapsed = appendDurations(collapsed, 1, delta)
			}
			if !slices.Equal(collapsed, tc.runs) {
				t.Errorf("round trip gave %v, want %v", collapsed, tc.runs)
			}
		})
	}
	t.Run("merge", func(t *testing.T) {
		runs := TimeToSampleBox{{SampleCount: 100_000_000, SampleDelta: 40}, {SampleCount: 0, SampleDelta: 7}, {SampleCount: 100_000_000, SampleDelta: 40}, {SampleCount: 1, SampleDelta: 20}}
		want := TimeToSampleBox{{SampleCount: 200_000_000, SampleDelta: 40}, {SampleCount: 1, SampleDelta: 20}}
		if got := mergeDurations(runs); !slices.Equal(got, want) {
			t.Errorf("merged %v", got)
		}
	})
}

func TestRejectedTrack(t *testing.T) {
	file := movie(fill(8, 'v'), mvhd(1000, 10),
		videoTrak(1, 1000, stts(1, 10), stsz(0, 1, 4), stsc(1, 1, 1), stco(dataStart)),
		trak(2, "vide", 1000, sampleEntry("avc1", visualBody(320, 240)), stts(1, 10), stsz(0, 1, 4), stsc(1, 1, 1), stco(dataStart+4)))
	r, err := open(file)
	if err != nil {
		t.Error(err)
		return
	}
	if list := r.Identify(); len(list) != 1 || list[0].TrackID != 1 {
		t.Errorf("identify %+v", list)
	}
	if len(r.Tracks()) != 2 {
		t.Errorf("%d tracks", len(r.Tracks()))
	}
	rejected, _ := r.Track(2)
	if rejected.OK || !errors.Is(rejected.Err, pkg.ErrMissingRequiredParameter) {
		t.Errorf("avc1 without avcC: ok %t err %v", rejected.OK, rejected.Err)
	}
	factory := func(*codec.Decision) (pkg.Packetizer, error) { return pkg.NewRawWriter(&bytes.Buffer{}), nil }
	if err = r.CreatePacketizer(2, factory); !errors.Is(err, pkg.ErrNoPacketizer) {
		t.Errorf("expected no packetizer, got %v", err)
	}
	if err = r.CreatePacketizer(9, factory); !errors.Is(err, pkg.ErrUnknownTrack) {
		t.Errorf("expected unknown track, got %v", err)
	}
}

func TestTopLevel(t *testing.T) {
	moov := func(offset uint32) []byte {
		return box("moov", mvhd(1000, 30),
			videoTrak(1, 1000, stts(3, 10), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(offset)))
	}
	ftyp := box("ftyp", []byte("isom"), be32(0))
	t.Run("no tracks", func(t *testing.T) {
		file := append(slices.Clone(ftyp), box("mdat", fill(8, 0))...)
		r, err := open(file)
		if !errors.Is(err, pkg.ErrNoTracks) {
			t.Errorf("expected no tracks, got %v", err)
		}
		if err2 := r.ReadHeaders(); err2 != err {
			t.Errorf("second call returned %v", err2)
		}
	})
	t.Run("resync", func(t *testing.T) {
		var file []byte
		file = append(file, ftyp...)
		// an unknown atom is skipped, the undersized one forces a resync
		file = append(file, box("wxyz", fill(4, 0))...)
		file = append(file, 0, 0, 0, 2, 'x', 'x', 'x', 'x')
		file = append(file, box("mdat", fill(12, 'v'))...)
		file = append(file, moov(dataStart+8+12)...)
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if !track.OK || track.Index[0].Pos != dataStart+20 {
			t.Errorf("track after resync: ok %t, %v", track.OK, track.Index)
		}
		if r.records.Count(pkg.ErrMalformedAtom.Error()) == 0 {
			t.Error("corrupt atom not reported")
		}
	})
	t.Run("truncated mdat", func(t *testing.T) {
		size := len(ftyp) + len(moov(0))
		var file []byte
		file = append(file, ftyp...)
		file = append(file, moov(uint32(size+8))...)
		file = append(file, be32(1000)...)
		file = append(file, "mdat"...)
		file = append(file, fill(12, 'v')...)
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, _ := r.Track(1)
		if len(track.Index) != 3 {
			t.Errorf("%d entries", len(track.Index))
		}
		if len(r.mdat) != 1 || r.mdat[0][1] != int64(len(file)) {
			t.Errorf("mdat %v", r.mdat)
		}
	})
	t.Run("compressed movie", func(t *testing.T) {
		inner := moov(dataStart)
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(inner)
		w.Close()
		file := movie(fill(12, 'v'), box("cmov", box("dcom", []byte("zlib")), box("cmvd", be32(uint32(len(inner))), z.Bytes())))
		r, err := open(file)
		if err != nil {
			t.Error(err)
			return
		}
		track, ok := r.Track(1)
		if !ok || len(track.Index) != 3 || r.MovieTimescale != 1000 {
			t.Errorf("compressed movie not parsed: %v", track)
		}
	})
	t.Run("sniff", func(t *testing.T) {
		if !Probe(bytes.NewReader(movie(nil, moov(dataStart)))) {
			t.Error("movie not detected")
		}
		if Probe(bytes.NewReader([]byte("plain text, not a movie"))) {
			t.Error("text detected as movie")
		}
	})
}

func TestEditList(t *testing.T) {
	base := func() []byte {
		return videoTrak(1, 1000, stts(1, 10, 1, 20, 1, 30), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart))
	}
	for _, tc := range []struct {
		name  string
		edits []uint32
		want  []int64
	}{
		{"identity", []uint32{60, 0, 0x10000}, []int64{0, 10 * ms, 30 * ms}},
		{"empty edit", []uint32{500, 0xffffffff, 0x10000, 60, 0, 0x10000}, []int64{500 * ms, 510 * ms, 530 * ms}},
		{"media start", []uint32{50, 10, 0x10000}, []int64{0, 20 * ms}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			file := movie(fill(12, 'v'), mvhd(1000, 60), withChild(base(), elst(tc.edits...)))
			r, err := open(file)
			if err != nil {
				t.Error(err)
				return
			}
			track, _ := r.Track(1)
			if got := timecodes(track); !slices.Equal(got, tc.want) {
				t.Errorf("timecodes %v, want %v", got, tc.want)
			}
		})
	}
	t.Run("dwell", func(t *testing.T) {
		entries := []pkg.IndexEntry{{Timecode: 0, Duration: 10 * ms}, {Timecode: 10 * ms, Duration: 10 * ms}}
		out := applyEditList(entries, EditListBox{{SegmentDuration: 2000, MediaTime: 15}}, 1000, 1000)
		if len(out) != 1 || out[0].Timecode != 0 || out[0].Duration != 2000*ms {
			t.Errorf("dwell %v", out)
		}
	})
}

func TestLanguage(t *testing.T) {
	for _, tc := range []struct {
		mdhd MediaHeaderBox
		want string
	}{
		{MediaHeaderBox{RawLanguage: 0}, "eng"},
		{MediaHeaderBox{RawLanguage: 11}, "jpn"},
		{MediaHeaderBox{RawLanguage: 0x3ff}, "und"},
		{MediaHeaderBox{RawLanguage: 0x15c7, Language: "eng"}, "eng"},
		{MediaHeaderBox{RawLanguage: 0x55c4, Language: "und"}, "und"},
	} {
		if got := languageOf(tc.mdhd); got != tc.want {
			t.Errorf("language %d/%q: %q, want %q", tc.mdhd.RawLanguage, tc.mdhd.Language, got, tc.want)
		}
	}
}

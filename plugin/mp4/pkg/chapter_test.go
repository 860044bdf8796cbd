package mp4

import (
	"encoding/binary"
	"slices"
	"testing"

	"m7s.live/qtmp4/pkg/codec"
	"m7s.live/qtmp4/pkg/util"
)

func chpl(chapters ...ChapterEntry) []byte {
	b := append(be32(0), byte(len(chapters)))
	for _, c := range chapters {
		b = binary.BigEndian.AppendUint64(b, uint64(c.Timecode/100))
		b = append(b, byte(len(c.Name)))
		b = append(b, c.Name...)
	}
	return fullBox("chpl", 1, 0, b)
}

func ilstItem(key string, typ uint32, value []byte) []byte {
	return box(key, box("data", be32(typ, 0), value))
}

func TestChapters(t *testing.T) {
	video := videoTrak(1, 1000, stts(3, 10), stsz(0, 3, 4, 4, 4), stsc(1, 3, 1), stco(dataStart))
	t.Run("nero", func(t *testing.T) {
		udta := box("udta", chpl(
			ChapterEntry{Name: "Caf\xe9", Timecode: 60_000_000_000},
			ChapterEntry{Name: "Intro", Timecode: 0},
		))
		r, err := open(movie(fill(12, 'v'), mvhd(1000, 30), video, udta))
		if err != nil {
			t.Error(err)
			return
		}
		want := []ChapterEntry{{"Intro", 0}, {"Café", 60_000_000_000}}
		if got := r.Chapters(); !slices.Equal(got, want) {
			t.Errorf("chapters %v, want %v", got, want)
		}
	})
	t.Run("chapter track", func(t *testing.T) {
		samples := append(append(be16(5), "First"...), append(be16(4), "Next"...)...)
		mdat := append(fill(12, 'v'), samples...)
		text := trak(2, "text", 1000, sampleEntry("text", make([]byte, 16)),
			stts(2, 5000), stsz(0, 2, 7, 6), stsc(1, 1, 1), stco(dataStart+12, dataStart+19))
		r, err := open(movie(mdat, mvhd(1000, 10000), withChild(video, box("tref", box("chap", be32(2)))), text))
		if err != nil {
			t.Error(err)
			return
		}
		want := []ChapterEntry{{"First", 0}, {"Next", 5_000_000_000}}
		if got := r.Chapters(); !slices.Equal(got, want) {
			t.Errorf("chapters %v, want %v", got, want)
		}
		if track, _ := r.Track(2); track.Type != TrackChapter || track.OK {
			t.Errorf("text track %s ok %t", track.Type, track.OK)
		}
		if list := r.Identify(); len(list) != 1 {
			t.Errorf("identify %+v", list)
		}
	})
}

func TestTags(t *testing.T) {
	smpb := " 00000000 00000840 000001CA 0000000000046E00"
	meta := fullBox("meta", 0, 0,
		hdlr("mdir", ""),
		box("ilst",
			ilstItem("\xa9nam", 1, []byte("Title")),
			ilstItem("\xa9ART", 2, []byte{0, 'T', 0, 'i'}),
			ilstItem("\xa9alb", 2, []byte{0xff, 0xfe, 'L', 0, 'P', 0}),
			ilstItem("trkn", 0, []byte{0, 0, 0, 3, 0, 10, 0, 0}),
			ilstItem("tmpo", 21, be16(120)),
			ilstItem("covr", 13, []byte{0xff, 0xd8}),
			box("----",
				fullBox("mean", 0, 0, []byte("com.apple.iTunes")),
				fullBox("name", 0, 0, []byte("iTunSMPB")),
				box("data", be32(1, 0), []byte(smpb)),
			),
		),
	)
	aac := trak(1, "soun", 44100, sampleEntry("mp4a", audioBody(2, 16, 44100), esds(0x40, []byte{0x12, 0x10})),
		stts(1, 1024), stsz(0, 1, 4), stsc(1, 1, 1), stco(dataStart))
	r, err := open(movie(fill(4, 'a'), mvhd(1000, 23), aac, box("udta", meta)))
	if err != nil {
		t.Error(err)
		return
	}
	tags := r.Tags()
	for key, want := range map[string]string{
		"title":                     "Title",
		"artist":                    "Ti",
		"album":                     "LP",
		"track":                     "3/10",
		"tmpo":                      "120",
		"com.apple.iTunes:iTunSMPB": smpb,
	} {
		if tags[key] != want {
			t.Errorf("tag %s = %q, want %q", key, tags[key], want)
		}
	}
	if _, ok := tags["covr"]; ok {
		t.Error("cover art kept as text")
	}
	track, _ := r.Track(1)
	if !track.OK {
		t.Error(track.Err)
		return
	}
	d := track.Decision
	if d.Family != codec.FamilyAAC || d.Audio.SampleRate != 44100 || d.Audio.Channels != 2 {
		t.Errorf("decision %s", d)
	}
	if want := util.ToNanoseconds(0x840, 44100); d.EncoderDelay != want {
		t.Errorf("encoder delay %d, want %d", d.EncoderDelay, want)
	}
}

func TestRecode(t *testing.T) {
	d := NewDemuxer(nil)
	for _, tc := range []struct {
		in   []byte
		want string
	}{
		{[]byte("plain"), "plain"},
		{[]byte("Caf\xe9"), "Café"},
		{[]byte{0xfe, 0xff, 0, 'h', 0, 'i'}, "hi"},
		{[]byte{0xff, 0xfe, 'o', 0, 'k', 0}, "ok"},
	} {
		if got := d.recode(tc.in); got != tc.want {
			t.Errorf("recode %x = %q, want %q", tc.in, got, tc.want)
		}
	}
}

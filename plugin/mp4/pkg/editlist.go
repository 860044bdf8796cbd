package mp4

import (
	"math"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/util"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

// applyEditList maps media timecodes onto the presentation timeline.
// Segment durations are in the movie time scale, media times in the track's.
// Empty segments insert a gap, dwell segments hold the entry covering their
// media time, and every other segment keeps the entries overlapping its media
// span, shifted by the presentation offset reached so far. Entries outside all
// segments are dropped.
func applyEditList(entries []pkg.IndexEntry, edits EditListBox, movieTimescale, mediaTimescale uint32) []pkg.IndexEntry {
	last := -1
	for i, e := range edits {
		if !e.Empty() {
			last = i
		}
	}
	var offset int64
	if last < 0 {
		for _, e := range edits {
			offset += util.ToNanoseconds(int64(e.SegmentDuration), movieTimescale)
		}
		out := make([]pkg.IndexEntry, len(entries))
		for i, e := range entries {
			e.Timecode += offset
			out[i] = e
		}
		return out
	}
	out := make([]pkg.IndexEntry, 0, len(entries))
	for i, edit := range edits {
		duration := util.ToNanoseconds(int64(edit.SegmentDuration), movieTimescale)
		if edit.Empty() {
			offset += duration
			continue
		}
		mediaStart := util.ToNanoseconds(edit.MediaTime, mediaTimescale)
		if edit.Dwell() {
			if e, ok := covering(entries, mediaStart); ok {
				e.Timecode, e.Duration = offset, duration
				out = append(out, e)
			}
			offset += duration
			continue
		}
		mediaEnd := int64(math.MaxInt64)
		if i != last && edit.SegmentDuration != 0 {
			mediaEnd = mediaStart + duration
		}
		delta := offset - mediaStart
		for _, e := range entries {
			if e.Timecode >= mediaEnd || e.Timecode < mediaStart && e.Timecode+e.Duration <= mediaStart {
				continue
			}
			e.Timecode += delta
			out = append(out, e)
		}
		offset += duration
	}
	return out
}

func covering(entries []pkg.IndexEntry, t int64) (pkg.IndexEntry, bool) {
	for _, e := range entries {
		if e.Timecode <= t && t < e.Timecode+max(e.Duration, 1) {
			return e, true
		}
	}
	return pkg.IndexEntry{}, false
}

package mp4

import (
	"cmp"
	"slices"

	"m7s.live/qtmp4/pkg"
)

type placement struct {
	timecode int64
	pos      int64
	track    uint32
}

// detectInterleaving walks every track's entries in timecode order and
// reports whether the file position never jumps back by more than window.
// Tracks stored one after another fail this check, which turns read-ahead off.
func detectInterleaving(tracks []*Track, window int64, diag *pkg.Diag) bool {
	var all []placement
	active := 0
	for _, t := range tracks {
		if !t.OK || len(t.Index) == 0 {
			continue
		}
		active++
		for _, e := range t.Index {
			all = append(all, placement{e.Timecode, e.Pos, t.TrackID})
		}
	}
	if active < 2 {
		return true
	}
	slices.SortStableFunc(all, func(a, b placement) int {
		return cmp.Compare(a.timecode, b.timecode)
	})
	var furthest int64
	for i, p := range all {
		if p.pos+window < furthest {
			diag.Debug(pkg.DebugInterleaving, "not interleaved", "track", p.track, "entry", i, "pos", p.pos, "furthest", furthest)
			return false
		}
		furthest = max(furthest, p.pos)
	}
	diag.Debug(pkg.DebugInterleaving, "interleaved", "tracks", active, "entries", len(all))
	return true
}

package mp4

import (
	"fmt"
	"math"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	"m7s.live/qtmp4/pkg/util"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

// span is the run of samples one index entry covers.
type span struct {
	first, count int
}

func (d *Demuxer) finalizeTrack(t *Track) error {
	if t.Timescale == 0 {
		t.Err = fmt.Errorf("%w: track has no media time scale", pkg.ErrMissingRequiredParameter)
		return d.fault(t, t.Err)
	}
	t.Index = append(d.buildIndex(t), t.fragmentEntries...)
	t.fragmentEntries = nil
	if len(t.Edits) > 0 {
		before := len(t.Index)
		t.Index = applyEditList(t.Index, t.Edits, d.MovieTimescale, t.Timescale)
		d.diag.Debug(pkg.DebugEditLists, "edit list applied", "track", t.TrackID, "segments", len(t.Edits), "before", before, "after", len(t.Index))
	}
	d.diag.Debug(pkg.DebugIndexes, "index", "track", t.TrackID, "entries", len(t.Index), "chunks", len(t.Chunks), "fragmented", t.Fragmented)
	if d.diag.On(pkg.DebugIndexesFull) {
		for i, e := range t.Index {
			d.diag.Debug(pkg.DebugIndexesFull, e.String(), "track", t.TrackID, "index", i)
		}
	}
	if t.Type == TrackChapter {
		return nil
	}
	decision, err := d.resolve(t)
	if err != nil {
		t.Err = err
		return d.fault(t, err)
	}
	t.Decision, t.OK = decision, true
	return nil
}

func (d *Demuxer) buildIndex(t *Track) []pkg.IndexEntry {
	if !t.hasSizes || t.SampleCount == 0 && t.SampleSize == 0 {
		return nil
	}
	size := t.SampleSize
	pcm := t.isPCM()
	if pcm && size == 1 {
		if frame := t.pcmFrameBytes(); frame > 0 {
			size = frame
		}
	}
	if t.SampleSize != 0 && (!t.hasChunkMap || !t.hasChunkOffsets) {
		return d.constantSizeIndex(t, size)
	}
	sizeOf := func(i int) uint32 {
		if t.SampleSize != 0 {
			return size
		}
		return t.Sizes[i]
	}
	t.Chunks = expandChunkMap(t.ChunkOffsets, t.ChunkMap)
	if t.SampleSize != 0 {
		d.clampChunks(t, size)
	}
	n := int(t.SampleCount)
	var inChunks uint64
	for _, c := range t.Chunks {
		inChunks += uint64(c.Samples)
	}
	if inChunks != uint64(n) {
		d.fault(t, fmt.Errorf("%w: chunk map covers %d samples, sample table holds %d", pkg.ErrInconsistentTables, inChunks, n))
		n = int(min(inChunks, uint64(n)))
	}
	if total := t.Durations.SampleTotal(); len(t.Durations) > 0 && total != uint64(n) {
		d.fault(t, fmt.Errorf("%w: time to sample table covers %d samples, sample table holds %d", pkg.ErrInconsistentTables, total, n))
		n = int(min(total, uint64(n)))
	}
	entries := make([]pkg.IndexEntry, 0, n)
	var spans []span
	i := 0
	for ci := range t.Chunks {
		c := &t.Chunks[ci]
		pos, start := c.Pos, i
		for j := uint32(0); j < c.Samples && i < n; j++ {
			size := sizeOf(i)
			entries = append(entries, pkg.IndexEntry{Pos: pos, Size: size})
			pos += int64(size)
			i++
		}
		c.Size = pos - c.Pos
		if pcm && i > start {
			spans = append(spans, span{start, i - start})
		}
	}
	if pcm {
		entries = coalesce(entries, spans)
	}
	d.timecodes(t, entries, spans)
	return entries
}

func (d *Demuxer) constantSizeIndex(t *Track, size uint32) []pkg.IndexEntry {
	var start, total int64
	if len(t.ChunkOffsets) > 0 {
		start = int64(t.ChunkOffsets[0])
	} else if len(d.mdat) > 0 {
		start = d.mdat[0][0]
	}
	limit := d.stream.Size() - start
	for _, m := range d.mdat {
		if m.Within(start) {
			limit = min(limit, m[1]-start)
			break
		}
	}
	if t.SampleCount > 0 {
		total = int64(t.SampleCount) * int64(size)
	} else if len(d.mdat) > 0 {
		total = d.mdat[0].Size()
	}
	if total > limit {
		d.fault(t, fmt.Errorf("%w: %d bytes of constant size samples, %d available", pkg.ErrInconsistentTables, total, max(limit, 0)))
		total = limit
	}
	entries := constantSizeEntries(start, total, size)
	d.diag.Debug(pkg.DebugIndexes, "constant sample size", "track", t.TrackID, "size", size, "start", start, "bytes", total, "entries", len(entries))
	d.timecodes(t, entries, nil)
	return entries
}

// constantSizeEntries splits total bytes starting at start into blocks of size bytes.
func constantSizeEntries(start, total int64, size uint32) []pkg.IndexEntry {
	if size == 0 || total <= 0 {
		return nil
	}
	n := total / int64(size)
	entries := make([]pkg.IndexEntry, n)
	for i := range entries {
		entries[i] = pkg.IndexEntry{Pos: start + int64(i)*int64(size), Size: size}
	}
	return entries
}

// clampChunks limits the sample count of every chunk to the samples of size
// bytes that fit before the end of the stream.
func (d *Demuxer) clampChunks(t *Track, size uint32) {
	end := d.stream.Size()
	for i := range t.Chunks {
		c := &t.Chunks[i]
		fit := uint32(0)
		if c.Pos < end {
			fit = uint32(min((end-c.Pos)/int64(size), int64(c.Samples)))
		}
		if fit < c.Samples {
			d.fault(t, fmt.Errorf("%w: chunk %d at %d holds %d samples, %d fit in the file", pkg.ErrInconsistentTables, i+1, c.Pos, c.Samples, fit))
			c.Samples = fit
		}
	}
}

// expandChunkMap resolves the run-length sample-to-chunk table against the
// chunk offsets.
func expandChunkMap(offsets []uint64, stsc SampleToChunkBox) []ChunkEntry {
	chunks := make([]ChunkEntry, len(offsets))
	if len(stsc) == 0 {
		return chunks
	}
	run := 0
	for i, off := range offsets {
		number := uint32(i + 1)
		for run+1 < len(stsc) && stsc[run+1].FirstChunk <= number {
			run++
		}
		chunks[i] = ChunkEntry{
			Pos:     int64(off),
			Samples: stsc[run].SamplesPerChunk,
			DescID:  stsc[run].SampleDescriptionIndex,
		}
	}
	return chunks
}

// coalesce merges the entries of each span into one entry.
func coalesce(entries []pkg.IndexEntry, spans []span) []pkg.IndexEntry {
	merged := make([]pkg.IndexEntry, len(spans))
	for i, s := range spans {
		e := entries[s.first]
		for _, next := range entries[s.first+1 : s.first+s.count] {
			e.Size += next.Size
		}
		merged[i] = e
	}
	return merged
}

// timecodes fills timecode, duration and keyframe flag. Every value is scaled
// from the absolute decode time of its first sample so rounding never drifts.
func (d *Demuxer) timecodes(t *Track, entries []pkg.IndexEntry, spans []span) {
	dts := newDurationCursor(t.Durations)
	cto := newOffsetCursor(t.FrameOffsets)
	key := d.keyframes(t)
	for i := range entries {
		s := span{i, 1}
		if spans != nil {
			s = spans[i]
		}
		start, end := dts.at(s.first), dts.at(s.first+s.count)
		e := &entries[i]
		e.Timecode = util.ToNanoseconds(start+cto.at(s.first), t.Timescale)
		e.Duration = util.ToNanoseconds(end, t.Timescale) - util.ToNanoseconds(start, t.Timescale)
		e.Keyframe = key(s.first)
	}
}

func (d *Demuxer) keyframes(t *Track) func(int) bool {
	if !t.HasKeyframeTable {
		return func(int) bool { return true }
	}
	sync := make(map[int]struct{}, len(t.Keyframes))
	for _, n := range t.Keyframes {
		sync[int(n)-1] = struct{}{}
	}
	var rap func(int) bool
	if d.opts.KeyframeOpenGOP && t.RapGroups != nil && t.RapMapping != nil {
		rap = newGroupCursor(t.RapMapping, len(t.RapGroups.Entries)).member
	}
	return func(i int) bool {
		if _, ok := sync[i]; ok {
			return true
		}
		return rap != nil && rap(i)
	}
}

// durationCursor answers cumulative decode time queries for non-decreasing
// sample numbers without expanding the table.
type durationCursor struct {
	runs       TimeToSampleBox
	run        int
	runStart   int
	timeBefore int64
	lastDelta  int64
}

func newDurationCursor(runs TimeToSampleBox) *durationCursor {
	return &durationCursor{runs: runs}
}

func (c *durationCursor) at(sample int) int64 {
	for c.run < len(c.runs) {
		r := c.runs[c.run]
		if sample < c.runStart+int(r.SampleCount) {
			return c.timeBefore + int64(sample-c.runStart)*int64(r.SampleDelta)
		}
		c.timeBefore += int64(r.SampleCount) * int64(r.SampleDelta)
		c.runStart += int(r.SampleCount)
		c.lastDelta = int64(r.SampleDelta)
		c.run++
	}
	return c.timeBefore + int64(sample-c.runStart)*c.lastDelta
}

type offsetCursor struct {
	runs     CompositionOffsetBox
	run      int
	runStart int
}

func newOffsetCursor(runs CompositionOffsetBox) *offsetCursor {
	return &offsetCursor{runs: runs}
}

func (c *offsetCursor) at(sample int) int64 {
	for c.run < len(c.runs) {
		r := c.runs[c.run]
		if sample < c.runStart+int(r.SampleCount) {
			return int64(r.SampleOffset)
		}
		c.runStart += int(r.SampleCount)
		c.run++
	}
	return 0
}

type groupCursor struct {
	runs     []SBGPEntry
	groups   uint32
	run      int
	runStart int
}

func newGroupCursor(sbgp *SbgpBox, groups int) *groupCursor {
	return &groupCursor{runs: sbgp.Entries, groups: uint32(groups)}
}

func (c *groupCursor) member(sample int) bool {
	for c.run < len(c.runs) {
		r := c.runs[c.run]
		if sample < c.runStart+int(r.SampleCount) {
			return r.GroupDescriptionIndex > 0 && r.GroupDescriptionIndex <= c.groups
		}
		c.runStart += int(r.SampleCount)
		c.run++
	}
	return false
}

// appendDurations adds count samples of delta to the duration map, growing
// the last run when it has the same delta.
func appendDurations(runs TimeToSampleBox, count, delta uint32) TimeToSampleBox {
	if count == 0 {
		return runs
	}
	if n := len(runs); n > 0 && runs[n-1].SampleDelta == delta && runs[n-1].SampleCount <= math.MaxUint32-count {
		runs[n-1].SampleCount += count
		return runs
	}
	return append(runs, STTSEntry{SampleCount: count, SampleDelta: delta})
}

// mergeDurations joins neighbouring runs with equal deltas and drops empty runs.
func mergeDurations(runs TimeToSampleBox) (merged TimeToSampleBox) {
	for _, r := range runs {
		merged = appendDurations(merged, r.SampleCount, r.SampleDelta)
	}
	return
}

func (t *Track) isPCM() bool {
	family, ok := FamilyByFormat(t.format())
	return ok && family == codec.FamilyPCM
}

// pcmFrameBytes is the size of one audio frame across all channels.
func (t *Track) pcmFrameBytes() uint32 {
	if t.Desc == nil || t.Desc.Audio == nil {
		return 0
	}
	a := t.Desc.Audio
	if a.Version == 2 && a.BytesPerFrame > 0 {
		return a.BytesPerFrame
	}
	bits := uint32(a.SampleSize)
	if fixed, _, _ := PCMLayout(t.Desc.Format); fixed > 0 {
		bits = uint32(fixed)
	}
	return a.ChannelCount * ((bits + 7) / 8)
}

package mp4

import (
	"fmt"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/util"
)

type ReadStatus int

const (
	EntryReady ReadStatus = iota
	EndOfTrack
	ReadError
)

func (s ReadStatus) String() string {
	switch s {
	case EntryReady:
		return "entry ready"
	case EndOfTrack:
		return "end of track"
	}
	return "read error"
}

func (d *Demuxer) ready() error {
	if !d.headersRead {
		return pkg.ErrHeadersNotRead
	}
	return d.headerErr
}

// CreatePacketizers attaches a packetizer to every track that passed codec
// verification. Chapter tracks never get one.
func (d *Demuxer) CreatePacketizers(factory pkg.PacketizerFactory) error {
	if err := d.ready(); err != nil {
		return err
	}
	for _, t := range d.tracks.Items {
		if !t.OK || t.packetizer != nil {
			continue
		}
		if err := d.CreatePacketizer(t.TrackID, factory); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demuxer) CreatePacketizer(trackID uint32, factory pkg.PacketizerFactory) error {
	if err := d.ready(); err != nil {
		return err
	}
	t, ok := d.tracks.Get(trackID)
	if !ok {
		return fmt.Errorf("%w: %d", pkg.ErrUnknownTrack, trackID)
	}
	if !t.OK {
		return fmt.Errorf("%w: track %d was rejected: %v", pkg.ErrNoPacketizer, trackID, t.Err)
	}
	if t.packetizer != nil {
		return nil
	}
	p, err := factory(t.Decision)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: track %d (%s)", pkg.ErrNoPacketizer, trackID, t.Decision.Family)
	}
	t.packetizer = p
	for _, e := range t.Index {
		d.totalBytes += int64(e.Size)
	}
	d.logger.Info("packetizer created", "track", trackID, "codec", t.Decision.String(), "entries", len(t.Index))
	return nil
}

// next picks the packetized track whose next entry has the smallest
// timecode. Ties go to the track listed first.
func (d *Demuxer) next() (best *Track) {
	for _, t := range d.tracks.Items {
		if !t.remaining() {
			continue
		}
		if best == nil || t.Index[t.cursor].Timecode < best.Index[best.cursor].Timecode {
			best = t
		}
	}
	return
}

// Read delivers the next entry in global timecode order. With force the
// next entry of track is delivered even if another track is earlier.
// EndOfTrack is returned once track has nothing left, or, for a nil
// track, once every packetized track is exhausted.
func (d *Demuxer) Read(track *Track, force bool) (ReadStatus, error) {
	if err := d.ready(); err != nil {
		return ReadError, err
	}
	if track != nil {
		if track.packetizer == nil {
			return ReadError, fmt.Errorf("%w: track %d", pkg.ErrNoPacketizer, track.TrackID)
		}
		if !track.remaining() {
			return EndOfTrack, nil
		}
	}
	t := track
	if t == nil || !force {
		if t = d.next(); t == nil {
			return EndOfTrack, nil
		}
	}
	if err := d.deliver(t); err != nil {
		return ReadError, err
	}
	return EntryReady, nil
}

func (d *Demuxer) deliver(t *Track) error {
	e := t.Index[t.cursor]
	data, err := d.sample(e)
	if err != nil {
		return err
	}
	t.cursor++
	t.delivered += int64(e.Size)
	if err = t.packetizer.ProcessSample(data, e); err != nil {
		return fmt.Errorf("track %d entry %d: %w", t.TrackID, t.cursor-1, err)
	}
	if !t.remaining() {
		d.diag.Debug(pkg.DebugIndexes, "end of track", "track", t.TrackID, "entries", t.cursor)
		return t.packetizer.Flush()
	}
	return nil
}

// sample returns the payload of e. Interleaved files are read through a
// read-ahead window so neighbouring entries share one read.
func (d *Demuxer) sample(e pkg.IndexEntry) ([]byte, error) {
	data := make([]byte, e.Size)
	n := int64(e.Size)
	if !d.interleaved || n > int64(d.opts.ReadAhead) {
		return data, pkg.ReadFull(d.stream, data, e.Pos)
	}
	if !d.readWindow.Covers(e.Pos, n) {
		size := min(int64(d.opts.ReadAhead), d.stream.Size()-e.Pos)
		if size < n {
			size = n
		}
		if int64(cap(d.readBuf)) < size {
			d.readBuf = make([]byte, size)
		}
		d.readBuf = d.readBuf[:size]
		if err := pkg.ReadFull(d.stream, d.readBuf, e.Pos); err != nil {
			d.readWindow = util.Range[int64]{}
			return nil, err
		}
		d.readWindow = util.Range[int64]{e.Pos, e.Pos + size}
	}
	off := e.Pos - d.readWindow[0]
	copy(data, d.readBuf[off:off+n])
	return data, nil
}

// Progress is the share of packetized payload bytes delivered so far, 0 to 100.
func (d *Demuxer) Progress() int {
	if d.totalBytes == 0 {
		return 0
	}
	var delivered int64
	for _, t := range d.tracks.Items {
		delivered += t.delivered
	}
	return int(delivered * 100 / d.totalBytes)
}

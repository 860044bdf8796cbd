package mp4

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/util"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

const (
	probeHeaders = 16
	probeBytes   = 1 << 20
	resyncBuffer = 64 << 10
)

type Demuxer struct {
	stream pkg.ByteStream
	opts   Options
	logger *slog.Logger
	diag   *pkg.Diag

	tracks         util.Collection[uint32, *Track]
	trex           map[uint32]*TrackExtendsBox
	MovieTimescale uint32
	MovieDuration  uint64
	// Brand is the first ftyp, nil for files without one
	Brand *FileTypeBox

	chapters      []ChapterEntry
	chapterTracks []uint32
	tags          map[string]string
	encoderDelay  uint32
	mdat          []util.Range[int64]

	sawMoov, sawMoof bool
	headersRead      bool
	headerErr        error
	interleaved      bool

	readBuf    []byte
	readWindow util.Range[int64]
	totalBytes int64
}

// how to demux a QuickTime/MP4 file
// 1. NewDemuxer
// 2. ReadHeaders
// 3. CreatePacketizers
// 4. Read until EndOfTrack

func NewDemuxer(stream pkg.ByteStream, opts ...Option) *Demuxer {
	d := &Demuxer{
		stream: stream,
		opts:   DefaultOptions(),
		trex:   make(map[uint32]*TrackExtendsBox),
		tags:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.diag = pkg.NewDiag(d.logger, pkg.ParseDebugTopics(d.opts.Debug))
	return d
}

// Probe sniffs the first top-level atoms without a full parse.
func Probe(stream pkg.ByteStream) bool {
	size := stream.Size()
	limit := min(size, probeBytes)
	found := false
	for pos, i := int64(0), 0; i < probeHeaders && pos+BasicBoxLen <= limit; i++ {
		atom, err := ReadAtom(stream, pos, size)
		if err != nil || !TopLevel[atom.Type] {
			break
		}
		switch atom.Type {
		case TypeMOOV, TypeMDAT, TypeFTYP, TypeMOOF, TypeWIDE, TypeFREE, TypeSKIP:
			found = true
		}
		pos = atom.End()
	}
	return found
}

// ReadHeaders parses the whole atom tree and builds every track index. Only
// the first call does any work.
func (d *Demuxer) ReadHeaders() error {
	if d.headersRead {
		return d.headerErr
	}
	d.headersRead = true
	d.headerErr = d.readHeaders()
	return d.headerErr
}

func (d *Demuxer) readHeaders() (err error) {
	if err = d.parseTopLevel(); err != nil {
		return
	}
	if !d.sawMoov && !d.sawMoof {
		return fmt.Errorf("%w: neither moov nor moof found", pkg.ErrNoTracks)
	}
	if d.tracks.Len() == 0 {
		return pkg.ErrNoTracks
	}
	d.tracks.Rekey()
	d.markChapterTracks()
	for _, t := range d.tracks.Items {
		if err = d.finalizeTrack(t); err != nil {
			return
		}
	}
	d.readChapterTracks()
	d.sortChapters()
	d.interleaved = detectInterleaving(d.tracks.Items, d.opts.InterleaveWindow, d.diag)
	return nil
}

func (d *Demuxer) parseTopLevel() error {
	size := d.stream.Size()
	st := &parseState{r: d.stream}
	for pos := int64(0); pos < size; {
		atom, err := ReadAtom(d.stream, pos, size)
		if err == io.EOF {
			break
		}
		if errors.Is(err, pkg.ErrMalformedAtom) {
			if atom.Type == TypeMDAT {
				// truncated files usually end inside the payload
				d.diag.Warn(0, err, "clamped", size-pos)
				atom.Size = size - pos
				err = nil
			} else {
				d.diag.Warn(0, err)
				next, rerr := d.resync(pos + 1)
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return rerr
				}
				pos = next
				continue
			}
		}
		if err != nil {
			return err
		}
		d.diag.Debug(pkg.DebugHeaders, TypeName(atom.Type), "offset", atom.Offset, "size", atom.Size)
		switch atom.Type {
		case TypeMDAT:
			d.mdat = append(d.mdat, util.Range[int64]{atom.PayloadOffset(), atom.End()})
		case TypeFTYP:
			if d.Brand == nil {
				err = d.handleFtyp(atom)
			}
		case TypeMOOV, TypeMOOF:
			err = d.dispatch(st, atom)
		}
		if err != nil {
			return err
		}
		pos = atom.End()
	}
	return nil
}

func (d *Demuxer) handleFtyp(atom Atom) error {
	b, err := ReadPayload(d.stream, atom)
	if err != nil {
		return err
	}
	var ftyp FileTypeBox
	if err = ftyp.Decode(b); err != nil {
		return d.fault(nil, err)
	}
	d.Brand = &ftyp
	d.diag.Debug(pkg.DebugHeaders, "file type", "brand", ftyp.String())
	return nil
}

// resync scans forward from pos for a known top-level atom whose header fits
// in the file.
func (d *Demuxer) resync(from int64) (int64, error) {
	size := d.stream.Size()
	limit := from + d.opts.ResyncLookahead
	buf := make([]byte, resyncBuffer)
	for pos := from; pos < limit; {
		if pos+BasicBoxLen > size {
			d.diag.Debug(pkg.DebugResync, "end of file while resynchronising", "from", from)
			return 0, io.EOF
		}
		n := min(int64(len(buf)), size-pos)
		if err := pkg.ReadFull(d.stream, buf[:n], pos); err != nil {
			return 0, err
		}
		for i := int64(0); i+BasicBoxLen <= n && pos+i < limit; i++ {
			if !TopLevel[[4]byte(buf[i+4:i+8])] {
				continue
			}
			if atom, err := ReadAtom(d.stream, pos+i, size); err == nil {
				d.diag.Debug(pkg.DebugResync, "resynchronised", "from", from, "atom", atom)
				return atom.Offset, nil
			}
		}
		pos += n - BasicBoxLen + 1
	}
	return 0, fmt.Errorf("%w: nothing within %d bytes of %d", pkg.ErrNoSegmentFound, d.opts.ResyncLookahead, from)
}

// fault reports a non-fatal error once per track and kind. Fatal errors are
// returned unchanged.
func (d *Demuxer) fault(t *Track, err error) error {
	if err == nil {
		return nil
	}
	if pkg.Fatal(err) {
		return err
	}
	var id uint32
	if t != nil {
		id = t.TrackID
	}
	d.diag.Warn(id, err)
	return nil
}

func (d *Demuxer) Tracks() []*Track {
	return d.tracks.Items
}

func (d *Demuxer) Track(trackID uint32) (*Track, bool) {
	return d.tracks.Get(trackID)
}

// Identify lists the tracks that passed codec verification.
func (d *Demuxer) Identify() (list []TrackSummary) {
	for _, t := range d.tracks.Items {
		if t.OK {
			list = append(list, t.summary())
		}
	}
	return
}

func (d *Demuxer) Chapters() []ChapterEntry {
	return d.chapters
}

func (d *Demuxer) Tags() map[string]string {
	return d.tags
}

func (d *Demuxer) Interleaved() bool {
	return d.interleaved
}

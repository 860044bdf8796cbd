package mp4

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

type (
	parseState struct {
		track *Track
		// r is the file, or an in-memory movie inflated from cmov
		r     io.ReaderAt
		depth int
	}
	atomHandler func(d *Demuxer, st *parseState, atom Atom) error
)

var handlers map[[4]byte]atomHandler

func init() {
	handlers = map[[4]byte]atomHandler{
		TypeMOOV: (*Demuxer).handleMoov,
		TypeMDIA: (*Demuxer).walk,
		TypeMINF: (*Demuxer).walk,
		TypeSTBL: (*Demuxer).walk,
		TypeEDTS: (*Demuxer).walk,
		TypeDINF: (*Demuxer).walk,
		TypeMVEX: (*Demuxer).walk,
		TypeUDTA: (*Demuxer).walk,
		TypeCMOV: (*Demuxer).handleCmov,
		TypeMVHD: (*Demuxer).handleMvhd,
		TypeTRAK: (*Demuxer).handleTrak,
		TypeTKHD: (*Demuxer).handleTkhd,
		TypeTREF: (*Demuxer).handleTref,
		TypeMDHD: (*Demuxer).handleMdhd,
		TypeHDLR: (*Demuxer).handleHdlr,
		TypeSTSD: (*Demuxer).handleStsd,
		TypeSTSZ: (*Demuxer).handleStsz,
		TypeSTZ2: (*Demuxer).handleStsz,
		TypeSTCO: (*Demuxer).handleStco,
		TypeCO64: (*Demuxer).handleStco,
		TypeSTSC: (*Demuxer).handleStsc,
		TypeSTTS: (*Demuxer).handleStts,
		TypeCTTS: (*Demuxer).handleCtts,
		TypeSTSS: (*Demuxer).handleStss,
		TypeELST: (*Demuxer).handleElst,
		TypeSGPD: (*Demuxer).handleSgpd,
		TypeSBGP: (*Demuxer).handleSbgp,
		TypeTREX: (*Demuxer).handleTrex,
		TypeMOOF: (*Demuxer).handleMoof,
		TypeCHPL: (*Demuxer).handleChpl,
		TypeMETA: (*Demuxer).handleMeta,
		TypeILST: (*Demuxer).handleIlst,
	}
}

func (d *Demuxer) dispatch(st *parseState, atom Atom) error {
	d.diag.Debug(pkg.DebugHeaders, strings.Repeat("  ", st.depth)+TypeName(atom.Type), "offset", atom.Offset, "size", atom.Size)
	h, ok := handlers[atom.Type]
	if !ok {
		return nil
	}
	return d.fault(st.track, h(d, st, atom))
}

// walk dispatches every child of a container atom. A child that does not fit
// ends the container.
func (d *Demuxer) walk(st *parseState, parent Atom) error {
	child := *st
	child.depth++
	err := Children(st.r, parent, func(atom Atom) error {
		return d.dispatch(&child, atom)
	})
	if errors.Is(err, pkg.ErrMalformedAtom) {
		return d.fault(st.track, err)
	}
	return err
}

func (d *Demuxer) payload(st *parseState, atom Atom) ([]byte, error) {
	return ReadPayload(st.r, atom)
}

// leaf reads the payload of a track level atom and decodes it. A table
// length mismatch keeps the entries present.
func (d *Demuxer) leaf(st *parseState, atom Atom, decode func(t *Track, b []byte) error) error {
	if st.track == nil {
		return fmt.Errorf("%w: %s outside of a track", pkg.ErrMalformedAtom, TypeName(atom.Type))
	}
	b, err := d.payload(st, atom)
	if err != nil {
		return err
	}
	return decode(st.track, b)
}

func (d *Demuxer) handleMoov(st *parseState, atom Atom) error {
	d.sawMoov = true
	return d.walk(st, atom)
}

func (d *Demuxer) handleCmov(st *parseState, atom Atom) error {
	var dcom, cmvd []byte
	err := Children(st.r, atom, func(child Atom) (err error) {
		switch child.Type {
		case TypeDCOM:
			dcom, err = d.payload(st, child)
		case TypeCMVD:
			cmvd, err = d.payload(st, child)
		}
		return
	})
	if err != nil {
		return err
	}
	movie, err := InflateMovie(dcom, cmvd)
	if err != nil {
		return err
	}
	r := bytes.NewReader(movie)
	moov, err := ReadAtom(r, 0, r.Size())
	if err != nil {
		return err
	}
	if moov.Type != TypeMOOV {
		return fmt.Errorf("%w: compressed movie holds '%s'", pkg.ErrMalformedAtom, TypeName(moov.Type))
	}
	d.diag.Debug(pkg.DebugHeaders, "compressed movie header", "size", len(movie))
	return d.walk(&parseState{r: r, depth: st.depth + 1}, moov)
}

func (d *Demuxer) handleMvhd(st *parseState, atom Atom) error {
	b, err := d.payload(st, atom)
	if err != nil {
		return err
	}
	var mvhd MovieHeaderBox
	if err = mvhd.Decode(b); err != nil {
		return err
	}
	d.MovieTimescale, d.MovieDuration = mvhd.Timescale, mvhd.Duration
	d.diag.Debug(pkg.DebugHeaders, "movie header", "timescale", mvhd.Timescale, "duration", mvhd.Duration)
	return nil
}

func (d *Demuxer) handleTrak(st *parseState, atom Atom) error {
	t := &Track{TrackID: uint32(d.tracks.Len() + 1)}
	child := *st
	child.track = t
	err := d.walk(&child, atom)
	if err != nil {
		return err
	}
	if _, dup := d.tracks.Get(t.TrackID); dup {
		d.diag.Warn(t.TrackID, fmt.Errorf("%w: duplicate track id %d", pkg.ErrMalformedAtom, t.TrackID))
	}
	d.tracks.Add(t)
	return nil
}

func (d *Demuxer) handleTkhd(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) error {
		var tkhd TrackHeaderBox
		if err := tkhd.Decode(b); err != nil {
			return err
		}
		t.TrackID = tkhd.TrackID
		t.DisplayWidth, t.DisplayHeight = tkhd.DisplaySize()
		return nil
	})
}

func (d *Demuxer) handleTref(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) error {
		refs, err := DecodeTrackReferences(b)
		for _, ref := range refs {
			if len(ref.TrackIDs) == 0 {
				continue
			}
			if ref.Type == TypeCHAP {
				d.chapterTracks = append(d.chapterTracks, ref.TrackIDs...)
			} else if t.ContainerID == 0 {
				t.ContainerID = ref.TrackIDs[0]
			}
		}
		return err
	})
}

func (d *Demuxer) handleMdhd(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) error {
		var mdhd MediaHeaderBox
		if err := mdhd.Decode(b); err != nil {
			return err
		}
		t.Timescale, t.Duration = mdhd.Timescale, mdhd.Duration
		t.Language = languageOf(mdhd)
		return nil
	})
}

func (d *Demuxer) handleHdlr(st *parseState, atom Atom) error {
	if st.track == nil {
		return nil
	}
	return d.leaf(st, atom, func(t *Track, b []byte) error {
		var hdlr HandlerBox
		if err := hdlr.Decode(b); err != nil {
			return err
		}
		// QuickTime data handler inside minf
		if hdlr.PreDefined == TypeDHLR {
			return nil
		}
		t.Handler = hdlr.HandlerType
		t.Type = trackTypeOf(hdlr.HandlerType)
		t.Name = hdlr.Name
		return nil
	})
}

func (d *Demuxer) handleStsd(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) error {
		var stsd SampleDescriptionBox
		err := stsd.Decode(b)
		if len(stsd.Entries) == 0 {
			if err == nil {
				err = fmt.Errorf("%w: stsd without entries", pkg.ErrMissingRequiredParameter)
			}
			return err
		}
		d.fault(t, err)
		t.DescCount = len(stsd.Entries)
		if t.DescCount > 1 {
			d.diag.Debug(pkg.DebugHeaders, "only the first sample description is used", "track", t.TrackID, "count", t.DescCount)
		}
		entry := stsd.Entries[0]
		t.Desc = entry
		family, _ := FamilyByFormat(entry.Format)
		switch {
		case t.Type == TrackAudio || family.IsAudio() || entry.Format == [4]byte(codec.FourCC_MP4A):
			err = entry.DecodeAudio()
		case t.Type == TrackVideo || family.IsVideo() || entry.Format == [4]byte(codec.FourCC_MP4V):
			err = entry.DecodeVisual()
		default:
			entry.DecodeGeneric()
		}
		if err != nil {
			return err
		}
		return d.sampleEntryExtensions(t, entry)
	})
}

func (d *Demuxer) sampleEntryExtensions(t *Track, entry *SampleEntry) error {
	if b := entry.Extension(TypeESDS); b != nil {
		var esds ESDSBox
		if err := esds.Decode(b); err != nil {
			d.fault(t, err)
		}
		t.ESDS = &esds
	}
	if b := entry.Extension(TypeCOLR); b != nil {
		var colr ColourInformation
		if err := colr.Decode(b); err != nil {
			d.fault(t, err)
		} else if colr.ColourType != [4]byte{} {
			t.Colour = &codec.Colour{
				Primaries:               colr.ColourPrimaries,
				TransferCharacteristics: colr.TransferCharacteristics,
				MatrixCoefficients:      colr.MatrixCoefficients,
				FullRange:               colr.FullRange,
			}
		}
	}
	if b := entry.Extension(TypeENDA); len(b) >= 2 {
		little := b[1] == 1
		t.LittleEndian = &little
	}
	d.diag.Debug(pkg.DebugHeaders, "sample description", "track", t.TrackID, "format", TypeName(entry.Format), "extensions", len(entry.Extensions))
	return nil
}

func (d *Demuxer) handleStsz(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var stsz SampleSizeBox
		if atom.Type == TypeSTZ2 {
			err = stsz.DecodeCompact(b)
		} else {
			err = stsz.Decode(b)
		}
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.SampleSize, t.SampleCount, t.Sizes, t.hasSizes = stsz.SampleSize, stsz.SampleCount, stsz.EntrySizelist, true
		if stsz.SampleSize == 0 {
			t.SampleCount = uint32(len(stsz.EntrySizelist))
		}
		d.diag.Debug(pkg.DebugTables, "sample sizes", "track", t.TrackID, "uniform", t.SampleSize, "count", t.SampleCount)
		return
	})
}

func (d *Demuxer) handleStco(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var stco ChunkOffsetBox
		err = stco.Decode(b, atom.Type == TypeCO64)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.ChunkOffsets, t.hasChunkOffsets = stco, true
		d.diag.Debug(pkg.DebugTables, "chunk offsets", "track", t.TrackID, "count", len(stco))
		if d.diag.On(pkg.DebugTablesFull) {
			for i, off := range stco {
				d.diag.Debug(pkg.DebugTablesFull, "chunk", "track", t.TrackID, "index", i, "offset", off)
			}
		}
		return
	})
}

func (d *Demuxer) handleStsc(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var stsc SampleToChunkBox
		err = stsc.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.ChunkMap, t.hasChunkMap = stsc, true
		d.diag.Debug(pkg.DebugTables, "sample to chunk", "track", t.TrackID, "count", len(stsc))
		return
	})
}

func (d *Demuxer) handleStts(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var stts TimeToSampleBox
		err = stts.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.Durations = stts
		d.diag.Debug(pkg.DebugTables, "time to sample", "track", t.TrackID, "count", len(stts), "samples", stts.SampleTotal())
		if d.diag.On(pkg.DebugTablesFull) {
			for i, e := range stts {
				d.diag.Debug(pkg.DebugTablesFull, "duration", "track", t.TrackID, "index", i, "samples", e.SampleCount, "delta", e.SampleDelta)
			}
		}
		return
	})
}

func (d *Demuxer) handleCtts(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var ctts CompositionOffsetBox
		err = ctts.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.FrameOffsets = ctts
		d.diag.Debug(pkg.DebugTables, "composition offsets", "track", t.TrackID, "count", len(ctts))
		return
	})
}

func (d *Demuxer) handleStss(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var stss SyncSampleBox
		err = stss.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.Keyframes, t.HasKeyframeTable = stss, true
		d.diag.Debug(pkg.DebugTables, "sync samples", "track", t.TrackID, "count", len(stss))
		return
	})
}

func (d *Demuxer) handleElst(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var elst EditListBox
		err = elst.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		t.Edits = elst
		for i, e := range elst {
			d.diag.Debug(pkg.DebugEditLists, "edit", "track", t.TrackID, "index", i, "duration", e.SegmentDuration, "media_time", e.MediaTime, "rate", e.MediaRateInteger)
		}
		return
	})
}

func (d *Demuxer) handleSgpd(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var sgpd SgpdBox
		err = sgpd.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		if sgpd.GroupingType == TypeRAP {
			t.RapGroups = &sgpd
		}
		return
	})
}

func (d *Demuxer) handleSbgp(st *parseState, atom Atom) error {
	return d.leaf(st, atom, func(t *Track, b []byte) (err error) {
		var sbgp SbgpBox
		err = sbgp.Decode(b)
		if err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
			return
		}
		if sbgp.GroupingType == TypeRAP {
			t.RapMapping = &sbgp
		}
		return
	})
}

func (d *Demuxer) handleTrex(st *parseState, atom Atom) error {
	b, err := d.payload(st, atom)
	if err != nil {
		return err
	}
	var trex TrackExtendsBox
	if err = trex.Decode(b); err != nil {
		return err
	}
	d.trex[trex.TrackID] = &trex
	d.diag.Debug(pkg.DebugFragments, "track extends", "track", trex.TrackID, "duration", trex.DefaultSampleDuration, "size", trex.DefaultSampleSize, "flags", trex.DefaultSampleFlags)
	return nil
}

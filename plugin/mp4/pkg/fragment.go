package mp4

import (
	"fmt"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/util"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

type (
	// fragmentState lives from one moof to the next. implicitOffset is where
	// the data of the next traf without an explicit base starts.
	fragmentState struct {
		moofOffset     int64
		implicitOffset int64
	}

	// Fragment holds the resolved defaults of one traf.
	Fragment struct {
		TrackID             uint32
		SampleDescriptionID uint32
		Duration            uint32
		Size                uint32
		Flags               uint32
		BaseDataOffset      int64
		MoofOffset          int64
		ImplicitOffset      int64
	}
)

func (d *Demuxer) handleMoof(st *parseState, atom Atom) error {
	d.sawMoof = true
	fs := fragmentState{moofOffset: atom.Offset, implicitOffset: atom.Offset}
	d.diag.Debug(pkg.DebugFragments, "moof", "offset", atom.Offset, "size", atom.Size)
	err := Children(st.r, atom, func(child Atom) (err error) {
		if child.Type != TypeTRAF {
			return nil
		}
		var track *Track
		fs, track, err = d.handleTraf(st, fs, child)
		return d.fault(track, err)
	})
	return err
}

// handleTraf resolves the traf defaults, emits one index entry per trun
// sample and returns the state for the next traf. The track is nil until a
// tfhd names a known one.
func (d *Demuxer) handleTraf(st *parseState, fs fragmentState, atom Atom) (fragmentState, *Track, error) {
	var (
		frag  *Fragment
		track *Track
	)
	err := Children(st.r, atom, func(child Atom) error {
		switch child.Type {
		case TypeTFHD:
			b, err := ReadPayload(st.r, child)
			if err != nil {
				return err
			}
			var tfhd TrackFragmentHeaderBox
			if err = tfhd.Decode(b); err != nil {
				return err
			}
			t, ok := d.tracks.Find(func(t *Track) bool { return t.TrackID == tfhd.TrackID })
			if !ok {
				return fmt.Errorf("%w: traf for unknown track %d", pkg.ErrMalformedAtom, tfhd.TrackID)
			}
			track, frag = t, d.newFragment(fs, &tfhd)
			track.Fragmented = true
		case TypeTFDT:
			if track == nil {
				return nil
			}
			b, err := ReadPayload(st.r, child)
			if err != nil {
				return err
			}
			var tfdt TrackFragmentBaseMediaDecodeTimeBox
			if err = tfdt.Decode(b); err != nil {
				return err
			}
			track.fragmentDTS = uint64(tfdt)
		case TypeTRUN:
			if track == nil {
				return fmt.Errorf("%w: trun before tfhd", pkg.ErrMalformedAtom)
			}
			b, err := ReadPayload(st.r, child)
			if err != nil {
				return err
			}
			var trun TrackRunBox
			err = trun.Decode(b)
			if err != nil {
				if err = d.fault(track, err); err != nil {
					return err
				}
				if trun.Entries == nil && trun.SampleCount > 0 {
					return nil
				}
			}
			d.handleTrun(track, frag, &trun)
		}
		return nil
	})
	if frag != nil {
		fs.implicitOffset = frag.ImplicitOffset
	}
	return fs, track, err
}

func (d *Demuxer) newFragment(fs fragmentState, tfhd *TrackFragmentHeaderBox) *Fragment {
	frag := &Fragment{TrackID: tfhd.TrackID, MoofOffset: fs.moofOffset}
	if trex, ok := d.trex[tfhd.TrackID]; ok {
		frag.SampleDescriptionID = trex.DefaultSampleDescriptionIndex
		frag.Duration = trex.DefaultSampleDuration
		frag.Size = trex.DefaultSampleSize
		frag.Flags = trex.DefaultSampleFlags
	}
	if tfhd.SampleDescriptionIndex != nil {
		frag.SampleDescriptionID = *tfhd.SampleDescriptionIndex
	}
	if tfhd.DefaultSampleDuration != nil {
		frag.Duration = *tfhd.DefaultSampleDuration
	}
	if tfhd.DefaultSampleSize != nil {
		frag.Size = *tfhd.DefaultSampleSize
	}
	if tfhd.DefaultSampleFlags != nil {
		frag.Flags = *tfhd.DefaultSampleFlags
	}
	switch {
	case tfhd.BaseDataOffset != nil:
		frag.BaseDataOffset = int64(*tfhd.BaseDataOffset)
	case tfhd.DefaultBaseIsMoof():
		frag.BaseDataOffset = fs.moofOffset
	default:
		frag.BaseDataOffset = fs.implicitOffset
	}
	frag.ImplicitOffset = frag.BaseDataOffset
	d.diag.Debug(pkg.DebugFragments, "traf", "track", frag.TrackID, "base", frag.BaseDataOffset, "duration", frag.Duration, "size", frag.Size, "flags", frag.Flags)
	return frag
}

func (d *Demuxer) handleTrun(t *Track, frag *Fragment, trun *TrackRunBox) {
	pos := frag.ImplicitOffset
	if trun.DataOffset != nil {
		pos = frag.BaseDataOffset + int64(*trun.DataOffset)
	}
	n := int(trun.SampleCount)
	for i := 0; i < n; i++ {
		duration, size, flags := frag.Duration, frag.Size, frag.Flags
		var cto int32
		if i < len(trun.Entries) {
			e := trun.Entries[i]
			if trun.Has(TR_FLAG_DATA_SAMPLE_DURATION) {
				duration = e.Duration
			}
			if trun.Has(TR_FLAG_DATA_SAMPLE_SIZE) {
				size = e.Size
			}
			if trun.Has(TR_FLAG_DATA_SAMPLE_FLAGS) {
				flags = e.Flags
			}
			cto = e.CompositionTimeOffset
		}
		if i == 0 && trun.FirstSampleFlags != nil {
			flags = *trun.FirstSampleFlags
		}
		dts := int64(t.fragmentDTS)
		t.fragmentEntries = append(t.fragmentEntries, pkg.IndexEntry{
			Pos:      pos,
			Size:     size,
			Timecode: util.ToNanoseconds(dts+int64(cto), t.Timescale),
			Duration: util.ToNanoseconds(dts+int64(duration), t.Timescale) - util.ToNanoseconds(dts, t.Timescale),
			Keyframe: flags&MOV_FRAG_SAMPLE_FLAG_IS_NON_SYNC == 0,
		})
		t.fragmentDurations = appendDurations(t.fragmentDurations, 1, duration)
		t.fragmentDTS += uint64(duration)
		pos += int64(size)
	}
	frag.ImplicitOffset = pos
	d.diag.Debug(pkg.DebugFragments, "trun", "track", t.TrackID, "samples", n, "end", pos)
}

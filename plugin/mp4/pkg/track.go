package mp4

import (
	"fmt"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

type TrackType int

const (
	TrackUnknown TrackType = iota
	TrackAudio
	TrackVideo
	TrackSubtitle
	TrackChapter
)

func (t TrackType) String() string {
	switch t {
	case TrackAudio:
		return "audio"
	case TrackVideo:
		return "video"
	case TrackSubtitle:
		return "subtitles"
	case TrackChapter:
		return "chapters"
	}
	return "unknown"
}

func trackTypeOf(handler [4]byte) TrackType {
	switch handler {
	case TypeVIDE:
		return TrackVideo
	case TypeSOUN:
		return TrackAudio
	case TypeSUBP, TypeSBTL, TypeTEXT, TypeTX3G, TypeCLCP:
		return TrackSubtitle
	}
	return TrackUnknown
}

type (
	// ChunkEntry is one expanded chunk: a contiguous on-disk run of samples.
	ChunkEntry struct {
		Pos     int64
		Samples uint32
		Size    int64
		DescID  uint32
	}

	Track struct {
		TrackID     uint32
		ContainerID uint32
		Type        TrackType
		Handler     [4]byte
		Timescale   uint32
		Duration    uint64
		Language    string
		Name        string

		DisplayWidth, DisplayHeight int

		Desc      *SampleEntry
		DescCount int
		ESDS      *ESDSBox
		Colour    *codec.Colour
		// LittleEndian is set by a QuickTime 'enda' atom.
		LittleEndian *bool

		SampleSize       uint32
		SampleCount      uint32
		Sizes            []uint32
		ChunkOffsets     []uint64
		ChunkMap         SampleToChunkBox
		Durations        TimeToSampleBox
		FrameOffsets     CompositionOffsetBox
		Keyframes        SyncSampleBox
		HasKeyframeTable bool
		Edits            EditListBox
		RapGroups        *SgpdBox
		RapMapping       *SbgpBox
		hasSizes         bool
		hasChunkMap      bool
		hasChunkOffsets  bool

		Fragmented      bool
		fragmentDTS     uint64
		fragmentEntries []pkg.IndexEntry
		// per-sample durations of all fragments, for frame rate detection
		fragmentDurations TimeToSampleBox

		Chunks   []ChunkEntry
		Index    []pkg.IndexEntry
		Decision *codec.Decision
		OK       bool
		Err      error

		packetizer pkg.Packetizer
		cursor     int
		delivered  int64
	}

	TrackSummary struct {
		TrackID  uint32
		Type     TrackType
		Codec    string
		Language string
		OK       bool
	}
)

func (t *Track) GetKey() uint32 {
	return t.TrackID
}

func (t *Track) String() string {
	return fmt.Sprintf("track %d (%s)", t.TrackID, t.Type)
}

func (t *Track) format() [4]byte {
	if t.Desc == nil {
		return [4]byte{}
	}
	return t.Desc.Format
}

// remaining reports whether the track still has entries to deliver.
func (t *Track) remaining() bool {
	return t.packetizer != nil && t.cursor < len(t.Index)
}

func (t *Track) summary() TrackSummary {
	s := TrackSummary{TrackID: t.TrackID, Type: t.Type, Language: t.Language, OK: t.OK}
	if t.Decision != nil {
		s.Codec = t.Decision.CodecName
	} else {
		s.Codec = TypeName(t.format())
	}
	return s
}

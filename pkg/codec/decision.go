package codec

import "fmt"

type AudioParams struct {
	SampleRate       int
	OutputSampleRate int
	Channels         int
	BitsPerSample    int
	BigEndian        bool
	Float            bool
}

type VideoParams struct {
	Width, Height               int
	DisplayWidth, DisplayHeight int
	FrameRate                   Rational
	// DefaultDuration is the frame duration in nanoseconds, 0 when the
	// track has no constant frame rate.
	DefaultDuration int64
	Colour          *Colour
}

// Decision is the resolved codec of one track: the family, its parsed
// parameters and the private data a downstream packetizer needs.
type Decision struct {
	TrackID   uint32
	Family    Family
	FourCC    FourCC
	CodecName string
	Ctx       ICodecCtx
	Private   []byte
	Language  string
	Audio     *AudioParams
	Video     *VideoParams
	// EncoderDelay in nanoseconds, from the iTunSMPB tag.
	EncoderDelay int64
}

func (d *Decision) String() string {
	switch {
	case d.Audio != nil:
		return fmt.Sprintf("%s (%s) %dHz %dch", d.Family, d.FourCC, d.Audio.SampleRate, d.Audio.Channels)
	case d.Video != nil:
		return fmt.Sprintf("%s (%s) %dx%d", d.Family, d.FourCC, d.Video.Width, d.Video.Height)
	}
	return fmt.Sprintf("%s (%s)", d.Family, d.FourCC)
}

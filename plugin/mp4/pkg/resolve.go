package mp4

import (
	"fmt"
	"math"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	"m7s.live/qtmp4/pkg/util"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

// maxProbeSample bounds the bytes read from a first sample for header parsing.
const maxProbeSample = 64 << 10

type verifier func(d *Demuxer, t *Track, decision *codec.Decision) error

var verifiers = map[codec.Family]verifier{
	codec.FamilyPCM:     verifyPCM,
	codec.FamilyAAC:     verifyAAC,
	codec.FamilyAC3:     verifyAC3,
	codec.FamilyEAC3:    verifyEAC3,
	codec.FamilyDTS:     verifyDTS,
	codec.FamilyALAC:    verifyALAC,
	codec.FamilyMP3:     verifyMP3,
	codec.FamilyH264:    verifyAVC,
	codec.FamilyHEVC:    verifyHEVC,
	codec.FamilyMPEG1:   verifyVideo,
	codec.FamilyMPEG2:   verifyVideo,
	codec.FamilyMPEG4P2: verifyVideo,
	codec.FamilyProRes:  verifyVideo,
	codec.FamilyVobSub:  verifyVobSub,
}

// resolve maps the first sample description of t to a codec decision. Any
// error rejects the track only.
func (d *Demuxer) resolve(t *Track) (*codec.Decision, error) {
	if t.Desc == nil {
		return nil, fmt.Errorf("%w: no sample description", pkg.ErrMissingRequiredParameter)
	}
	family, err := t.family()
	if err != nil {
		return nil, err
	}
	decision := &codec.Decision{
		TrackID:   t.TrackID,
		Family:    family,
		FourCC:    codec.FourCC(t.Desc.Format),
		CodecName: string(family),
		Language:  t.Language,
	}
	if err = verifiers[family](d, t, decision); err != nil {
		return nil, err
	}
	if decision.Video != nil {
		d.videoTiming(t, decision.Video)
	}
	d.diag.Debug(pkg.DebugHeaders, "codec", "track", t.TrackID, "decision", decision.String())
	return decision, nil
}

func (t *Track) family() (codec.Family, error) {
	format := t.Desc.Format
	if !ESDSFormats[format] {
		if family, ok := FamilyByFormat(format); ok {
			return family, nil
		}
		return "", fmt.Errorf("%w: '%s'", pkg.ErrUnsupportedCodec, TypeName(format))
	}
	if t.ESDS != nil {
		if dc := t.ESDS.DecoderConfig(); dc != nil {
			if family, ok := FamilyByObjectType(dc.ObjectTypeIndication); ok {
				return family, nil
			}
			return "", fmt.Errorf("%w: '%s' object type 0x%02x", pkg.ErrUnsupportedCodec, TypeName(format), dc.ObjectTypeIndication)
		}
	}
	switch format {
	case [4]byte(codec.FourCC_MP4V):
		return codec.FamilyMPEG4P2, nil
	case [4]byte(codec.FourCC_MP4A):
		return codec.FamilyAAC, nil
	}
	return "", fmt.Errorf("%w: '%s' without decoder config", pkg.ErrMissingRequiredParameter, TypeName(format))
}

// firstSample reads the start of the first indexed sample. A sample that
// cannot be read rejects the track instead of failing the file.
func (d *Demuxer) firstSample(t *Track) ([]byte, error) {
	if len(t.Index) == 0 {
		return nil, fmt.Errorf("%w: track has no samples", pkg.ErrMissingRequiredParameter)
	}
	e := t.Index[0]
	buf := make([]byte, min(e.Size, maxProbeSample))
	if err := pkg.ReadFull(d.stream, buf, e.Pos); err != nil {
		return nil, fmt.Errorf("%w: first sample: %v", pkg.ErrMissingRequiredParameter, err)
	}
	return buf, nil
}

// containerAudio is what the sound description declares.
func (t *Track) containerAudio() (rate, channels, bits int) {
	if a := t.Desc.Audio; a != nil {
		rate = int(math.Round(a.SampleRate))
		channels = int(a.ChannelCount)
		bits = int(a.SampleSize)
	}
	return
}

func audioParams(ctx *codec.AudioCtx) *codec.AudioParams {
	return &codec.AudioParams{
		SampleRate:       ctx.SampleRate,
		OutputSampleRate: ctx.SampleRate,
		Channels:         ctx.Channels,
		BitsPerSample:    ctx.SampleSize,
	}
}

func requireAudio(p *codec.AudioParams) error {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return fmt.Errorf("%w: sample rate %d, channels %d", pkg.ErrMissingRequiredParameter, p.SampleRate, p.Channels)
	}
	return nil
}

func verifyPCM(d *Demuxer, t *Track, decision *codec.Decision) error {
	rate, channels, bits := t.containerAudio()
	fixed, bigEndian, float := PCMLayout(t.Desc.Format)
	if fixed > 0 {
		bits = fixed
	}
	if a := t.Desc.Audio; a != nil && t.Desc.Format == [4]byte{'l', 'p', 'c', 'm'} {
		// kAudioFormatFlagIsFloat, kAudioFormatFlagIsBigEndian
		float = a.FormatSpecificFlags&1 != 0
		bigEndian = a.FormatSpecificFlags&2 != 0
	}
	if t.LittleEndian != nil {
		bigEndian = !*t.LittleEndian
	}
	if bits == 8 {
		bigEndian = false
	}
	ctx := &codec.PCMCtx{
		AudioCtx:  codec.AudioCtx{SampleRate: rate, Channels: channels, SampleSize: bits},
		Format:    decision.FourCC,
		BigEndian: bigEndian,
		Float:     float,
	}
	decision.Ctx = ctx
	decision.Audio = audioParams(&ctx.AudioCtx)
	decision.Audio.BigEndian, decision.Audio.Float = bigEndian, float
	if bits <= 0 {
		return fmt.Errorf("%w: pcm without bit depth", pkg.ErrMissingRequiredParameter)
	}
	return requireAudio(decision.Audio)
}

// verifyAAC prefers the decoder specific info. A config that fails to parse
// falls back to the container values.
func verifyAAC(d *Demuxer, t *Track, decision *codec.Decision) (err error) {
	var ctx *codec.AACCtx
	if t.ESDS != nil {
		if dsi := t.ESDS.DecoderSpecificInfo(); len(dsi) > 0 {
			if ctx, err = codec.NewAACCtx(dsi); err != nil {
				d.diag.Debug(pkg.DebugHeaders, "aac config ignored", "track", t.TrackID, "error", err)
			}
		}
	}
	if ctx == nil {
		rate, channels, _ := t.containerAudio()
		if ctx, err = codec.NewAACCtxFromParams(rate, channels); err != nil {
			return fmt.Errorf("%w: aac: %v", pkg.ErrMissingRequiredParameter, err)
		}
	}
	decision.Ctx = ctx
	decision.Private = ctx.GetRecord()
	decision.Audio = &codec.AudioParams{
		SampleRate:       ctx.GetSampleRate(),
		OutputSampleRate: ctx.OutputSampleRate,
		Channels:         ctx.GetChannels(),
		BitsPerSample:    ctx.GetSampleSize(),
	}
	if d.encoderDelay > 0 {
		decision.EncoderDelay = util.ToNanoseconds(int64(d.encoderDelay), uint32(ctx.OutputSampleRate))
	}
	return requireAudio(decision.Audio)
}

func verifyAC3(d *Demuxer, t *Track, decision *codec.Decision) error {
	sample, err := d.firstSample(t)
	if err != nil {
		return err
	}
	ctx, err := codec.NewAC3Ctx(sample)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Audio = audioParams(&ctx.AudioCtx)
	return requireAudio(decision.Audio)
}

func verifyEAC3(d *Demuxer, t *Track, decision *codec.Decision) error {
	sample, err := d.firstSample(t)
	if err != nil {
		return err
	}
	ctx, err := codec.NewEAC3Ctx(sample)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Audio = audioParams(&ctx.AudioCtx)
	return requireAudio(decision.Audio)
}

func verifyDTS(d *Demuxer, t *Track, decision *codec.Decision) error {
	sample, err := d.firstSample(t)
	if err != nil {
		return err
	}
	ctx, err := codec.NewDTSCtx(sample)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Audio = audioParams(&ctx.AudioCtx)
	return requireAudio(decision.Audio)
}

func verifyALAC(d *Demuxer, t *Track, decision *codec.Decision) error {
	cookie := t.Desc.Extension(TypeALAC)
	if cookie == nil {
		return fmt.Errorf("%w: alac without magic cookie", pkg.ErrMissingRequiredParameter)
	}
	ctx, err := codec.NewALACCtx(cookie)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Private = ctx.GetRecord()
	decision.Audio = audioParams(&ctx.AudioCtx)
	return requireAudio(decision.Audio)
}

// verifyMP3 trusts the first frame header and keeps the container values
// when the frame does not parse.
func verifyMP3(d *Demuxer, t *Track, decision *codec.Decision) error {
	rate, channels, _ := t.containerAudio()
	ctx := &codec.MP3Ctx{AudioCtx: codec.AudioCtx{SampleRate: rate, Channels: channels, SampleSize: 16}}
	if sample, err := d.firstSample(t); err == nil {
		if parsed, err := codec.NewMP3Ctx(sample); err == nil {
			ctx = parsed
		} else {
			d.diag.Debug(pkg.DebugHeaders, "mp3 header ignored", "track", t.TrackID, "error", err)
		}
	}
	decision.Ctx = ctx
	decision.Audio = audioParams(&ctx.AudioCtx)
	return requireAudio(decision.Audio)
}

func (t *Track) videoParams(width, height int) *codec.VideoParams {
	v := &codec.VideoParams{Width: width, Height: height, DisplayWidth: width, DisplayHeight: height, Colour: t.Colour}
	if t.DisplayWidth > 0 && t.DisplayHeight > 0 {
		v.DisplayWidth, v.DisplayHeight = t.DisplayWidth, t.DisplayHeight
	}
	return v
}

func requireVideo(p *codec.VideoParams) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: resolution %dx%d", pkg.ErrMissingRequiredParameter, p.Width, p.Height)
	}
	return nil
}

func verifyAVC(d *Demuxer, t *Track, decision *codec.Decision) error {
	record := t.Desc.Extension(TypeAVCC)
	if record == nil {
		return fmt.Errorf("%w: avc without avcC", pkg.ErrMissingRequiredParameter)
	}
	ctx, err := codec.NewH264Ctx(record)
	if err != nil {
		return fmt.Errorf("%w: avcC: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Private = record
	decision.Video = t.videoParams(ctx.Width(), ctx.Height())
	return requireVideo(decision.Video)
}

func verifyHEVC(d *Demuxer, t *Track, decision *codec.Decision) error {
	record := t.Desc.Extension(TypeHVCC)
	if record == nil {
		return fmt.Errorf("%w: hevc without hvcC", pkg.ErrMissingRequiredParameter)
	}
	ctx, err := codec.NewH265Ctx(record)
	if err != nil {
		return fmt.Errorf("%w: hvcC: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Private = record
	decision.Video = t.videoParams(ctx.Width(), ctx.Height())
	return requireVideo(decision.Video)
}

// verifyVideo covers codecs configured by the sample description alone.
func verifyVideo(d *Demuxer, t *Track, decision *codec.Decision) error {
	v := t.Desc.Visual
	if v == nil {
		return fmt.Errorf("%w: no visual sample description", pkg.ErrMissingRequiredParameter)
	}
	ctx := &codec.VideoCtx{Format: decision.FourCC, Width: int(v.Width), Height: int(v.Height)}
	if t.ESDS != nil {
		ctx.Record = t.ESDS.DecoderSpecificInfo()
	}
	decision.Ctx = ctx
	decision.Private = ctx.Record
	decision.Video = t.videoParams(ctx.Width, ctx.Height)
	return requireVideo(decision.Video)
}

// verifyVobSub needs the palette carried as decoder specific info.
func verifyVobSub(d *Demuxer, t *Track, decision *codec.Decision) error {
	if t.ESDS == nil {
		return fmt.Errorf("%w: vobsub without esds", pkg.ErrMissingRequiredParameter)
	}
	ctx, err := codec.NewVobSubCtx(t.ESDS.DecoderSpecificInfo(), t.DisplayWidth, t.DisplayHeight)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMissingRequiredParameter, err)
	}
	decision.Ctx = ctx
	decision.Private = ctx.GetRecord()
	return nil
}

// videoTiming reports a constant frame rate when every frame but possibly
// the last has the same duration.
func (d *Demuxer) videoTiming(t *Track, v *codec.VideoParams) {
	runs := mergeDurations(t.Durations)
	if t.Fragmented {
		runs = t.fragmentDurations
	}
	var delta uint32
	switch {
	case len(runs) == 1:
		delta = runs[0].SampleDelta
	case len(runs) == 2 && runs[1].SampleCount == 1:
		delta = runs[0].SampleDelta
	}
	if delta == 0 {
		d.diag.Debug(pkg.DebugFrameRate, "no constant frame rate", "track", t.TrackID, "runs", len(runs))
		return
	}
	g := gcd(uint64(t.Timescale), uint64(delta))
	v.FrameRate = codec.Rational{Num: uint64(t.Timescale) / g, Den: uint64(delta) / g}
	v.DefaultDuration = util.ToNanoseconds(int64(delta), t.Timescale)
	d.diag.Debug(pkg.DebugFrameRate, "frame rate", "track", t.TrackID, "rate", v.FrameRate.String(), "duration", v.DefaultDuration)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

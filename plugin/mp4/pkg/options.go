package mp4

import (
	"log/slog"

	"m7s.live/qtmp4/pkg/config"
)

type Options struct {
	Debug             string `desc:"debug topics, comma separated"`
	ResyncLookahead   int64  `default:"16777216" desc:"bytes scanned for a top-level atom after a corrupt one"`
	InterleaveWindow  int64  `default:"4194304" desc:"backward jump in bytes tolerated before a file counts as non-interleaved"`
	ReadAhead         int    `default:"1048576" desc:"read-ahead buffer size for interleaved files"`
	ChapterCharset    string `default:"windows-1252" desc:"charset of chapter and tag text that is not UTF-8"`
	ParseChapterTrack bool   `default:"true" desc:"read chapters from a QuickTime chapter track"`
	KeyframeOpenGOP   bool   `default:"true" desc:"treat 'rap ' sample group members as keyframes"`
}

// DefaultOptions returns the default tag values. Environment and file
// settings are applied by the caller through WithOptions.
func DefaultOptions() (opts Options) {
	if err := config.Defaults(&opts); err != nil {
		slog.Warn("reader options", "error", err)
	}
	return
}

type Option func(*Demuxer)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Demuxer) {
		d.logger = logger
	}
}

// WithDebug overrides the debug topic list.
func WithDebug(topics string) Option {
	return func(d *Demuxer) {
		d.opts.Debug = topics
	}
}

func WithOptions(opts Options) Option {
	return func(d *Demuxer) {
		d.opts = opts
	}
}

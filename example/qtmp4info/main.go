package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alchemy/rotoslog"
	"github.com/phsym/console-slog"
	"gopkg.in/yaml.v3"

	"m7s.live/qtmp4/pkg"
	"m7s.live/qtmp4/pkg/codec"
	"m7s.live/qtmp4/pkg/config"
	mp4 "m7s.live/qtmp4/plugin/mp4/pkg"
)

type Config struct {
	Log struct {
		Level     string `default:"info" desc:"log level"`
		Path      string `desc:"directory of rotated log files, empty to log to stderr only"`
		Size      uint64 `default:"1048576" desc:"log file size in bytes"`
		MaxFiles  uint64 `default:"7" desc:"rotated files kept"`
		Formatter string `default:"2006-01-02T15" desc:"log file name layout"`
	}
	Reader mp4.Options
}

var (
	conf       = flag.String("c", "", "config file")
	debug      = flag.String("debug", "", "debug topics, e.g. qtmp4_tables,qtmp4_indexes")
	showConfig = flag.Bool("showconfig", false, "print the effective configuration")
	asJSON     = flag.Bool("json", false, "print tracks and faults as json")
	index      = flag.Bool("index", false, "print every index entry")
	extract    = flag.Uint("extract", 0, "track id to extract as an elementary stream")
	output     = flag.String("o", "", "output file for -extract")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file|url ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	var cfg Config
	var file map[string]any
	var err error
	if *conf != "" {
		if file, err = config.LoadFile(*conf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	modify := map[string]any{}
	if *debug != "" {
		modify["reader"] = map[string]any{"debug": *debug}
	}
	resolved, err := config.Resolve(&cfg, "QTMP4INFO", file, modify)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *showConfig {
		out, err := yaml.Marshal(resolved.GetMap())
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(2)
		}
		os.Stdout.Write(out)
	}
	handler, err := newLogHandler(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log:", err)
		os.Exit(2)
	}
	logger := slog.New(handler)
	failed := false
	for _, name := range flag.Args() {
		if err = run(name, &cfg, handler); err != nil {
			logger.Error("read failed", "input", name, "error", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// newLogHandler filters by the configured level. The handlers behind it
// accept everything.
func newLogHandler(cfg *Config) (*pkg.MultiLogHandler, error) {
	stderr := console.NewHandler(os.Stderr, &console.HandlerOptions{Level: pkg.TraceLevel, TimeFormat: "2006-01-02 15:04:05.000"})
	handler := pkg.NewMultiLogHandler(pkg.ParseLevel(cfg.Log.Level), stderr)
	if cfg.Reader.Debug != "" && !handler.Enabled(context.Background(), slog.LevelDebug) {
		handler.SetLevel(slog.LevelDebug)
	}
	if cfg.Log.Path != "" {
		builder := func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
			return console.NewHandler(w, &console.HandlerOptions{NoColor: true, Level: pkg.TraceLevel, TimeFormat: "2006-01-02 15:04:05.000"})
		}
		file, err := rotoslog.NewHandler(rotoslog.LogHandlerBuilder(builder), rotoslog.LogDir(cfg.Log.Path), rotoslog.MaxFileSize(cfg.Log.Size), rotoslog.DateTimeLayout(cfg.Log.Formatter), rotoslog.MaxRotatedFiles(cfg.Log.MaxFiles))
		if err != nil {
			return nil, err
		}
		handler.Add(file)
	}
	return handler, nil
}

func open(name string) (pkg.ByteStream, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return pkg.OpenURL(context.Background(), name)
	}
	return pkg.OpenFile(name)
}

// run reads one input. Its warnings are collected apart from other inputs.
func run(name string, cfg *Config, handler *pkg.MultiLogHandler) error {
	faults := pkg.NewRecordCollector(slog.LevelWarn)
	logger := slog.New(pkg.NewMultiLogHandler(pkg.TraceLevel, handler, faults)).With("input", name)
	stream, err := open(name)
	if err != nil {
		return err
	}
	if c, ok := stream.(io.Closer); ok {
		defer c.Close()
	}
	if !mp4.Probe(stream) {
		return fmt.Errorf("%s: not a QuickTime/MP4 file", name)
	}
	demuxer := mp4.NewDemuxer(stream, mp4.WithOptions(cfg.Reader), mp4.WithLogger(logger))
	if err = demuxer.ReadHeaders(); err != nil {
		return err
	}
	if *asJSON {
		if err = printJSON(name, demuxer, faults); err != nil {
			return err
		}
	} else {
		printInfo(name, demuxer)
	}
	if *extract != 0 {
		return extractTrack(demuxer, uint32(*extract))
	}
	if *index {
		return countSamples(demuxer)
	}
	return nil
}

func printInfo(name string, demuxer *mp4.Demuxer) {
	fmt.Printf("%s: movie timescale %d, interleaved %t\n", name, demuxer.MovieTimescale, demuxer.Interleaved())
	if demuxer.Brand != nil {
		fmt.Printf("  brand %s\n", demuxer.Brand)
	}
	for _, t := range demuxer.Tracks() {
		if !t.OK {
			fmt.Printf("  track %d: %s, rejected: %v\n", t.TrackID, t.Type, t.Err)
			continue
		}
		fmt.Printf("  track %d: %s, %s, language %s, %d entries\n", t.TrackID, t.Type, t.Decision, t.Language, len(t.Index))
		if v := t.Decision.Video; v != nil && !v.FrameRate.IsZero() {
			fmt.Printf("    frame rate %s (%.3f fps)\n", v.FrameRate, v.FrameRate.Float())
		}
	}
	for _, c := range demuxer.Chapters() {
		fmt.Printf("  chapter %s %s\n", formatTimecode(c.Timecode), c.Name)
	}
	for k, v := range demuxer.Tags() {
		fmt.Printf("  tag %s: %s\n", k, v)
	}
}

func formatTimecode(ns int64) string {
	ms := ns / 1e6
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

type report struct {
	Input    string             `json:"input"`
	Brand    string             `json:"brand,omitempty"`
	Tracks   []mp4.TrackSummary `json:"tracks"`
	Chapters []mp4.ChapterEntry `json:"chapters,omitempty"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Faults   []map[string]any   `json:"faults,omitempty"`
}

func printJSON(name string, demuxer *mp4.Demuxer, faults *pkg.RecordCollector) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var brand string
	if demuxer.Brand != nil {
		brand = demuxer.Brand.String()
	}
	return enc.Encode(report{
		Input:    name,
		Brand:    brand,
		Tracks:   demuxer.Identify(),
		Chapters: demuxer.Chapters(),
		Tags:     demuxer.Tags(),
		Faults:   faults.Records(),
	})
}

func extractTrack(demuxer *mp4.Demuxer, trackID uint32) (err error) {
	t, ok := demuxer.Track(trackID)
	if !ok {
		return fmt.Errorf("%w: %d", pkg.ErrUnknownTrack, trackID)
	}
	out := os.Stdout
	if *output != "" {
		if out, err = os.Create(*output); err != nil {
			return
		}
		defer out.Close()
	}
	w := bufio.NewWriterSize(out, 1<<20)
	if err = demuxer.CreatePacketizer(trackID, pkg.NewWriterFactory(w)); err != nil {
		return
	}
	for {
		status, err := demuxer.Read(t, true)
		switch status {
		case mp4.EndOfTrack:
			return w.Flush()
		case mp4.ReadError:
			return err
		}
	}
}

// sampleDump prints every entry it is handed.
type sampleDump struct {
	trackID uint32
	family  codec.Family
	n       int
}

func (s *sampleDump) ProcessSample(data []byte, e pkg.IndexEntry) error {
	fmt.Printf("  track %d #%d %s\n", s.trackID, s.n, e)
	s.n++
	return nil
}

func (s *sampleDump) Flush() error {
	fmt.Printf("  track %d (%s): %d entries\n", s.trackID, s.family, s.n)
	return nil
}

// countSamples reads every packetized track in global timecode order.
func countSamples(demuxer *mp4.Demuxer) error {
	err := demuxer.CreatePacketizers(func(d *codec.Decision) (pkg.Packetizer, error) {
		return &sampleDump{trackID: d.TrackID, family: d.Family}, nil
	})
	if err != nil {
		return err
	}
	for {
		status, err := demuxer.Read(nil, false)
		switch status {
		case mp4.EndOfTrack:
			fmt.Printf("  progress %d%%\n", demuxer.Progress())
			return nil
		case mp4.ReadError:
			return fmt.Errorf("index dump: %w", err)
		}
	}
}

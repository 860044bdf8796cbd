package pkg

import (
	"log/slog"
	"strings"
)

const (
	DebugQtmp4        = "qtmp4"
	DebugQtmp4Full    = "qtmp4_full"
	DebugHeaders      = "qtmp4_headers"
	DebugTables       = "qtmp4_tables"
	DebugTablesFull   = "qtmp4_tables_full"
	DebugEditLists    = "qtmp4_editlists"
	DebugIndexes      = "qtmp4_indexes"
	DebugIndexesFull  = "qtmp4_indexes_full"
	DebugFrameRate    = "qtmp4_frame_rate"
	DebugChapters     = "qtmp4_chapters"
	DebugInterleaving = "qtmp4_interleaving"
	DebugResync       = "qtmp4_resync"
	DebugFragments    = "qtmp4_fragments"
)

var allTopics = []string{
	DebugQtmp4, DebugHeaders, DebugTables, DebugTablesFull, DebugEditLists, DebugIndexes,
	DebugIndexesFull, DebugFrameRate, DebugChapters, DebugInterleaving, DebugResync, DebugFragments,
}

var impliedTopics = map[string][]string{
	DebugQtmp4:       {DebugHeaders},
	DebugTablesFull:  {DebugTables},
	DebugIndexesFull: {DebugIndexes},
}

// DebugTopics is the set of enabled narration topics. It is built once and
// handed to the reader; nothing reads topics from global state.
type DebugTopics map[string]struct{}

func ParseDebugTopics(s string) DebugTopics {
	topics := make(DebugTopics)
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	}) {
		topics.enable(strings.ToLower(name))
	}
	return topics
}

func (t DebugTopics) enable(name string) {
	if name == DebugQtmp4Full {
		for _, topic := range allTopics {
			t[topic] = struct{}{}
		}
		return
	}
	t[name] = struct{}{}
	for _, implied := range impliedTopics[name] {
		t.enable(implied)
	}
}

func (t DebugTopics) Has(topic string) bool {
	_, ok := t[topic]
	return ok
}

type faultKey struct {
	track uint32
	kind  FaultKind
}

// Diag is the diagnostics channel of one reader: topic gated narration and
// warnings that are reported at most once per (track, fault kind).
type Diag struct {
	Logger   *slog.Logger
	Topics   DebugTopics
	reported map[faultKey]struct{}
}

func NewDiag(logger *slog.Logger, topics DebugTopics) *Diag {
	if logger == nil {
		logger = slog.Default()
	}
	if topics == nil {
		topics = DebugTopics{}
	}
	return &Diag{Logger: logger, Topics: topics, reported: make(map[faultKey]struct{})}
}

func (d *Diag) On(topic string) bool {
	return d.Topics.Has(topic)
}

func (d *Diag) Debug(topic string, msg string, args ...any) {
	if d.Topics.Has(topic) {
		d.Logger.Debug(msg, append(args, "topic", topic)...)
	}
}

// Warn logs err for the track unless the same fault kind was already
// reported for it. It returns false for suppressed repeats.
func (d *Diag) Warn(trackID uint32, err error, args ...any) bool {
	if kind := KindOf(err); kind != "" {
		key := faultKey{trackID, kind}
		if _, ok := d.reported[key]; ok {
			return false
		}
		d.reported[key] = struct{}{}
	}
	d.Logger.Warn(err.Error(), append(args, "track", trackID)...)
	return true
}

func (d *Diag) Error(msg string, args ...any) {
	d.Logger.Error(msg, args...)
}

package pkg

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	slogcommon "github.com/samber/slog-common"
)

const TraceLevel = slog.Level(-8)

var _ slog.Handler = (*MultiLogHandler)(nil)
var _ slog.Handler = (*RecordCollector)(nil)

func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if level == "trace" {
		lv.Set(TraceLevel)
	} else {
		lv.UnmarshalText([]byte(level))
	}
	return lv.Level()
}

type MultiLogHandler struct {
	handlers     []slog.Handler
	attrChildren map[*MultiLogHandler][]slog.Attr
	parentLevel  *slog.Level
	level        *slog.Level
}

func NewMultiLogHandler(level slog.Level, handlers ...slog.Handler) *MultiLogHandler {
	return &MultiLogHandler{handlers: handlers, level: &level}
}

func (m *MultiLogHandler) Add(h slog.Handler) {
	m.handlers = append(m.handlers, h)
	for child, attrs := range m.attrChildren {
		child.Add(h.WithAttrs(attrs))
	}
}

func (m *MultiLogHandler) SetLevel(level slog.Level) {
	if m.level == nil {
		m.level = &level
	} else {
		*m.level = level
	}
}

// Enabled implements slog.Handler.
func (m *MultiLogHandler) Enabled(_ context.Context, l slog.Level) bool {
	if m.level != nil {
		return l >= *m.level
	}
	if m.parentLevel != nil {
		return l >= *m.parentLevel
	}
	return l >= slog.LevelInfo
}

// Handle implements slog.Handler.
func (m *MultiLogHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (m *MultiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	result := &MultiLogHandler{
		handlers:    make([]slog.Handler, len(m.handlers)),
		parentLevel: m.parentLevel,
	}
	if m.attrChildren == nil {
		m.attrChildren = make(map[*MultiLogHandler][]slog.Attr)
	}
	m.attrChildren[result] = attrs
	if m.level != nil {
		result.parentLevel = m.level
	}
	for i, h := range m.handlers {
		result.handlers[i] = h.WithAttrs(attrs)
	}
	return result
}

// WithGroup implements slog.Handler.
func (m *MultiLogHandler) WithGroup(name string) slog.Handler {
	result := &MultiLogHandler{
		handlers:    make([]slog.Handler, len(m.handlers)),
		parentLevel: m.parentLevel,
	}
	if m.level != nil {
		result.parentLevel = m.level
	}
	for i, h := range m.handlers {
		result.handlers[i] = h.WithGroup(name)
	}
	return result
}

// RecordCollector keeps every handled record as a flat map. Handlers derived
// through WithAttrs/WithGroup share the same record list.
type RecordCollector struct {
	Level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	store  *recordStore
}

type recordStore struct {
	sync.Mutex
	records []map[string]any
}

func NewRecordCollector(level slog.Leveler) *RecordCollector {
	return &RecordCollector{Level: level, store: &recordStore{}}
}

func (c *RecordCollector) Enabled(_ context.Context, l slog.Level) bool {
	if c.Level == nil {
		return l >= slog.LevelInfo
	}
	return l >= c.Level.Level()
}

func (c *RecordCollector) Handle(_ context.Context, rec slog.Record) error {
	attrs := slogcommon.AppendRecordAttrsToAttrs(c.attrs, c.groups, &rec)
	attrs = slogcommon.RemoveEmptyAttrs(attrs)
	m := slogcommon.AttrsToMap(attrs...)
	for k, v := range m {
		if err, ok := v.(error); ok {
			m[k] = slogcommon.FormatError(err)
		}
	}
	m["level"] = rec.Level.String()
	m["message"] = rec.Message
	c.store.Lock()
	c.store.records = append(c.store.records, m)
	c.store.Unlock()
	return nil
}

func (c *RecordCollector) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RecordCollector{
		Level:  c.Level,
		attrs:  slogcommon.AppendAttrsToGroup(c.groups, c.attrs, attrs...),
		groups: c.groups,
		store:  c.store,
	}
}

func (c *RecordCollector) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	return &RecordCollector{
		Level:  c.Level,
		attrs:  c.attrs,
		groups: append(slices.Clone(c.groups), name),
		store:  c.store,
	}
}

func (c *RecordCollector) Records() []map[string]any {
	c.store.Lock()
	defer c.store.Unlock()
	return slices.Clone(c.store.records)
}

// Count returns how many collected records have the given message prefix.
func (c *RecordCollector) Count(prefix string) (n int) {
	for _, r := range c.Records() {
		if msg, _ := r["message"].(string); strings.HasPrefix(msg, prefix) {
			n++
		}
	}
	return
}

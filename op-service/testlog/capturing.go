package testlog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedRecord is a log record together with the attributes inherited from the logger it was written to.
type CapturedRecord struct {
	Inherited []slog.Attr
	*slog.Record
}

// AttrValue returns the value of the first attribute with the given key, searching record attributes first.
func (r *CapturedRecord) AttrValue(key string) (v any, ok bool) {
	r.Record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, ok = a.Value.Any(), true
			return false
		}
		return true
	})
	if ok {
		return v, ok
	}
	for _, a := range r.Inherited {
		if a.Key == key {
			return a.Value.Any(), true
		}
	}
	return nil, false
}

type capturedLogs struct {
	mu   sync.Mutex
	logs []*CapturedRecord
}

// CapturingHandler captures all log records and forwards them to a delegate.
// It is safe for concurrent use.
type CapturingHandler struct {
	handler slog.Handler
	logs    *capturedLogs
	attrs   []slog.Attr
}

func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	ch := &CapturingHandler{handler: handler(t, level), logs: new(capturedLogs)}
	return log.NewLogger(ch), ch
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.logs.mu.Lock()
	c.logs.logs = append(c.logs.logs, &CapturedRecord{Inherited: c.attrs, Record: &r})
	c.logs.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	inherited := make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	inherited = append(append(inherited, attrs...), c.attrs...)
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		logs:    c.logs,
		attrs:   inherited,
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		logs:    c.logs,
	}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

// FindLog returns the first captured record whose message contains msg, or nil.
func (c *CapturingHandler) FindLog(msg string) *CapturedRecord {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	for _, r := range c.logs.logs {
		if strings.Contains(r.Message, msg) {
			return r
		}
	}
	return nil
}

// FindLogs returns all captured records at the given level.
func (c *CapturingHandler) FindLogs(level slog.Level) []*CapturedRecord {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	var out []*CapturedRecord
	for _, r := range c.logs.logs {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

func (c *CapturingHandler) Clear() {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	c.logs.logs = c.logs.logs[:0]
}

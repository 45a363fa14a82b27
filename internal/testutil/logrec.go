// Package testutil holds helpers shared by tests: a recording slog
// handler and deterministic value builders.
package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured log entry with its attributes flattened.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder captures slog output for assertions.
type LogRecorder struct {
	mu      sync.Mutex
	records []Record
}

// NewLogRecorder returns an empty recorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Logger returns a logger writing into the recorder at all levels.
func (r *LogRecorder) Logger() *slog.Logger {
	return slog.New(&recordHandler{rec: r})
}

// Records returns a copy of everything captured so far.
func (r *LogRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Find returns the first record with the given message.
func (r *LogRecorder) Find(msg string) (Record, bool) {
	for _, rec := range r.Records() {
		if rec.Message == msg {
			return rec, true
		}
	}
	return Record{}, false
}

func (r *LogRecorder) append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

type recordHandler struct {
	rec   *LogRecorder
	attrs []slog.Attr
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.rec.append(Record{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	return nil
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &recordHandler{rec: h.rec, attrs: merged}
}

func (h *recordHandler) WithGroup(string) slog.Handler { return h }

// Package logtest records slog output for assertions in tests.
package logtest

import (
	"context"
	"log/slog"
	"sync"
)

type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is an slog.Handler that keeps every record in memory.
type Recorder struct {
	mu      *sync.Mutex
	records *[]Record
	attrs   []slog.Attr
}

func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, records: &[]Record{}}
}

func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, Record{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, r.attrs...), attrs...)
	return &Recorder{mu: r.mu, records: r.records, attrs: merged}
}

// WithGroup is flattened; group names are not needed by any caller.
func (r *Recorder) WithGroup(string) slog.Handler { return r }

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), (*r.records)...)
}

// Find returns the records logged with msg.
func (r *Recorder) Find(msg string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Message == msg {
			out = append(out, rec)
		}
	}
	return out
}

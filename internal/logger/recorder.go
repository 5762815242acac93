package logger

import (
	"context"
	"log/slog"
	"sync"
)

// Record is a retained log entry.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// Recorder is a slog.Handler that keeps every record at or above a
// threshold and forwards all records to an optional next handler. The
// loader uses it to attach soft warnings to inspection reports.
type Recorder struct {
	next      slog.Handler
	threshold slog.Level
	attrs     map[string]string
	group     string
	store     *recordStore
}

type recordStore struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder returns a Recorder retaining Warn and above. next may be nil.
func NewRecorder(next slog.Handler) *Recorder {
	return &Recorder{
		next:      next,
		threshold: slog.LevelWarn,
		store:     &recordStore{},
	}
}

// Logger wraps the recorder in the Logger interface.
func (r *Recorder) Logger() Logger {
	return New(r)
}

// Records returns a copy of the retained records in arrival order.
func (r *Recorder) Records() []Record {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]Record, len(r.store.records))
	copy(out, r.store.records)
	return out
}

// Warnings returns the retained messages.
func (r *Recorder) Warnings() []string {
	recs := r.Records()
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Message)
	}
	return out
}

func (r *Recorder) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= r.threshold {
		return true
	}
	return r.next != nil && r.next.Enabled(ctx, level)
}

func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= r.threshold {
		kept := Record{Level: rec.Level, Message: rec.Message, Attrs: map[string]string{}}
		for k, v := range r.attrs {
			kept.Attrs[k] = v
		}
		rec.Attrs(func(a slog.Attr) bool {
			kept.Attrs[r.key(a.Key)] = a.Value.String()
			return true
		})
		r.store.mu.Lock()
		r.store.records = append(r.store.records, kept)
		r.store.mu.Unlock()
	}
	if r.next != nil && r.next.Enabled(ctx, rec.Level) {
		return r.next.Handle(ctx, rec)
	}
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *r
	c.attrs = make(map[string]string, len(r.attrs)+len(attrs))
	for k, v := range r.attrs {
		c.attrs[k] = v
	}
	for _, a := range attrs {
		c.attrs[r.key(a.Key)] = a.Value.String()
	}
	if r.next != nil {
		c.next = r.next.WithAttrs(attrs)
	}
	return &c
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	c := *r
	if r.group != "" {
		c.group = r.group + "." + name
	} else {
		c.group = name
	}
	if r.next != nil {
		c.next = r.next.WithGroup(name)
	}
	return &c
}

func (r *Recorder) key(k string) string {
	if r.group == "" {
		return k
	}
	return r.group + "." + k
}

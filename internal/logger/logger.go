// Package logger is the structured logging capability shared by the
// container loader, the section decoders, the HTTP API and the CLI.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is threaded through the loader and every section decoder. Soft
// data-integrity problems are reported at Warn level; per-entry decode
// traces go to Debug.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Output formats accepted by NewHandler.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// NewHandler returns the handler for a named output format. JSON output
// carries source positions for machine consumers.
func NewHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPretty:
		return NewPrettyHandler(w, opts), nil
	case FormatJSON:
		opts.AddSource = true
		return slog.NewJSONHandler(w, opts), nil
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want %s, %s or %s)", format, FormatPretty, FormatJSON, FormatText)
}

func mustHandler(format string, w io.Writer, level slog.Level) Logger {
	h, err := NewHandler(format, w, level)
	if err != nil {
		panic(err)
	}
	return New(h)
}

// New wraps handler.
func New(handler slog.Handler) Logger {
	return slogLogger{l: slog.New(handler)}
}

// Default logs text at info level to stderr.
func Default() Logger { return Text(os.Stderr, slog.LevelInfo) }

func Text(w io.Writer, level slog.Level) Logger   { return mustHandler(FormatText, w, level) }
func JSON(w io.Writer, level slog.Level) Logger   { return mustHandler(FormatJSON, w, level) }
func Pretty(w io.Writer, level slog.Level) Logger { return mustHandler(FormatPretty, w, level) }

// Nop drops everything.
func Nop() Logger {
	return New(slog.DiscardHandler)
}

// OrNop returns l, or Nop when l is nil. Decoders accept a nil logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached by WithContext, or Default.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
			return l
		}
	}
	return Default()
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s slogLogger) With(args ...any) Logger {
	return slogLogger{l: s.l.With(args...)}
}

func (s slogLogger) WithGroup(name string) Logger {
	return slogLogger{l: s.l.WithGroup(name)}
}

// ParseLevel converts a level name to slog.Level. "warning" is accepted
// as an alias; anything unrecognized is info.
func ParseLevel(level string) slog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

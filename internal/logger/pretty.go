package logger

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// FileKey is the attribute the CLI attaches to a per-movie logger. The
// pretty handler prints it as a line prefix instead of a key=value pair.
const FileKey = "file"

// maxHexBytes bounds how much of a raw byte attribute is dumped.
const maxHexBytes = 32

// tagKeys are attributes holding FourCC tags. Their values are quoted
// verbatim so trailing spaces stay visible ("CAS*", "Thum", "snd ").
var tagKeys = []string{"tag", "section", "media", "want", "got", "file_tag"}

// PrettyHandler is a slog.Handler for terminal output:
//
//	12:04:05 WARN  intro.dir: cast member skipped lib=1 member=12 tag="BITD"
//
// Byte-slice attributes (unknown payload prefixes, raw attribute blobs) are
// rendered as truncated hex.
type PrettyHandler struct {
	opts  slog.HandlerOptions
	w     io.Writer
	mu    *sync.Mutex
	group string
	file  string
	attrs []slog.Attr
}

// NewPrettyHandler creates a PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = append(buf, ansiGray...)
	buf = r.Time.AppendFormat(buf, time.TimeOnly)
	buf = append(buf, ansiReset...)
	buf = append(buf, ' ')
	buf = appendLevel(buf, r.Level)
	buf = append(buf, ' ')

	file := h.file
	attrs := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == FileKey && h.group == "" && a.Value.Kind() == slog.KindString {
			file = a.Value.String()
			return true
		}
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})

	if file != "" {
		buf = append(buf, ansiBold...)
		buf = append(buf, filepath.Base(file)...)
		buf = append(buf, ':')
		buf = append(buf, ansiReset...)
		buf = append(buf, ' ')
	}
	buf = append(buf, r.Message...)

	if len(attrs) > 0 {
		buf = append(buf, ansiCyan...)
		for _, a := range attrs {
			buf = append(buf, ' ')
			buf = appendAttr(buf, a)
		}
		buf = append(buf, ansiReset...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if a.Key == FileKey && h.group == "" && a.Value.Kind() == slog.KindString {
			next.file = a.Value.String()
			continue
		}
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}

func appendLevel(buf []byte, level slog.Level) []byte {
	var color string
	switch {
	case level >= slog.LevelError:
		color = ansiRed
	case level >= slog.LevelWarn:
		color = ansiYellow
	case level >= slog.LevelInfo:
		color = ansiBlue
	default:
		color = ansiGray
	}
	buf = append(buf, color...)
	buf = append(buf, ansiBold...)
	buf = fmt.Appendf(buf, "%-5s", level.String())
	return append(buf, ansiReset...)
}

// appendAttr writes a as key=value. Keys arrive already group-qualified.
func appendAttr(buf []byte, a slog.Attr) []byte {
	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if isTagKey(a.Key) || needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindDuration:
		return append(buf, v.Duration().Round(time.Microsecond).String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindGroup:
		buf = append(buf, '{')
		for i, ga := range v.Group() {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, ga)
		}
		return append(buf, '}')
	}
	switch x := v.Any().(type) {
	case []byte:
		return appendHex(buf, x)
	case fmt.Stringer:
		s := x.String()
		if isTagKey(a.Key) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	}
	return fmt.Append(buf, v.Any())
}

func isTagKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	return slices.Contains(tagKeys, key)
}

func appendHex(buf, b []byte) []byte {
	buf = append(buf, "0x"...)
	if len(b) <= maxHexBytes {
		return hex.AppendEncode(buf, b)
	}
	buf = hex.AppendEncode(buf, b[:maxHexBytes])
	return fmt.Appendf(buf, "…(%d bytes)", len(b))
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, c := range s {
		if c <= ' ' || c == '"' || c == '=' {
			return true
		}
	}
	return false
}

package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/movie"
)

// logHandler is the handler chosen by the root command. Per-movie recorders
// forward to it.
var logHandler slog.Handler

func newLogHandler(format, level string, debug bool, w *os.File) (slog.Handler, error) {
	lvl := logger.ParseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" || format == "auto" {
		format = "text"
		if isTerminal(w) {
			format = "pretty"
		}
	}
	return logger.NewHandler(format, w, lvl)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadMovie opens path and returns the soft warnings raised while loading.
func loadMovie(ctx context.Context, path string) (*movie.Movie, []string, error) {
	rec := logger.NewRecorder(logHandler)
	m, err := movie.Open(logger.WithContext(ctx, rec.Logger().With(logger.FileKey, path)), path, movie.Options{})
	if err != nil {
		return nil, nil, err
	}
	return m, rec.Warnings(), nil
}

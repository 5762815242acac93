package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

const (
	envOutDir    = "SHOCKABSORBER_OUT_DIR"
	envMoviesDir = "SHOCKABSORBER_MOVIES_DIR"
)

var movieExts = []string{".dir", ".dxr", ".cst", ".cxt"}

// resolveMoviePaths returns the explicit arguments, or every movie in the
// movies dir when there are none.
func resolveMoviePaths(args []string, moviesDir string) ([]string, error) {
	if len(args) > 0 {
		out := make([]string, 0, len(args))
		for _, a := range args {
			out = append(out, filepath.Clean(a))
		}
		return out, nil
	}

	dir := strings.TrimSpace(moviesDir)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envMoviesDir))
	}
	if dir == "" {
		return nil, fmt.Errorf("a movie path or --movies-dir is required unless %s is set", envMoviesDir)
	}
	movies, err := discoverMovies(dir)
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, fmt.Errorf("no movies found in %s", dir)
	}
	return movies, nil
}

func discoverMovies(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("movies directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("movies path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	movies := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !slices.Contains(movieExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		movies = append(movies, filepath.Join(dir, e.Name()))
	}
	sort.Strings(movies)
	return movies, nil
}

// resolveOutDir picks the extraction directory for one movie. An explicit
// flag is used as is; otherwise the movie's base name goes under
// $SHOCKABSORBER_OUT_DIR or ./out.
func resolveOutDir(outFlag, moviePath string, perMovie bool) (string, error) {
	base := strings.TrimSuffix(filepath.Base(moviePath), filepath.Ext(moviePath))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid movie path: %q", moviePath)
	}

	outDir := strings.TrimSpace(outFlag)
	if outDir == "" {
		outDir = strings.TrimSpace(os.Getenv(envOutDir))
		if outDir == "" {
			outDir = filepath.Join(".", "out")
		}
		perMovie = true
	}
	outDir = filepath.Clean(outDir)
	if perMovie {
		outDir = filepath.Join(outDir, base)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return outDir, nil
}

// safeName maps s onto characters safe in file names.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

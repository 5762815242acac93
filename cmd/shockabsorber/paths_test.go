package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveOutDir(t *testing.T) {
	t.Run("explicit output wins", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "nested")
		got, err := resolveOutDir(out, "/movies/intro.dxr", false)
		if err != nil {
			t.Fatalf("resolveOutDir returned error: %v", err)
		}
		if got != filepath.Clean(out) {
			t.Fatalf("unexpected output dir: got %q want %q", got, out)
		}
		if _, err := os.Stat(got); err != nil {
			t.Fatalf("expected output directory to exist: %v", err)
		}
	})

	t.Run("explicit output per movie", func(t *testing.T) {
		out := t.TempDir()
		got, err := resolveOutDir(out, "/movies/intro.dxr", true)
		if err != nil {
			t.Fatalf("resolveOutDir returned error: %v", err)
		}
		if want := filepath.Join(out, "intro"); got != want {
			t.Fatalf("unexpected output dir: got %q want %q", got, want)
		}
	})

	t.Run("env output dir overrides default", func(t *testing.T) {
		envDir := filepath.Join(t.TempDir(), "extract-out")
		t.Setenv(envOutDir, envDir)

		got, err := resolveOutDir("", "/movies/Title.dir", false)
		if err != nil {
			t.Fatalf("resolveOutDir returned error: %v", err)
		}
		if want := filepath.Join(envDir, "Title"); got != want {
			t.Fatalf("unexpected output dir: got %q want %q", got, want)
		}
	})

	t.Run("default output dir is ./out", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv(envOutDir, "")

		got, err := resolveOutDir("", "cast.cxt", false)
		if err != nil {
			t.Fatalf("resolveOutDir returned error: %v", err)
		}
		if want := filepath.Join("out", "cast"); got != want {
			t.Fatalf("unexpected output dir: got %q want %q", got, want)
		}
	})
}

func TestDiscoverMoviesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.dxr", "a.DIR", "c.cst", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write file %s: %v", name, err)
		}
	}

	got, err := discoverMovies(dir)
	if err != nil {
		t.Fatalf("discoverMovies returned error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.DIR"),
		filepath.Join(dir, "b.dxr"),
		filepath.Join(dir, "c.cst"),
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected movie count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected ordering at %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestResolveMoviePaths(t *testing.T) {
	t.Run("arguments bypass discovery", func(t *testing.T) {
		t.Setenv(envMoviesDir, "")
		got, err := resolveMoviePaths([]string{"a/../intro.dir"}, "")
		if err != nil {
			t.Fatalf("resolveMoviePaths returned error: %v", err)
		}
		if len(got) != 1 || got[0] != "intro.dir" {
			t.Fatalf("unexpected paths %v", got)
		}
	})

	t.Run("env dir is discovered", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "only.dir"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(envMoviesDir, dir)
		got, err := resolveMoviePaths(nil, "")
		if err != nil || len(got) != 1 {
			t.Fatalf("unexpected result %v, %v", got, err)
		}
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		t.Setenv(envMoviesDir, "")
		if _, err := resolveMoviePaths(nil, ""); err == nil {
			t.Fatal("expected an error without arguments or movies dir")
		}
		if _, err := resolveMoviePaths(nil, t.TempDir()); err == nil {
			t.Fatal("expected an error for an empty movies dir")
		}
	})
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"sample":     "sample",
		"KEY*":       "KEY",
		"snd ":       "snd",
		"Café logo!": "Caf__logo",
		"../../etc":  "etc",
		"":           "",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/movie"
)

// Loader opens a movie and reports the warnings raised while loading it.
type Loader interface {
	Load(ctx context.Context, path string) (*movie.Movie, []string, error)
}

type LoaderFunc func(ctx context.Context, path string) (*movie.Movie, []string, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (*movie.Movie, []string, error) {
	return f(ctx, path)
}

// RecordingLoader opens movies with opts and collects their soft warnings.
func RecordingLoader(opts movie.Options) Loader {
	return LoaderFunc(func(ctx context.Context, path string) (*movie.Movie, []string, error) {
		rec := logger.NewRecorder(nil)
		m, err := movie.Open(logger.WithContext(ctx, rec.Logger()), path, opts)
		if err != nil {
			return nil, nil, err
		}
		return m, rec.Warnings(), nil
	})
}

type MovieProviderConfig struct {
	MoviesPath string
	Loader     Loader
}

// CachedMovieProvider resolves movie names against a directory and keeps
// each file loaded at most once in its store.
type CachedMovieProvider struct {
	cfg   MovieProviderConfig
	store *MovieStore
	mu    sync.Mutex
	// loading serialises concurrent loads of the same path.
	loading map[string]*sync.Mutex
}

const envMoviesDir = "SHOCKABSORBER_MOVIES_DIR"

var movieExts = []string{".dir", ".dxr", ".cst", ".cxt"}

func NewCachedMovieProvider(cfg MovieProviderConfig, store *MovieStore) *CachedMovieProvider {
	if cfg.Loader == nil {
		cfg.Loader = RecordingLoader(movie.Options{})
	}
	if store == nil {
		store = NewMovieStore()
	}
	return &CachedMovieProvider{
		cfg:     cfg,
		store:   store,
		loading: make(map[string]*sync.Mutex),
	}
}

func (p *CachedMovieProvider) Store() *MovieStore { return p.store }

// Open resolves name and returns its loaded record. created reports
// whether this call performed the load.
func (p *CachedMovieProvider) Open(ctx context.Context, name string) (rec *MovieRecord, created bool, err error) {
	path, err := p.resolveMoviePath(name)
	if err != nil {
		return nil, false, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if rec, ok := p.store.ByPath(path); ok {
		return rec, false, nil
	}

	lock := p.pathLock(path)
	lock.Lock()
	defer lock.Unlock()
	if rec, ok := p.store.ByPath(path); ok {
		return rec, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m, warnings, err := p.cfg.Loader.Load(ctx, path)
	if err != nil {
		return nil, false, err
	}
	return p.store.Put(path, m, warnings), true, nil
}

func (p *CachedMovieProvider) pathLock(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.loading[path]
	if !ok {
		l = &sync.Mutex{}
		p.loading[path] = l
	}
	return l
}

func (p *CachedMovieProvider) resolveMoviePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newInvalidRequest("movie name or path is required")
	}
	if looksLikePath(name) {
		path := filepath.Clean(name)
		if !fileExists(path) {
			return "", fmt.Errorf("%w: %s", ErrMovieNotFound, path)
		}
		return path, nil
	}
	dir := p.moviesDir()
	if dir == "" {
		return "", newInvalidRequest(fmt.Sprintf("movies-dir is required to resolve movie %q", name))
	}
	if resolved := resolveInDir(dir, name); resolved != "" {
		return resolved, nil
	}
	return "", fmt.Errorf("%w: %q in %s", ErrMovieNotFound, name, dir)
}

func (p *CachedMovieProvider) moviesDir() string {
	if strings.TrimSpace(p.cfg.MoviesPath) != "" {
		return strings.TrimSpace(p.cfg.MoviesPath)
	}
	return strings.TrimSpace(os.Getenv(envMoviesDir))
}

// ListMovies returns the base names of the movie files in the movies dir.
func (p *CachedMovieProvider) ListMovies() ([]string, error) {
	dir := p.moviesDir()
	if dir == "" {
		return nil, nil
	}
	paths, err := discoverMovies(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		out = append(out, filepath.Base(path))
	}
	return out, nil
}

func hasMovieExt(name string) bool {
	return slices.Contains(movieExts, strings.ToLower(filepath.Ext(name)))
}

func looksLikePath(v string) bool {
	return strings.Contains(v, string(filepath.Separator))
}

func resolveInDir(dir, name string) string {
	if dir == "" {
		return ""
	}
	cand := filepath.Join(dir, name)
	if fileExists(cand) {
		return cand
	}
	if !hasMovieExt(name) {
		for _, ext := range movieExts {
			cand = filepath.Join(dir, name+ext)
			if fileExists(cand) {
				return cand
			}
		}
	}
	return ""
}

func discoverMovies(dir string) ([]string, error) {
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
		if e.IsDir() || !hasMovieExt(e.Name()) {
			continue
		}
		movies = append(movies, filepath.Join(dir, e.Name()))
	}
	return movies, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

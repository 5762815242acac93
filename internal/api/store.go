package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arusekk/Schockabsorber/internal/movie"
)

// MovieRecord is a movie held open by the server.
type MovieRecord struct {
	ID       string
	Path     string
	LoadedAt time.Time
	Movie    *movie.Movie
	Warnings []string
}

// MovieStore holds loaded movies by ID. It owns them: Delete and Close
// release their files.
type MovieStore struct {
	mu     sync.Mutex
	movies map[string]*MovieRecord
	paths  map[string]string
	clock  func() time.Time
}

func NewMovieStore() *MovieStore {
	return &MovieStore{
		movies: make(map[string]*MovieRecord),
		paths:  make(map[string]string),
		clock:  time.Now,
	}
}

// Put stores m under a fresh ID. If path is already present the existing
// record wins and m is closed.
func (s *MovieStore) Put(path string, m *movie.Movie, warnings []string) *MovieRecord {
	s.mu.Lock()
	if id, ok := s.paths[path]; ok {
		rec := s.movies[id]
		s.mu.Unlock()
		_ = m.Close()
		return rec
	}
	rec := &MovieRecord{
		ID:       newMovieID(),
		Path:     path,
		LoadedAt: s.clock(),
		Movie:    m,
		Warnings: warnings,
	}
	s.movies[rec.ID] = rec
	s.paths[path] = rec.ID
	s.mu.Unlock()
	return rec
}

func (s *MovieStore) Get(id string) (*MovieRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.movies[id]
	return rec, ok
}

func (s *MovieStore) ByPath(path string) (*MovieRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.paths[path]
	if !ok {
		return nil, false
	}
	return s.movies[id], true
}

// List returns the records in load order.
func (s *MovieStore) List() []*MovieRecord {
	s.mu.Lock()
	out := make([]*MovieRecord, 0, len(s.movies))
	for _, rec := range s.movies {
		out = append(out, rec)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoadedAt.Equal(out[j].LoadedAt) {
			return out[i].LoadedAt.Before(out[j].LoadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes and closes the movie with the given ID.
func (s *MovieStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	rec, ok := s.movies[id]
	if ok {
		delete(s.movies, id)
		delete(s.paths, rec.Path)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, rec.Movie.Close()
}

// Close closes every stored movie.
func (s *MovieStore) Close() error {
	s.mu.Lock()
	recs := make([]*MovieRecord, 0, len(s.movies))
	for _, rec := range s.movies {
		recs = append(recs, rec)
	}
	s.movies = make(map[string]*MovieRecord)
	s.paths = make(map[string]string)
	s.mu.Unlock()

	var errs []error
	for _, rec := range recs {
		if err := rec.Movie.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newMovieID() string {
	return "mov_" + uuid.NewString()
}

// Package catalog indexes the cast members of many movies in SQLite.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/Arusekk/Schockabsorber/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

// Store is a catalog database.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the catalog to rebuild it)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

// Index replaces everything recorded for the movie at m.Path and returns
// the file id.
func (s *Store) Index(ctx context.Context, m *report.Movie) (int64, error) {
	if m.Path == "" {
		return 0, errors.New("catalog: movie has no path")
	}
	var id int64
	err := retryOnBusy(ctx, func() error {
		var err error
		id, err = s.index(ctx, m)
		return err
	})
	return id, err
}

func (s *Store) index(ctx context.Context, m *report.Movie) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", m.Path); err != nil {
		return 0, fmt.Errorf("drop previous entry: %w", err)
	}
	var palette any
	if m.Palette != nil {
		palette = *m.Palette
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO files (path, format, little_endian, sections, palette, warnings, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Path, m.Format, boolToInt(m.LittleEndian), m.Sections, palette, len(m.Warnings),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, lib := range m.Libraries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO libraries (file_id, nr, name, path, assoc_id, slots) VALUES (?, ?, ?, ?, ?, ?)",
			id, lib.Nr, nullableString(lib.Name), nullableString(lib.Path), lib.AssocID, lib.Slots); err != nil {
			return 0, fmt.Errorf("insert library %d: %w", lib.Nr, err)
		}
		for _, mem := range lib.Members {
			mediaJSON, err := json.Marshal(mediaOrEmpty(mem.Media))
			if err != nil {
				return 0, err
			}
			var width, height, bpp any
			if mem.Image != nil {
				width, height, bpp = mem.Image.Width, mem.Image.Height, mem.Image.BitsPerPixel
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO members (file_id, library, ordinal, section, type, name, width, height, bpp, media)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, mem.Library, mem.Ordinal, mem.Section, mem.Type, nullableString(mem.Name),
				width, height, bpp, string(mediaJSON)); err != nil {
				return 0, fmt.Errorf("insert member %d:%d: %w", mem.Library, mem.Ordinal, err)
			}
		}
	}
	return id, tx.Commit()
}

// Remove deletes a file and its members. It reports whether the file was
// present.
func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
		return err
	})
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func mediaOrEmpty(m []report.Media) []report.Media {
	if m == nil {
		return []report.Media{}
	}
	return m
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

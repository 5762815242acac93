package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arusekk/Schockabsorber/internal/report"
)

// File is one indexed movie.
type File struct {
	ID           int64
	Path         string
	Format       string
	LittleEndian bool
	Sections     int
	Libraries    int
	Members      int
	Warnings     int
	IndexedAt    time.Time
}

// Query filters Search. Empty fields match everything.
type Query struct {
	// Name matches member names by case-insensitive substring.
	Name string
	// Type matches the member type name exactly, e.g. "image".
	Type  string
	Limit int
}

// Hit is one member matched by Search.
type Hit struct {
	Path    string
	Library int
	Ordinal int
	Section int
	Type    string
	Name    string
	Width   int
	Height  int
	BPP     int
	Media   []report.Media
}

const defaultLimit = 100

// Files lists indexed movies by path.
func (s *Store) Files(ctx context.Context) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.path, f.format, f.little_endian, f.sections, f.warnings, f.indexed_at,
		       (SELECT COUNT(1) FROM libraries l WHERE l.file_id = f.id),
		       (SELECT COUNT(1) FROM members m WHERE m.file_id = f.id)
		FROM files f ORDER BY f.path`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []File
	for rows.Next() {
		var (
			f       File
			le      int
			indexed string
		)
		if err := rows.Scan(&f.ID, &f.Path, &f.Format, &le, &f.Sections, &f.Warnings, &indexed, &f.Libraries, &f.Members); err != nil {
			return nil, err
		}
		f.LittleEndian = le != 0
		if t, err := time.Parse(time.RFC3339Nano, indexed); err == nil {
			f.IndexedAt = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Search finds members across all indexed movies, ordered by path,
// library and ordinal.
func (s *Store) Search(ctx context.Context, q Query) ([]Hit, error) {
	var (
		where []string
		args  []any
	)
	if q.Name != "" {
		where = append(where, `LOWER(m.name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Name))+"%")
	}
	if q.Type != "" {
		where = append(where, "m.type = ?")
		args = append(args, q.Type)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT f.path, m.library, m.ordinal, m.section, m.type, m.name, m.width, m.height, m.bpp, m.media
		FROM members m JOIN files f ON f.id = m.file_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.path, m.library, m.ordinal LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Hit
	for rows.Next() {
		var (
			h                  Hit
			name               sql.NullString
			width, height, bpp sql.NullInt64
			mediaJSON          string
		)
		if err := rows.Scan(&h.Path, &h.Library, &h.Ordinal, &h.Section, &h.Type, &name, &width, &height, &bpp, &mediaJSON); err != nil {
			return nil, err
		}
		h.Name = name.String
		h.Width, h.Height, h.BPP = int(width.Int64), int(height.Int64), int(bpp.Int64)
		if err := json.Unmarshal([]byte(mediaJSON), &h.Media); err != nil {
			return nil, fmt.Errorf("decode media of %s %d:%d: %w", h.Path, h.Library, h.Ordinal, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

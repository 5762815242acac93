// Package movie loads a Director container into its cast libraries,
// members and media.
package movie

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Arusekk/Schockabsorber/internal/cast"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// Collaborator builds an auxiliary model, such as scripts or the score,
// from a loaded container. It must not modify the maps it is given.
type Collaborator interface {
	Name() string
	Parse(ctx context.Context, secs *rifx.SectionMap, assoc *cast.AssociationTable, rc rifx.Context) (any, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc struct {
	ID string
	Fn func(ctx context.Context, secs *rifx.SectionMap, assoc *cast.AssociationTable, rc rifx.Context) (any, error)
}

func (c CollaboratorFunc) Name() string { return c.ID }

func (c CollaboratorFunc) Parse(ctx context.Context, secs *rifx.SectionMap, assoc *cast.AssociationTable, rc rifx.Context) (any, error) {
	return c.Fn(ctx, secs, assoc, rc)
}

// Options configures a load. The zero value reads uncompressed movies.
type Options struct {
	// Envelopes maps format tags to section map builders. Nil means
	// rifx.DefaultEnvelopes.
	Envelopes rifx.Envelopes
	// Collaborators run after the cast is populated. A failing
	// collaborator aborts the load.
	Collaborators []Collaborator
}

// Movie is a loaded container.
type Movie struct {
	Path         string
	Header       rifx.Header
	Sections     *rifx.SectionMap
	Associations *cast.AssociationTable
	Libraries    *cast.LibraryTable
	// Config is nil when the file has no configuration section.
	Config *cast.DirConfig
	// Order is nil when the file has no cast order.
	Order []cast.OrderEntry
	// Extras holds collaborator results by name.
	Extras map[string]any

	closer io.Closer
	log    logger.Logger

	mu    sync.Mutex
	cache map[renderKey]renderResult
}

// Open maps the file at path and loads it. The movie keeps the file open
// until Close.
func Open(ctx context.Context, path string, opts Options) (*Movie, error) {
	f, err := rifx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	m, err := Load(ctx, f, f.Size(), opts)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	m.Path = path
	m.closer = f
	return m, nil
}

// Load reads a container from r. The logger is taken from ctx.
func Load(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Movie, error) {
	log := logger.FromContext(ctx)

	h, err := rifx.ReadHeader(r)
	if err != nil {
		return nil, err
	}
	log.Debug("container header", "format", string(h.FileTag), "little_endian", h.LittleEndian, "size", h.Size)

	envs := opts.Envelopes
	if envs == nil {
		envs = rifx.DefaultEnvelopes()
	}
	secs, err := envs.SectionMap(r, size, h, log)
	if err != nil {
		return nil, err
	}
	rc := h.Context()

	m := &Movie{
		Header:   h,
		Sections: secs,
		Extras:   map[string]any{},
		log:      log,
		cache:    map[renderKey]renderResult{},
	}

	if m.Associations, err = readAssociations(secs, rc, log); err != nil {
		return nil, err
	}
	if m.Libraries, err = readLibraries(secs, rc, log); err != nil {
		return nil, err
	}
	if m.Config, err = readConfig(secs, log); err != nil {
		return nil, err
	}
	if err := m.Libraries.Populate(ctx, secs, m.Associations, rc, log); err != nil {
		return nil, err
	}
	if m.Order, err = readOrder(secs, m.Associations, log); err != nil {
		return nil, err
	}
	if m.Order != nil {
		for i, mem := range m.Libraries.ResolveOrder(m.Order, log) {
			if mem != nil {
				log.Debug("cast order", "index", i, "library", m.Order[i].Library, "member", m.Order[i].Member, "name", mem.Name)
			}
		}
	}

	for _, c := range opts.Collaborators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := c.Parse(ctx, secs, m.Associations, rc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		m.Extras[c.Name()] = v
	}
	return m, nil
}

func readAssociations(secs *rifx.SectionMap, rc rifx.Context, log logger.Logger) (*cast.AssociationTable, error) {
	s := secs.ByTag(rifx.TagKeyTable)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", rifx.ErrSectionNotFound, rifx.TagKeyTable)
	}
	blob, err := s.Payload()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rifx.TagKeyTable, err)
	}
	return cast.ParseAssociationTable(blob, rc, log)
}

// readLibraries falls back to the default library when the directory is
// absent or unreadable.
func readLibraries(secs *rifx.SectionMap, rc rifx.Context, log logger.Logger) (*cast.LibraryTable, error) {
	s := secs.ByTag(rifx.TagLibraries)
	if s == nil {
		log.Debug("no cast library directory, using default library")
		return cast.DefaultLibraryTable(), nil
	}
	blob, err := s.Payload()
	if err != nil {
		if cast.Fatal(err) {
			return nil, fmt.Errorf("%s: %w", rifx.TagLibraries, err)
		}
		log.Warn("cast library directory unreadable, using default library", "section", s.Nr, "error", err)
		return cast.DefaultLibraryTable(), nil
	}
	t, err := cast.ParseLibraryDir(blob, rc, log)
	if err != nil {
		log.Warn("cast library directory undecodable, using default library", "section", s.Nr, "error", err)
		return cast.DefaultLibraryTable(), nil
	}
	return t, nil
}

func readConfig(secs *rifx.SectionMap, log logger.Logger) (*cast.DirConfig, error) {
	s := secs.ByTag(rifx.TagDirConfig)
	if s == nil {
		s = secs.ByTag(rifx.TagVWConfig)
	}
	if s == nil {
		log.Warn("no movie configuration section")
		return nil, nil
	}
	blob, err := s.Payload()
	if err != nil {
		if cast.Fatal(err) {
			return nil, fmt.Errorf("%s: %w", s.Tag, err)
		}
		log.Warn("movie configuration unreadable", "section", s.Nr, "error", err)
		return nil, nil
	}
	c, err := cast.ParseDirConfig(s.Tag, blob, log)
	if err != nil {
		log.Warn("movie configuration undecodable", "section", s.Nr, "error", err)
		return nil, nil
	}
	return c, nil
}

func readOrder(secs *rifx.SectionMap, assoc *cast.AssociationTable, log logger.Logger) ([]cast.OrderEntry, error) {
	nr, ok := assoc.LibrarySection(0, rifx.TagCastOrder)
	if !ok {
		return nil, nil
	}
	blob, err := secs.Payload(nr)
	if err != nil {
		if cast.Fatal(err) {
			return nil, fmt.Errorf("%s: %w", rifx.TagCastOrder, err)
		}
		log.Warn("cast order unreadable", "section", nr, "error", err)
		return nil, nil
	}
	order, err := cast.ParseCastOrder(blob, log)
	if err != nil {
		log.Warn("cast order undecodable", "section", nr, "error", err)
		return nil, nil
	}
	return order, nil
}

// Context returns the decoding context of the container.
func (m *Movie) Context() rifx.Context { return m.Header.Context() }

// Member resolves a (library, ordinal) reference.
func (m *Movie) Member(lib, ordinal int) (*cast.Member, bool) {
	return m.Libraries.Member(lib, ordinal, m.log)
}

// OrderedMembers resolves the cast order. It is nil without a cast order.
func (m *Movie) OrderedMembers() []*cast.Member {
	if m.Order == nil {
		return nil
	}
	return m.Libraries.ResolveOrder(m.Order, m.log)
}

// Close releases the underlying file, if the movie owns one.
func (m *Movie) Close() error {
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

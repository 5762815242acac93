package cast

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/media"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// Sections is the read side of a section map.
type Sections interface {
	Valid(nr int) bool
	Payload(nr int) ([]byte, error)
}

// Fatal reports whether err invalidates further parsing of the container.
// Missing or short sections and malformed members are not fatal.
func Fatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, rifx.ErrSectionMismatch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, rifx.ErrInvalidSection),
		errors.Is(err, rifx.ErrShortBuffer),
		errors.Is(err, ErrTruncated):
		return false
	}
	return true
}

// Populate resolves the cast list of every library in number order and
// decodes its members and their media. Only fatal errors are returned;
// anything else leaves an empty slot and a warning.
func (t *LibraryTable) Populate(ctx context.Context, secs Sections, assoc *AssociationTable, rc rifx.Context, log logger.Logger) error {
	log = logger.OrNop(log)
	for _, lib := range t.Libraries() {
		llog := log.With("library", lib.Nr)
		if lib.skipped() {
			llog.Debug("library has no cast list to resolve", "name", lib.Name)
			continue
		}
		listNr, ok := assoc.LibrarySection(lib.AssocID, rifx.TagCastList)
		if !ok {
			llog.Debug("library has no cast list", "assoc", lib.AssocID)
			continue
		}
		blob, err := secs.Payload(listNr)
		if err != nil {
			if Fatal(err) {
				return fmt.Errorf("library %d cast list: %w", lib.Nr, err)
			}
			llog.Warn("cast list unreadable", "section", listNr, "error", err)
			continue
		}
		nrs := ParseCastList(blob, llog)
		llog.Debug("cast list", "section", listNr, "entries", nrs)

		members := make([]*Member, len(nrs))
		for i, nr := range nrs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if nr == 0 {
				continue
			}
			m, err := loadMember(nr, secs, assoc, rc, llog.With("member", i+1))
			if err != nil {
				return fmt.Errorf("library %d member %d: %w", lib.Nr, i+1, err)
			}
			members[i] = m
		}
		lib.SetMembers(members)
	}
	return nil
}

// loadMember returns nil without error when the member is skipped.
func loadMember(nr int, secs Sections, assoc *AssociationTable, rc rifx.Context, log logger.Logger) (*Member, error) {
	if !secs.Valid(nr) {
		log.Warn("cast member section missing", "section", nr)
		return nil, nil
	}
	blob, err := secs.Payload(nr)
	if err != nil {
		if Fatal(err) {
			return nil, err
		}
		log.Warn("cast member unreadable", "section", nr, "error", err)
		return nil, nil
	}
	m, err := ParseMember(nr, blob, rc, log)
	if err != nil {
		log.Warn("cast member undecodable", "section", nr, "error", err)
		return nil, nil
	}

	owned := assoc.CastMedia(nr)
	for _, tag := range SortedTags(owned) {
		mnr := owned[tag]
		if !secs.Valid(mnr) {
			log.Warn("media section missing", "section", mnr, "tag", string(tag))
			continue
		}
		data, err := secs.Payload(mnr)
		if err != nil {
			if Fatal(err) {
				return nil, err
			}
			log.Warn("media section unreadable", "section", mnr, "tag", string(tag), "error", err)
			continue
		}
		m.AttachMedia(media.Parse(mnr, tag, data, log))
	}
	return m, nil
}

// ResolveOrder maps cast order entries to members. Unresolved entries are
// nil.
func (t *LibraryTable) ResolveOrder(order []OrderEntry, log logger.Logger) []*Member {
	out := make([]*Member, len(order))
	for i, e := range order {
		m, ok := t.Member(int(e.Library), int(e.Member), log)
		if !ok {
			logger.OrNop(log).Debug("cast order entry unresolved", "index", i, "library", e.Library, "member", e.Member)
			continue
		}
		out[i] = m
	}
	return out
}

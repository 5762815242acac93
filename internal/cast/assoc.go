package cast

import (
	"fmt"
	"slices"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// LibraryOwner is the owner id that marks an association as belonging to a
// cast library rather than to a cast member.
const LibraryOwner = 1024

// Association is one "KEY*" record.
type Association struct {
	Owned int
	Assoc int
	Owner int
	Tag   rifx.Tag
}

// IsLibrarySection reports whether the record belongs to a library.
func (a Association) IsLibrarySection() bool { return a.Owner == LibraryOwner }

// AssociationTable maps owners to the sections they own. Library sections
// are keyed by library association id, cast media by the member's section
// number. A repeated (owner, tag) pair overwrites the earlier one.
type AssociationTable struct {
	Entries []Association

	library map[int]map[rifx.Tag]int
	media   map[int]map[rifx.Tag]int
}

type keyHeader struct {
	V1, V2 uint16
	Count  int32
	Valid  int32
}

// NewAssociationTable returns an empty table.
func NewAssociationTable() *AssociationTable {
	return &AssociationTable{
		library: map[int]map[rifx.Tag]int{},
		media:   map[int]map[rifx.Tag]int{},
	}
}

// ParseAssociationTable decodes a "KEY*" payload in the container byte
// order. Only the valid-count entries are read; the element count may
// differ. A payload cut inside the entries keeps what was read.
func ParseAssociationTable(blob []byte, ctx rifx.Context, log logger.Logger) (*AssociationTable, error) {
	log = logger.OrNop(log)
	buf := ctx.NewBuffer(blob)
	var hdr keyHeader
	if err := buf.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: KEY* header: %v", ErrTruncated, err)
	}
	log.Debug("association table header", "v1", hdr.V1, "v2", hdr.V2, "count", hdr.Count, "valid", hdr.Valid)

	t := NewAssociationTable()
	for i := range int(max(hdr.Valid, 0)) {
		var rec struct {
			Owned     int32
			Composite int32
		}
		if err := buf.Decode(&rec); err != nil {
			log.Warn("association table shorter than declared", "expected", hdr.Valid, "got", i)
			break
		}
		tag, err := buf.ReadTag()
		if err != nil {
			log.Warn("association table shorter than declared", "expected", hdr.Valid, "got", i)
			break
		}
		a := Association{
			Owned: int(rec.Owned),
			Assoc: int(rec.Composite >> 16),
			Owner: int(rec.Composite & 0xffff),
			Tag:   tag,
		}
		log.Debug("association", "index", i, "tag", string(tag), "owned", a.Owned, "assoc", a.Assoc, "owner", a.Owner)
		t.Add(a)
	}
	return t, nil
}

// Add routes a record to the library or media index.
func (t *AssociationTable) Add(a Association) {
	t.Entries = append(t.Entries, a)
	idx, key := t.media, a.Owner
	if a.IsLibrarySection() {
		idx, key = t.library, a.Assoc
	}
	m := idx[key]
	if m == nil {
		m = map[rifx.Tag]int{}
		idx[key] = m
	}
	m[a.Tag] = a.Owned
}

// LibrarySections returns tag to section number for a library. The map is
// nil when the library owns nothing and must not be modified.
func (t *AssociationTable) LibrarySections(assoc int) map[rifx.Tag]int {
	return t.library[assoc]
}

// LibrarySection looks up one tag of a library.
func (t *AssociationTable) LibrarySection(assoc int, tag rifx.Tag) (int, bool) {
	nr, ok := t.library[assoc][tag]
	return nr, ok
}

// CastMedia returns tag to section number for the member at section nr.
// The map is nil when the member owns nothing and must not be modified.
func (t *AssociationTable) CastMedia(nr int) map[rifx.Tag]int {
	return t.media[nr]
}

// SortedTags returns the keys of an association map in tag order.
func SortedTags(m map[rifx.Tag]int) []rifx.Tag {
	tags := make([]rifx.Tag, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	return sortTags(tags)
}

func sortTags(tags []rifx.Tag) []rifx.Tag {
	slices.Sort(tags)
	return tags
}

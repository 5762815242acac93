package cast

import (
	"fmt"
	"slices"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// DefaultSelfIndex is the self index of the library synthesized for files
// without a cast-library directory.
const DefaultSelfIndex = 1024

// Library is one cast library. Members are addressed by 1-based ordinal;
// a nil slot is an empty cast entry.
type Library struct {
	Nr        int
	Name      string
	Path      string
	AssocID   int
	Low, High int16
	SelfIndex int
	// Declared is set for libraries read from the directory section, which
	// always carry a (possibly empty) name.
	Declared bool
	// Extra holds directory items beyond the four known ones.
	Extra [][]byte

	members   []*Member
	populated bool
}

// DefaultLibrary returns the library used when a file has no directory.
func DefaultLibrary() *Library {
	return &Library{Nr: 0, SelfIndex: DefaultSelfIndex}
}

// Populated reports whether a cast list has been assigned. A library may
// stay unpopulated when no cast list is associated with it.
func (l *Library) Populated() bool { return l.populated }

// SetMembers assigns the cast-member table.
func (l *Library) SetMembers(members []*Member) {
	l.members = members
	l.populated = true
}

// Members returns the sparse member table.
func (l *Library) Members() []*Member { return l.members }

// Len returns the number of slots, including empty ones.
func (l *Library) Len() int { return len(l.members) }

// Member returns the member at a 1-based ordinal.
func (l *Library) Member(ordinal int) (*Member, bool) {
	if ordinal < 1 || ordinal > len(l.members) {
		return nil, false
	}
	m := l.members[ordinal-1]
	return m, m != nil
}

// Count returns the number of non-empty slots.
func (l *Library) Count() int {
	n := 0
	for _, m := range l.members {
		if m != nil {
			n++
		}
	}
	return n
}

// skipped reports whether a library is fully specified by the directory and
// has no cast list of its own to resolve.
func (l *Library) skipped() bool {
	return l.Declared && l.AssocID == 0
}

// LibraryTable indexes libraries by number and by association id.
type LibraryTable struct {
	byNr    map[int]*Library
	byAssoc map[int]*Library
}

// NewLibraryTable indexes libs. Only positive association ids are indexed.
func NewLibraryTable(libs ...*Library) *LibraryTable {
	t := &LibraryTable{byNr: map[int]*Library{}, byAssoc: map[int]*Library{}}
	for _, l := range libs {
		t.byNr[l.Nr] = l
		if l.AssocID > 0 {
			t.byAssoc[l.AssocID] = l
		}
	}
	return t
}

// DefaultLibraryTable holds only the default library.
func DefaultLibraryTable() *LibraryTable {
	return NewLibraryTable(DefaultLibrary())
}

// Libraries returns all libraries in number order.
func (t *LibraryTable) Libraries() []*Library {
	nrs := make([]int, 0, len(t.byNr))
	for nr := range t.byNr {
		nrs = append(nrs, nr)
	}
	slices.Sort(nrs)
	out := make([]*Library, len(nrs))
	for i, nr := range nrs {
		out[i] = t.byNr[nr]
	}
	return out
}

// Len returns the number of libraries.
func (t *LibraryTable) Len() int { return len(t.byNr) }

// ByNr looks up a library by number.
func (t *LibraryTable) ByNr(nr int) (*Library, bool) {
	l, ok := t.byNr[nr]
	return l, ok
}

// ByAssocID looks up a library by association id.
func (t *LibraryTable) ByAssocID(assoc int) (*Library, bool) {
	l, ok := t.byAssoc[assoc]
	return l, ok
}

// Member resolves a (library, ordinal) reference. Misses are logged at
// debug level and reported as absent.
func (t *LibraryTable) Member(lib, ordinal int, log logger.Logger) (*Member, bool) {
	l, ok := t.byNr[lib]
	if !ok {
		logger.OrNop(log).Debug("no such cast library", "library", lib)
		return nil, false
	}
	m, ok := l.Member(ordinal)
	if !ok {
		logger.OrNop(log).Debug("no such cast member", "library", lib, "member", ordinal)
	}
	return m, ok
}

type libraryDirHeader struct {
	V1       int32
	Count    int32
	PerEntry uint16
	Offsets  int32
	V5       int32
}

// ParseLibraryDir decodes an "MCsL" payload. Libraries are numbered from 1
// in directory order.
func ParseLibraryDir(blob []byte, ctx rifx.Context, log logger.Logger) (*LibraryTable, error) {
	log = logger.OrNop(log)
	buf := rifx.BigEndian(blob)
	var hdr libraryDirHeader
	if err := buf.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: MCsL header: %v", ErrTruncated, err)
	}
	log.Debug("cast library directory", "count", hdr.Count, "offsets", hdr.Offsets, "per_entry", hdr.PerEntry, "v1", hdr.V1, "v5", hdr.V5)
	if hdr.Count < 0 || hdr.Offsets < 0 || hdr.PerEntry < 4 {
		return nil, fmt.Errorf("%w: MCsL header %+v", ErrTruncated, hdr)
	}
	if need := int64(hdr.Count)*int64(hdr.PerEntry) + 1; int64(hdr.Offsets) < need {
		return nil, fmt.Errorf("%w: MCsL has %d offsets for %d items", ErrTruncated, hdr.Offsets, need-1)
	}
	if int64(hdr.Offsets)*4 > int64(buf.Remaining()) {
		return nil, fmt.Errorf("%w: MCsL offset table", ErrTruncated)
	}
	offsets := make([]int32, hdr.Offsets)
	if err := buf.Decode(offsets); err != nil {
		return nil, fmt.Errorf("%w: MCsL offset table: %v", ErrTruncated, err)
	}
	data := buf.Rest()

	item := func(i int) []byte {
		lo, hi := clampRange(int(offsets[i]), int(offsets[i+1]), len(data))
		return data[lo:hi]
	}

	libs := make([]*Library, 0, hdr.Count)
	per := int(hdr.PerEntry)
	for e := range int(hdr.Count) {
		base := e * per
		lib := &Library{Nr: e + 1, Declared: true}

		name, err := rifx.BigEndian(item(base)).ReadString8()
		if err != nil {
			return nil, fmt.Errorf("%w: MCsL entry %d name: %v", ErrTruncated, e+1, err)
		}
		lib.Name = ctx.DecodeString(name)

		if p := item(base + 1); len(p) > 0 {
			path, err := rifx.BigEndian(p).ReadString8()
			if err != nil {
				return nil, fmt.Errorf("%w: MCsL entry %d path: %v", ErrTruncated, e+1, err)
			}
			lib.Path = ctx.DecodeString(path)
		}

		var ids struct{ Low, High, Assoc, Self int16 }
		if err := rifx.BigEndian(item(base + 3)).Decode(&ids); err != nil {
			return nil, fmt.Errorf("%w: MCsL entry %d ids: %v", ErrTruncated, e+1, err)
		}
		lib.Low, lib.High = ids.Low, ids.High
		lib.AssocID, lib.SelfIndex = int(ids.Assoc), int(ids.Self)
		for i := 4; i < per; i++ {
			lib.Extra = append(lib.Extra, item(base+i))
		}

		log.Debug("cast library", "nr", lib.Nr, "name", lib.Name, "path", lib.Path,
			"assoc", lib.AssocID, "low", lib.Low, "high", lib.High, "self", lib.SelfIndex)
		libs = append(libs, lib)
	}
	return NewLibraryTable(libs...), nil
}

// ParseCastList decodes a "CAS*" payload: big-endian section numbers with
// zero marking an empty slot.
func ParseCastList(blob []byte, log logger.Logger) []int {
	buf := rifx.BigEndian(blob)
	out := make([]int, 0, len(blob)/4)
	for buf.Remaining() >= 4 {
		v, _ := buf.ReadI32()
		out = append(out, int(v))
	}
	if !buf.AtEnd() {
		logger.OrNop(log).Warn("cast list has trailing bytes", "got", buf.Remaining())
	}
	return out
}

// clampRange bounds [lo, hi) to [0, n] with lo <= hi.
func clampRange(lo, hi, n int) (int, int) {
	lo = min(max(lo, 0), n)
	hi = min(max(hi, lo), n)
	return lo, hi
}

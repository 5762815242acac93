package rifx

import (
	"fmt"
	"io"
)

// sectionHeaderSize is the tag and size that precede every payload.
const sectionHeaderSize = 8

// Section describes one named region of the container. Its payload is read
// on demand and never cached.
type Section struct {
	Nr     int
	Tag    Tag
	Size   int64
	Offset int64
	// W1, W2 and Link are preserved from the map record.
	W1, W2 int16
	Link   int32

	src          io.ReaderAt
	littleEndian bool
	// limit is the container length, or -1 when src cannot report it.
	limit int64
}

// sizer is implemented by readers that know their length, such as *File
// and *bytes.Reader.
type sizer interface {
	Size() int64
}

// NewSection binds a map record to the reader it was found in.
func NewSection(nr int, tag Tag, size, offset int64, src io.ReaderAt, ctx Context) *Section {
	return &Section{
		Nr:           nr,
		Tag:          tag,
		Size:         size,
		Offset:       offset,
		src:          src,
		littleEndian: ctx.LittleEndian,
		limit:        readerSize(src),
	}
}

func readerSize(r io.ReaderAt) int64 {
	if sz, ok := r.(sizer); ok {
		return sz.Size()
	}
	return -1
}

// Payload re-reads the section sub-header, verifies that the tag on disk is
// the one recorded in the map, and returns Size bytes. A mismatch means the
// map no longer describes the file and is reported as ErrSectionMismatch.
func (s *Section) Payload() ([]byte, error) {
	if s.src == nil {
		return nil, fmt.Errorf("%w: section %d has no backing reader", ErrInvalidSection, s.Nr)
	}
	if s.Size < 0 || s.Offset < 0 {
		return nil, fmt.Errorf("%w: section %d has size %d at offset %d", ErrInvalidSection, s.Nr, s.Size, s.Offset)
	}
	if end := s.Offset + sectionHeaderSize + s.Size; s.limit >= 0 && end > s.limit {
		return nil, fmt.Errorf("%w: section %d ends at 0x%x past container end 0x%x: %w",
			ErrInvalidSection, s.Nr, end, s.limit, io.ErrUnexpectedEOF)
	}
	var hdr [sectionHeaderSize]byte
	if err := readFullAt(s.src, hdr[:], s.Offset); err != nil {
		return nil, fmt.Errorf("read section %d header: %w", s.Nr, err)
	}
	if got := TagFromBytes(hdr[:4], s.littleEndian); got != s.Tag {
		return nil, fmt.Errorf("%w: section %d at 0x%x: map says %q, file says %q", ErrSectionMismatch, s.Nr, s.Offset, s.Tag, got)
	}
	if s.limit < 0 {
		// Unknown length: grow with what is actually there instead of
		// trusting the recorded size.
		buf, err := io.ReadAll(io.NewSectionReader(s.src, s.Offset+sectionHeaderSize, s.Size))
		if err == nil && int64(len(buf)) != s.Size {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, fmt.Errorf("read section %d payload: %w", s.Nr, err)
		}
		return buf, nil
	}
	buf := make([]byte, s.Size)
	if err := readFullAt(s.src, buf, s.Offset+sectionHeaderSize); err != nil {
		return nil, fmt.Errorf("read section %d payload: %w", s.Nr, err)
	}
	return buf, nil
}

// readFullAt fills p from off. A short read is io.ErrUnexpectedEOF.
func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// SectionMap is the ordered catalogue of sections. Position 0 is reserved
// and never addressable; positions held by other structures index into this
// exact sequence.
type SectionMap struct {
	sections []*Section
}

// NewSectionMap takes ownership of sections. sections[0] is the reserved
// entry and may be nil.
func NewSectionMap(sections []*Section) *SectionMap {
	return &SectionMap{sections: sections}
}

// Len is the number of positions including the reserved one.
func (m *SectionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sections)
}

// Valid reports whether nr may be dereferenced.
func (m *SectionMap) Valid(nr int) bool {
	return nr > 0 && nr < m.Len() && m.sections[nr] != nil
}

// At returns the section at a 1-based position.
func (m *SectionMap) At(nr int) (*Section, error) {
	if !m.Valid(nr) {
		return nil, fmt.Errorf("%w: %d (map has %d entries)", ErrInvalidSection, nr, m.Len())
	}
	return m.sections[nr], nil
}

// ByTag returns the first section with the given tag, or nil.
func (m *SectionMap) ByTag(tag Tag) *Section {
	for i := 1; i < m.Len(); i++ {
		if s := m.sections[i]; s != nil && s.Tag == tag {
			return s
		}
	}
	return nil
}

// All returns every addressable section in map order.
func (m *SectionMap) All() []*Section {
	out := make([]*Section, 0, m.Len())
	for i := 1; i < m.Len(); i++ {
		if s := m.sections[i]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Payload is a shortcut for At(nr).Payload().
func (m *SectionMap) Payload(nr int) ([]byte, error) {
	s, err := m.At(nr)
	if err != nil {
		return nil, err
	}
	return s.Payload()
}

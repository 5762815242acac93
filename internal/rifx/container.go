package rifx

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Arusekk/Schockabsorber/internal/logger"
)

// HeaderSize is the length of the container header.
const HeaderSize = 12

// Header is the decoded container header with magic and format tag already
// canonicalized.
type Header struct {
	Magic        Tag
	Size         int32
	FileTag      Tag
	LittleEndian bool
}

// Context returns the decoding context implied by the header.
func (h Header) Context() Context {
	return Context{FileTag: h.FileTag, LittleEndian: h.LittleEndian}
}

// ReadHeader reads and validates the 12-byte header. An "XFIR" magic marks a
// little-endian file whose magic and format tag are stored reversed.
func ReadHeader(r io.ReaderAt) (Header, error) {
	var raw [HeaderSize]byte
	if err := readFullAt(r, raw[:], 0); err != nil {
		return Header{}, fmt.Errorf("%w: read header: %v", ErrBadFileType, err)
	}
	h := Header{
		Magic:   Tag(raw[0:4]),
		FileTag: Tag(raw[8:12]),
	}
	if h.Magic == TagXFIR {
		h.LittleEndian = true
		h.Magic = TagFromBytes(raw[0:4], true)
		h.FileTag = TagFromBytes(raw[8:12], true)
		h.Size = int32(binary.LittleEndian.Uint32(raw[4:8]))
	} else {
		h.Size = int32(binary.BigEndian.Uint32(raw[4:8]))
	}
	if h.Magic != TagRIFX {
		return Header{}, fmt.Errorf("%w: magic %q", ErrBadFileType, string(raw[0:4]))
	}
	return h, nil
}

// Envelope locates the section map inside a container. The uncompressed
// ("MV93") variant is built in; the compressed ("FGDM") variant is supplied
// by callers that can decode it.
type Envelope interface {
	BuildSectionMap(r io.ReaderAt, size int64, ctx Context, log logger.Logger) (*SectionMap, error)
}

// EnvelopeFunc adapts a function to Envelope.
type EnvelopeFunc func(r io.ReaderAt, size int64, ctx Context, log logger.Logger) (*SectionMap, error)

func (f EnvelopeFunc) BuildSectionMap(r io.ReaderAt, size int64, ctx Context, log logger.Logger) (*SectionMap, error) {
	return f(r, size, ctx, log)
}

// Envelopes selects an Envelope by format tag.
type Envelopes map[Tag]Envelope

// DefaultEnvelopes knows the uncompressed layout only.
func DefaultEnvelopes() Envelopes {
	return Envelopes{TagMV93: Uncompressed{}}
}

// SectionMap dispatches on the header's format tag. A known tag without a
// registered envelope is ErrUnsupportedEnvelope; anything else is
// ErrBadFileType.
func (e Envelopes) SectionMap(r io.ReaderAt, size int64, h Header, log logger.Logger) (*SectionMap, error) {
	env, ok := e[h.FileTag]
	if !ok {
		if h.FileTag == TagMV93 || h.FileTag == TagFGDM {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEnvelope, h.FileTag)
		}
		return nil, fmt.Errorf("%w: format %q", ErrBadFileType, h.FileTag)
	}
	return env.BuildSectionMap(r, size, h.Context(), logger.OrNop(log))
}

// mmap table layout.
const (
	mmapHeaderMin = 24
	mmapEntryMin  = 20
)

type mmapHeader struct {
	HeaderLen uint16
	EntryLen  uint16
	Max       int32
	Used      int32
	Junk      int32
	V3        int32
	Free      int32
}

type mmapEntry struct {
	Tag    [4]byte
	Size   uint32
	Offset uint32
	W1     int16
	W2     int16
	Link   int32
}

// Uncompressed reads the section map of an "MV93" container: the top-level
// chunks after the header are walked until the "mmap" chunk, whose records
// give every section's tag, size and offset. Record i is section number i.
type Uncompressed struct{}

func (Uncompressed) BuildSectionMap(r io.ReaderAt, size int64, ctx Context, log logger.Logger) (*SectionMap, error) {
	log = logger.OrNop(log)
	order := ctx.ByteOrder()

	var blob []byte
	for off := int64(HeaderSize); off+sectionHeaderSize <= size; {
		var hdr [sectionHeaderSize]byte
		if err := readFullAt(r, hdr[:], off); err != nil {
			return nil, fmt.Errorf("read chunk header at 0x%x: %w", off, err)
		}
		tag := TagFromBytes(hdr[:4], ctx.LittleEndian)
		n := int64(int32(order.Uint32(hdr[4:])))
		if n < 0 {
			return nil, fmt.Errorf("%w: chunk %q at 0x%x has size %d", ErrBadFileType, tag, off, n)
		}
		log.Debug("top-level chunk", "tag", string(tag), "offset", off, "size", n)
		if tag == TagMMap {
			if off+sectionHeaderSize+n > size {
				return nil, fmt.Errorf("%w: mmap at 0x%x claims %d bytes, container has %d: %w",
					ErrInvalidSection, off, n, size, io.ErrUnexpectedEOF)
			}
			blob = make([]byte, n)
			if err := readFullAt(r, blob, off+sectionHeaderSize); err != nil {
				return nil, fmt.Errorf("read mmap: %w", err)
			}
			break
		}
		off += sectionHeaderSize + n
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, TagMMap)
	}
	return parseMMap(blob, r, size, ctx, log)
}

func parseMMap(blob []byte, r io.ReaderAt, size int64, ctx Context, log logger.Logger) (*SectionMap, error) {
	buf := ctx.NewBuffer(blob)
	var hdr mmapHeader
	if err := buf.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("mmap header: %w", err)
	}
	log.Debug("mmap header", "header_len", hdr.HeaderLen, "entry_len", hdr.EntryLen, "max", hdr.Max, "used", hdr.Used)

	if int(hdr.HeaderLen) > mmapHeaderMin {
		if err := buf.Seek(int(hdr.HeaderLen)); err != nil {
			return nil, fmt.Errorf("mmap header length: %w", err)
		}
	}
	stride := max(int(hdr.EntryLen), mmapEntryMin)

	var sections []*Section
	for nr := 0; buf.Remaining() >= stride; nr++ {
		rec, _ := buf.ReadBytes(stride)
		var e mmapEntry
		if _, err := binary.Decode(rec, ctx.ByteOrder(), &e); err != nil {
			return nil, fmt.Errorf("mmap entry %d: %w", nr, err)
		}
		s := NewSection(nr, TagFromBytes(e.Tag[:], ctx.LittleEndian), int64(e.Size), int64(e.Offset), r, ctx)
		s.W1, s.W2, s.Link = e.W1, e.W2, e.Link
		s.limit = size
		sections = append(sections, s)
	}
	if hdr.Max > 0 && int(hdr.Max) != len(sections) {
		log.Warn("mmap entry count differs from header", "expected", hdr.Max, "got", len(sections))
	}
	return NewSectionMap(sections), nil
}

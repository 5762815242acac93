package cast

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/media"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// Type is a cast member type code.
type Type int32

const (
	TypeImage       Type = 1
	TypeFilmloop    Type = 2
	TypeField       Type = 3
	TypePalette     Type = 4
	TypeAudio       Type = 6
	TypeButton      Type = 7
	TypeVectorShape Type = 8
	TypeScript      Type = 11
	TypeExtended    Type = 15
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeFilmloop:
		return "filmloop"
	case TypeField:
		return "field"
	case TypePalette:
		return "palette"
	case TypeAudio:
		return "audio"
	case TypeButton:
		return "button"
	case TypeVectorShape:
		return "vshape"
	case TypeScript:
		return "script"
	case TypeExtended:
		return "extended"
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// Well-known attribute indices of the common member header.
const (
	AttrName     = 1
	AttrCreated  = 17
	AttrModified = 18
)

// Member is one decoded "CASt" section.
type Member struct {
	SectionNr int
	Type      Type
	CastID    int32
	Name      string
	Created   time.Time
	Modified  time.Time
	// Misc holds the unnamed header words v2 through v6.
	Misc [5]int32
	// Attrs are the raw attribute ranges. Attributes decoded into named
	// fields are nil; other empty attributes are non-nil and empty.
	Attrs [][]byte
	Data  CastData
	Media map[rifx.Tag]*media.Media
}

type memberHeader struct {
	Type   int32
	Common int32
	V2     int32
}

type commonHeader struct {
	V3, V4, V5, V6 int32
	CastID         int32
	Count          uint16
}

// ParseMember decodes a "CASt" payload. Member payloads are big-endian in
// both container byte orders; ctx only selects the text encoding.
func ParseMember(sectionNr int, blob []byte, ctx rifx.Context, log logger.Logger) (*Member, error) {
	log = logger.OrNop(log).With("section", sectionNr)
	buf := rifx.BigEndian(blob)
	var hdr memberHeader
	if err := buf.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: member header: %v", ErrTruncated, err)
	}
	commonLen := int(hdr.Common)
	if commonLen < 0 || commonLen > buf.Remaining() {
		log.Warn("member common length out of range", "expected", hdr.Common, "got", buf.Remaining())
		commonLen = min(max(commonLen, 0), buf.Remaining())
	}
	common, _ := buf.ReadBytes(commonLen)

	cbuf := rifx.BigEndian(common)
	var ch commonHeader
	if err := cbuf.Decode(&ch); err != nil {
		return nil, fmt.Errorf("%w: member common header: %v", ErrTruncated, err)
	}
	if need := (int(ch.Count) + 1) * 4; need > cbuf.Remaining() {
		return nil, fmt.Errorf("%w: member attribute table needs %d bytes, have %d", ErrTruncated, need, cbuf.Remaining())
	}
	offsets := make([]int32, int(ch.Count)+1)
	if err := cbuf.Decode(offsets); err != nil {
		return nil, fmt.Errorf("%w: member attribute table: %v", ErrTruncated, err)
	}
	table := cbuf.Rest()

	m := &Member{
		SectionNr: sectionNr,
		Type:      Type(hdr.Type),
		CastID:    ch.CastID,
		Misc:      [5]int32{hdr.V2, ch.V3, ch.V4, ch.V5, ch.V6},
		Attrs:     make([][]byte, ch.Count),
		Media:     map[rifx.Tag]*media.Media{},
	}
	for i := range m.Attrs {
		lo, hi := clampRange(int(offsets[i]), int(offsets[i+1]), len(table))
		if lo != int(offsets[i]) || hi != int(offsets[i+1]) {
			log.Warn("member attribute range clamped", "attr", i, "from", offsets[i], "to", offsets[i+1], "got", len(table))
		}
		m.Attrs[i] = table[lo:hi:hi]
	}
	m.decodeNamedAttrs(ctx, log)

	log.Debug("cast member", "type", m.Type.String(), "cast_id", m.CastID, "name", m.Name,
		"created", m.Created, "modified", m.Modified, "misc", m.Misc[:])

	m.Data = parseCastData(m.Type, m.CastID, rifx.BigEndian(buf.Rest()), log)
	return m, nil
}

func (m *Member) decodeNamedAttrs(ctx rifx.Context, log logger.Logger) {
	if len(m.Attrs) > AttrName && len(m.Attrs[AttrName]) > 0 {
		name, err := rifx.BigEndian(m.Attrs[AttrName]).ReadString8()
		if err != nil {
			log.Warn("member name attribute truncated", "got", len(m.Attrs[AttrName]))
		} else {
			m.Name = ctx.DecodeString(name)
			m.Attrs[AttrName] = nil
		}
	}
	if t, ok := m.timestampAttr(AttrCreated); ok {
		m.Created = t
	}
	if t, ok := m.timestampAttr(AttrModified); ok {
		m.Modified = t
	}
}

func (m *Member) timestampAttr(i int) (time.Time, bool) {
	if len(m.Attrs) <= i || len(m.Attrs[i]) != 4 {
		return time.Time{}, false
	}
	secs := binary.BigEndian.Uint32(m.Attrs[i])
	m.Attrs[i] = nil
	return time.Unix(int64(secs), 0).UTC(), true
}

// AttachMedia stores md under its tag, replacing any earlier one.
func (m *Member) AttachMedia(md *media.Media) {
	if m.Media == nil {
		m.Media = map[rifx.Tag]*media.Media{}
	}
	m.Media[md.Tag] = md
}

// MediaTags returns the attached media tags in order.
func (m *Member) MediaTags() []rifx.Tag {
	tags := make([]rifx.Tag, 0, len(m.Media))
	for tag := range m.Media {
		tags = append(tags, tag)
	}
	return sortTags(tags)
}

// Image returns the image header when the member is an image.
func (m *Member) Image() (*Image, bool) {
	img, ok := m.Data.(*Image)
	return img, ok
}

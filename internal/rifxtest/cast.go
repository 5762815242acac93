package rifxtest

import (
	"bytes"

	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// Attachment is a media section owned by a member.
type Attachment struct {
	Tag  rifx.Tag
	Data []byte
}

// Cast lays out the cast list of one library on a Builder.
type Cast struct {
	b     *Builder
	assoc uint16
	slots []int32
	keys  []KeyEntry
}

// NewCast starts a cast list for the library with association id assoc.
func NewCast(b *Builder, assoc uint16) *Cast {
	return &Cast{b: b, assoc: assoc}
}

// AddMember adds a member section and its media and returns the member's
// 1-based ordinal.
func (c *Cast) AddMember(m Member, media ...Attachment) int {
	nr := c.b.Add(rifx.TagCastMember, m.Bytes())
	for _, a := range media {
		mnr := c.b.Add(a.Tag, a.Data)
		c.keys = append(c.keys, CastMedia(nr, mnr, a.Tag))
	}
	c.slots = append(c.slots, int32(nr))
	return len(c.slots)
}

// AddEmpty adds an empty slot.
func (c *Cast) AddEmpty() {
	c.slots = append(c.slots, 0)
}

// Finish writes the cast list section and returns the association entries
// of the library.
func (c *Cast) Finish() []KeyEntry {
	list := c.b.Add(rifx.TagCastList, CastList(c.slots...))
	return append([]KeyEntry{LibrarySection(c.assoc, list, rifx.TagCastList)}, c.keys...)
}

// SampleMovie is a one-library movie holding a single 10x5 8-bit image
// member named "sample" whose pixels are all 7.
func SampleMovie(littleEndian bool) []byte {
	b := New(littleEndian)
	c := NewCast(b, 0)
	c.AddMember(
		Member{Type: 1, CastID: 1, Name: "sample", Specific: Image(10, 5, 10, 8, 0)},
		Attachment{Tag: rifx.TagBitmap, Data: Bitmap(bytes.Repeat([]byte{7}, 50))},
	)
	b.Add(rifx.TagKeyTable, KeyTable(littleEndian, c.Finish()...))
	b.Add(rifx.TagDirConfig, DirConfig(-101, nil))
	return b.Build()
}

package rifx

import (
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Tag is a four-character section or media code in canonical (big-endian)
// character order, e.g. "KEY*" or "BITD".
type Tag string

const (
	TagRIFX       Tag = "RIFX"
	TagXFIR       Tag = "XFIR"
	TagMV93       Tag = "MV93"
	TagFGDM       Tag = "FGDM"
	TagIMap       Tag = "imap"
	TagMMap       Tag = "mmap"
	TagKeyTable   Tag = "KEY*"
	TagCastList   Tag = "CAS*"
	TagCastMember Tag = "CASt"
	TagLibraries  Tag = "MCsL"
	TagDirConfig  Tag = "DRCF"
	TagVWConfig   Tag = "VWCF"
	TagCastOrder  Tag = "Sord"
	TagBitmap     Tag = "BITD"
	TagThumbnail  Tag = "Thum"
	TagXMED       Tag = "XMED"
	TagEmbedded   Tag = "ediM"
	TagCLUT       Tag = "CLUT"
)

// TagFromBytes canonicalizes four raw bytes. Little-endian files store
// tags reversed.
func TagFromBytes(b []byte, littleEndian bool) Tag {
	if len(b) != 4 {
		return Tag(b)
	}
	if littleEndian {
		return Tag([]byte{b[3], b[2], b[1], b[0]})
	}
	return Tag(b)
}

func (t Tag) String() string { return string(t) }

// Bytes returns the on-disk form of t for the given byte order.
func (t Tag) Bytes(littleEndian bool) []byte {
	b := []byte(t)
	if littleEndian && len(b) == 4 {
		b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	}
	return b
}

// Context carries per-file decoding state shared by every section parser.
type Context struct {
	FileTag      Tag
	LittleEndian bool
}

// ByteOrder is the order of the container framing fields.
func (c Context) ByteOrder() binary.ByteOrder {
	if c.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// NewBuffer wraps b in a SeqBuffer using the file byte order.
func (c Context) NewBuffer(b []byte) *SeqBuffer {
	return NewSeqBuffer(b, c.LittleEndian)
}

// DecodeString converts a stored name to UTF-8. Big-endian files come from
// the Mac authoring tool and use MacRoman; little-endian files use
// Windows-1252.
func (c Context) DecodeString(b []byte) string {
	ascii := true
	for _, ch := range b {
		if ch >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	cm := charmap.Macintosh
	if c.LittleEndian {
		cm = charmap.Windows1252
	}
	out, err := cm.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

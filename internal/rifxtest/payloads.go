package rifxtest

import (
	"encoding/binary"
	"image/color"

	"github.com/Arusekk/Schockabsorber/internal/media"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

var be = binary.BigEndian

// KeyEntry is one association record.
type KeyEntry struct {
	Owned int32
	Assoc uint16
	Owner uint16
	Tag   rifx.Tag
}

// LibrarySection associates a section with a cast library.
func LibrarySection(assoc uint16, owned int, tag rifx.Tag) KeyEntry {
	return KeyEntry{Owned: int32(owned), Assoc: assoc, Owner: 1024, Tag: tag}
}

// CastMedia associates a media section with the member at section owner.
func CastMedia(owner, owned int, tag rifx.Tag) KeyEntry {
	return KeyEntry{Owned: int32(owned), Owner: uint16(owner), Tag: tag}
}

// KeyTable encodes a "KEY*" payload in the container byte order.
func KeyTable(littleEndian bool, entries ...KeyEntry) []byte {
	var o binary.AppendByteOrder = binary.BigEndian
	if littleEndian {
		o = binary.LittleEndian
	}
	out := o.AppendUint16(nil, 12)
	out = o.AppendUint16(out, 12)
	out = o.AppendUint32(out, uint32(len(entries)))
	out = o.AppendUint32(out, uint32(len(entries)))
	for _, e := range entries {
		out = o.AppendUint32(out, uint32(e.Owned))
		out = o.AppendUint32(out, uint32(e.Assoc)<<16|uint32(e.Owner))
		out = append(out, e.Tag.Bytes(littleEndian)...)
	}
	return out
}

// CastList encodes a "CAS*" payload.
func CastList(nrs ...int32) []byte {
	var out []byte
	for _, nr := range nrs {
		out = be.AppendUint32(out, uint32(nr))
	}
	return out
}

// Member describes a "CASt" payload.
type Member struct {
	Type     int32
	CastID   int32
	Name     string
	Created  uint32
	Modified uint32
	// Attrs replaces the generated attribute list when set.
	Attrs    [][]byte
	Specific []byte
}

// Bytes encodes the member.
func (m Member) Bytes() []byte {
	attrs := m.Attrs
	if attrs == nil {
		attrs = make([][]byte, 19)
		if m.Name != "" {
			attrs[1] = append([]byte{byte(len(m.Name))}, m.Name...)
		}
		if m.Created != 0 {
			attrs[17] = be.AppendUint32(nil, m.Created)
		}
		if m.Modified != 0 {
			attrs[18] = be.AppendUint32(nil, m.Modified)
		}
	}

	common := make([]byte, 16)
	common = be.AppendUint32(common, uint32(m.CastID))
	common = be.AppendUint16(common, uint16(len(attrs)))
	off := 0
	common = be.AppendUint32(common, 0)
	for _, a := range attrs {
		off += len(a)
		common = be.AppendUint32(common, uint32(off))
	}
	for _, a := range attrs {
		common = append(common, a...)
	}

	out := be.AppendUint32(nil, uint32(m.Type))
	out = be.AppendUint32(out, uint32(len(common)))
	out = be.AppendUint32(out, 0)
	out = append(out, common...)
	return append(out, m.Specific...)
}

// Image encodes the 28-byte image member tail.
func Image(width, height, stride uint16, bpp int8, palette int16) []byte {
	out := be.AppendUint16(nil, 0x8000|stride)
	out = be.AppendUint32(out, 0)
	out = be.AppendUint16(out, height)
	out = be.AppendUint16(out, width)
	out = be.AppendUint32(out, 0)
	out = be.AppendUint16(out, height)
	out = be.AppendUint16(out, width)
	out = be.AppendUint16(out, width/2)
	out = be.AppendUint16(out, height/2)
	out = append(out, 0, byte(bpp))
	out = be.AppendUint16(out, 0)
	return be.AppendUint16(out, uint16(palette))
}

// Library is one cast library directory entry.
type Library struct {
	Name, Path             string
	Low, High, Assoc, Self int16
}

// LibraryDir encodes an "MCsL" payload.
func LibraryDir(libs ...Library) []byte {
	const perEntry = 4
	var items [][]byte
	for _, l := range libs {
		items = append(items, append([]byte{byte(len(l.Name))}, l.Name...))
		if l.Path != "" {
			items = append(items, append([]byte{byte(len(l.Path))}, l.Path...))
		} else {
			items = append(items, nil)
		}
		items = append(items, be.AppendUint16(nil, 0))
		w := be.AppendUint16(nil, uint16(l.Low))
		w = be.AppendUint16(w, uint16(l.High))
		w = be.AppendUint16(w, uint16(l.Assoc))
		items = append(items, be.AppendUint16(w, uint16(l.Self)))
	}

	out := be.AppendUint32(nil, 0)
	out = be.AppendUint32(out, uint32(len(libs)))
	out = be.AppendUint16(out, perEntry)
	out = be.AppendUint32(out, uint32(len(items)+1))
	out = be.AppendUint32(out, 0)
	off := 0
	out = be.AppendUint32(out, 0)
	for _, it := range items {
		off += len(it)
		out = be.AppendUint32(out, uint32(off))
	}
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// CastOrder encodes a "Sord" payload of (library, member) pairs.
func CastOrder(pairs ...[2]uint16) []byte {
	out := be.AppendUint32(nil, 0)
	out = be.AppendUint32(out, 0)
	out = be.AppendUint32(out, uint32(len(pairs)))
	out = be.AppendUint32(out, uint32(len(pairs)))
	out = be.AppendUint32(out, 0)
	for _, p := range pairs {
		out = be.AppendUint16(out, p[0])
		out = be.AppendUint16(out, p[1])
	}
	return out
}

// DirConfig encodes a "DRCF" payload with the given palette and tail.
func DirConfig(palette int32, tail []byte) []byte {
	out := make([]byte, 64+12)
	out = be.AppendUint32(out, uint32(palette))
	return append(out, tail...)
}

// Extended encodes an extension payload.
func Extended(mediaType string, info []byte) []byte {
	out := be.AppendUint32(nil, uint32(len(mediaType)))
	out = append(out, mediaType...)
	out = be.AppendUint32(out, uint32(len(info)))
	return append(out, info...)
}

// VectorShapeInfo encodes a "FLSH" vector shape with the given points.
func VectorShapeInfo(points [][6]int32) []byte {
	out := []byte("FLSH")
	out = be.AppendUint32(out, 0)
	out = append(out, make([]byte, 24*4)...)
	out = be.AppendUint32(out, uint32(len(points)))
	out = append(out, make([]byte, 35*4)...)
	out = be.AppendUint32(out, 4)
	out = append(out, "fill"...)
	for i, p := range points {
		if i > 0 {
			out = be.AppendUint32(out, 0x80000000)
		}
		for _, v := range p {
			out = be.AppendUint32(out, uint32(v))
		}
	}
	out = be.AppendUint32(out, 4)
	out = append(out, "line"...)
	be.PutUint32(out[4:], uint32(len(out)))
	return out
}

// Bitmap encodes pixel bytes as a "BITD" payload.
func Bitmap(pixels []byte) []byte {
	return media.EncodeRLE(pixels)
}

// Thumbnail encodes a "Thum" payload.
func Thumbnail(width, height uint32, pixels []byte) []byte {
	out := be.AppendUint32(nil, height)
	out = be.AppendUint32(out, width)
	return append(out, media.EncodeRLE(pixels)...)
}

// CLUT encodes palette entries as 16-bit channels.
func CLUT(colors ...color.RGBA) []byte {
	var out []byte
	for _, c := range colors {
		for _, v := range []uint8{c.R, c.G, c.B} {
			out = append(out, v, v)
		}
	}
	return out
}

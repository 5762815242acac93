package cast

import (
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/media"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// CastData is the type-specific part of a member. The set of variants is
// closed; Unknown carries any unrecognized type code.
type CastData interface {
	castData()
}

// ImageHeaderSize is the encoded size of an image member tail.
const ImageHeaderSize = 28

// imageFallback pads truncated image headers. Its last six bytes mark the
// depth as unknown.
var imageFallback = [ImageHeaderSize]byte{22: 0, 23: 0xff}

// Image describes a bitmap member. Pixels live in the attached "BITD" media.
type Image struct {
	Width, Height int
	// Stride is the row length in bytes.
	Stride           int
	AnchorX, AnchorY int16
	BitsPerPixel     int
	// Palette is 0 for none, a positive member ordinal in the same library,
	// or a negative built-in id.
	Palette int
	// Flags is the raw stride word.
	Flags uint16
	Misc  ImageMisc
	// Padded is set when the header was shorter than ImageHeaderSize.
	Padded bool
}

// ImageMisc keeps the unnamed image header words.
type ImageMisc struct {
	V11      int32
	V12      int32
	V13, V14 int16
	V15      int8
	V17      int16
}

type imageHeader struct {
	V10           uint16
	V11           int32
	Height, Width uint16
	V12           int32
	V13, V14      int16
	AnchorX       int16
	AnchorY       int16
	V15           int8
	BitsPerPixel  int8
	V17           int16
	Palette       int16
}

// Filmloop keeps the unnamed filmloop header words.
type Filmloop struct {
	Misc  [4]uint16
	Misc5 uint32
	Misc6 uint16
	Raw   []byte
}

// Field is a text field member, kept raw.
type Field struct{ Raw []byte }

// Palette is a palette member, kept raw. Colours live in "CLUT" media.
type Palette struct{ Raw []byte }

// Audio is a sound member, kept raw.
type Audio struct{ Raw []byte }

// Button is a button member, kept raw.
type Button struct{ Raw []byte }

// Vshape is a legacy vector shape member, kept raw.
type Vshape struct{ Raw []byte }

// Script is a script member.
type Script struct {
	ID   int32
	Misc uint16
}

// Extended is an extension member. Raw is set when the record could not be
// decoded.
type Extended struct {
	*media.Extended
	Raw []byte
}

// Unknown preserves a member of an unrecognized type.
type Unknown struct {
	Type   Type
	CastID int32
	Raw    []byte
}

func (*Image) castData()    {}
func (*Filmloop) castData() {}
func (*Field) castData()    {}
func (*Palette) castData()  {}
func (*Audio) castData()    {}
func (*Button) castData()   {}
func (*Vshape) castData()   {}
func (*Script) castData()   {}
func (*Extended) castData() {}
func (*Unknown) castData()  {}

func parseCastData(t Type, castID int32, buf *rifx.SeqBuffer, log logger.Logger) CastData {
	switch t {
	case TypeImage:
		return parseImage(buf.Rest(), log)
	case TypeFilmloop:
		return parseFilmloop(buf, log)
	case TypeField:
		return &Field{Raw: buf.Rest()}
	case TypePalette:
		return &Palette{Raw: buf.Rest()}
	case TypeAudio:
		return &Audio{Raw: buf.Rest()}
	case TypeButton:
		return &Button{Raw: buf.Rest()}
	case TypeVectorShape:
		return &Vshape{Raw: buf.Rest()}
	case TypeScript:
		s := &Script{ID: castID}
		v, err := buf.ReadU16()
		if err != nil {
			log.Warn("script member truncated", "got", buf.Remaining())
		}
		s.Misc = v
		return s
	case TypeExtended:
		raw := buf.Peek()
		x, err := media.ParseExtended(buf, log)
		if err != nil {
			log.Warn("extended member undecodable", "error", err)
			return &Extended{Raw: raw}
		}
		return &Extended{Extended: x}
	}
	log.Warn("unrecognized cast type", "type", int32(t), "cast_id", castID)
	return &Unknown{Type: t, CastID: castID, Raw: buf.Rest()}
}

// parseImage decodes an image tail, padding a short one from imageFallback.
func parseImage(tail []byte, log logger.Logger) *Image {
	padded := false
	if len(tail) < ImageHeaderSize {
		log.Warn("image header truncated, padding", "expected", ImageHeaderSize, "got", len(tail))
		b := make([]byte, 0, ImageHeaderSize)
		b = append(b, tail...)
		tail = append(b, imageFallback[len(tail):]...)
		padded = true
	}
	var h imageHeader
	_ = rifx.BigEndian(tail).Decode(&h)
	img := &Image{
		Width:        int(h.Width),
		Height:       int(h.Height),
		Stride:       int(h.V10 & 0x7fff),
		AnchorX:      h.AnchorX,
		AnchorY:      h.AnchorY,
		BitsPerPixel: int(h.BitsPerPixel),
		Palette:      int(h.Palette),
		Flags:        h.V10,
		Misc:         ImageMisc{V11: h.V11, V12: h.V12, V13: h.V13, V14: h.V14, V15: h.V15, V17: h.V17},
		Padded:       padded,
	}
	log.Debug("image member", "width", img.Width, "height", img.Height, "stride", img.Stride,
		"bpp", img.BitsPerPixel, "palette", img.Palette, "anchor_x", img.AnchorX, "anchor_y", img.AnchorY)
	return img
}

func parseFilmloop(buf *rifx.SeqBuffer, log logger.Logger) *Filmloop {
	f := &Filmloop{Raw: buf.Rest()}
	var h struct {
		Misc  [4]uint16
		Misc5 uint32
		Misc6 uint16
	}
	if err := buf.Decode(&h); err != nil {
		log.Warn("filmloop header truncated", "got", buf.Remaining())
		return f
	}
	f.Misc, f.Misc5, f.Misc6 = h.Misc, h.Misc5, h.Misc6
	return f
}

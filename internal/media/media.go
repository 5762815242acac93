// Package media decodes the tagged payloads attached to cast members.
package media

import (
	"bytes"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// Media is one payload section owned by a cast member.
type Media struct {
	SectionNr int
	Tag       rifx.Tag
	Data      []byte
	Payload   Payload
}

// Payload is the tag-dispatched decoded form of a media section.
type Payload interface {
	payload()
}

// Bitmap is RLE-decoded pixel data. Bit depth and stride come from the
// owning image member.
type Bitmap struct {
	Pixels    []byte
	Truncated bool
}

// Thumbnail is a preview image with its own dimensions.
type Thumbnail struct {
	Width, Height uint32
	Pixels        []byte
	Truncated     bool
}

// Embedded is a generic embedded file, sniffed by magic bytes.
type Embedded struct {
	Format EmbeddedFormat
	// Header and Music are set for MP3.
	Header []byte
	Music  []byte
	// Signature holds the leading bytes of unrecognized data.
	Signature []byte
}

// ExtendedMedia is an extension payload. Flash is the raw movie when the
// blob carries one instead of a type/info pair.
type ExtendedMedia struct {
	Extended *Extended
	Flash    []byte
}

// Opaque is any tag without a decoder; Media.Data holds the bytes.
type Opaque struct{}

func (*Bitmap) payload()        {}
func (*Thumbnail) payload()     {}
func (*Embedded) payload()      {}
func (*ExtendedMedia) payload() {}
func (*Opaque) payload()        {}

// EmbeddedFormat names what an embedded blob was sniffed as.
type EmbeddedFormat string

const (
	FormatJPEG    EmbeddedFormat = "JPEG"
	FormatMP3     EmbeddedFormat = "MP3"
	FormatUnknown EmbeddedFormat = "unknown"
)

var (
	jpegMagic = []byte{0xff, 0xd8}
	// MP3 blobs start with the 0x140-byte header length.
	mp3Magic = []byte{0x00, 0x00, 0x01, 0x40}
)

const signatureLen = 16

// maxThumbnailPixels bounds the output of a thumbnail with a corrupt header.
const maxThumbnailPixels = 1 << 26

// Parse decodes blob according to tag. It never fails: damaged payloads are
// logged and decoded as far as possible.
func Parse(sectionNr int, tag rifx.Tag, blob []byte, log logger.Logger) *Media {
	log = logger.OrNop(log).With("section", sectionNr, "tag", string(tag))
	m := &Media{SectionNr: sectionNr, Tag: tag, Data: blob}
	switch tag {
	case rifx.TagBitmap:
		m.Payload = parseBitmap(blob, log)
	case rifx.TagThumbnail:
		m.Payload = parseThumbnail(blob, log)
	case rifx.TagEmbedded:
		m.Payload = SniffEmbedded(blob, log)
	case rifx.TagXMED:
		m.Payload = parseExtendedMedia(blob, log)
	default:
		m.Payload = &Opaque{}
	}
	return m
}

func parseBitmap(blob []byte, log logger.Logger) *Bitmap {
	px, err := DecodeRLE(blob, -1)
	if err != nil {
		log.Warn("bitmap stream truncated", "error", err, "decoded", len(px))
	}
	return &Bitmap{Pixels: px, Truncated: err != nil}
}

func parseThumbnail(blob []byte, log logger.Logger) *Thumbnail {
	buf := rifx.BigEndian(blob)
	t := &Thumbnail{}
	var err error
	if t.Height, err = buf.ReadU32(); err == nil {
		t.Width, err = buf.ReadU32()
	}
	if err != nil {
		log.Warn("thumbnail header truncated", "error", err)
		t.Truncated = true
		return t
	}
	want := uint64(t.Height) * uint64(t.Width)
	if want > maxThumbnailPixels {
		log.Warn("thumbnail dimensions implausible", "width", t.Width, "height", t.Height)
		want = maxThumbnailPixels
	}
	px, err := DecodeRLE(buf.Rest(), int(want))
	if len(px) > int(want) {
		px = px[:want]
	}
	if err != nil || len(px) < int(want) {
		log.Warn("thumbnail stream short", "expected", want, "got", len(px))
		t.Truncated = true
	}
	t.Pixels = px
	return t
}

// SniffEmbedded classifies an ediM blob.
func SniffEmbedded(blob []byte, log logger.Logger) *Embedded {
	switch {
	case bytes.HasPrefix(blob, jpegMagic):
		return &Embedded{Format: FormatJPEG}
	case bytes.HasPrefix(blob, mp3Magic):
		buf := rifx.BigEndian(blob)
		n, _ := buf.ReadU32()
		hdr, err := buf.ReadBytes(int(n))
		if err != nil {
			logger.OrNop(log).Warn("mp3 header truncated", "error", err)
			hdr = buf.Rest()
		}
		return &Embedded{Format: FormatMP3, Header: hdr, Music: buf.Rest()}
	default:
		sig := blob[:min(len(blob), signatureLen)]
		return &Embedded{Format: FormatUnknown, Signature: sig}
	}
}

func parseExtendedMedia(blob []byte, log logger.Logger) *ExtendedMedia {
	if flash, ok := FlashPayload(blob); ok {
		return &ExtendedMedia{Flash: flash}
	}
	x, err := ParseExtended(rifx.BigEndian(blob), log)
	if err != nil {
		log.Debug("extension media is not a type/info record", "error", err)
		return &ExtendedMedia{}
	}
	return &ExtendedMedia{Extended: x}
}

// Package report turns loaded movies into plain summaries for the CLI, the
// HTTP API and the catalog.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arusekk/Schockabsorber/internal/cast"
	"github.com/Arusekk/Schockabsorber/internal/media"
	"github.com/Arusekk/Schockabsorber/internal/movie"
)

type Movie struct {
	Path         string       `json:"path,omitempty"`
	Format       string       `json:"format"`
	LittleEndian bool         `json:"little_endian"`
	Sections     int          `json:"sections"`
	Palette      *int32       `json:"palette,omitempty"`
	Libraries    []Library    `json:"libraries"`
	Order        []OrderEntry `json:"order,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
}

type Library struct {
	Nr        int      `json:"nr"`
	Name      string   `json:"name,omitempty"`
	Path      string   `json:"path,omitempty"`
	AssocID   int      `json:"assoc_id"`
	Populated bool     `json:"populated"`
	Slots     int      `json:"slots"`
	Members   []Member `json:"members,omitempty"`
}

type Member struct {
	Library  int        `json:"library"`
	Ordinal  int        `json:"ordinal"`
	Section  int        `json:"section"`
	Type     string     `json:"type"`
	TypeCode int32      `json:"type_code"`
	CastID   int32      `json:"cast_id"`
	Name     string     `json:"name,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
	Image    *Image     `json:"image,omitempty"`
	Script   *int32     `json:"script_id,omitempty"`
	Extended string     `json:"extended_type,omitempty"`
	Media    []Media    `json:"media,omitempty"`
}

type Image struct {
	Width        int  `json:"width"`
	Height       int  `json:"height"`
	Stride       int  `json:"stride"`
	BitsPerPixel int  `json:"bpp"`
	Palette      int  `json:"palette"`
	Padded       bool `json:"padded,omitempty"`
}

type Media struct {
	Tag     string `json:"tag"`
	Section int    `json:"section"`
	Size    int    `json:"size"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

type OrderEntry struct {
	Library int    `json:"library"`
	Member  int    `json:"member"`
	Name    string `json:"name,omitempty"`
}

type Section struct {
	Nr     int    `json:"nr"`
	Tag    string `json:"tag"`
	Size   int64  `json:"size"`
	Offset int64  `json:"offset"`
}

type Association struct {
	Owned   int    `json:"owned"`
	Assoc   int    `json:"assoc"`
	Owner   int    `json:"owner"`
	Tag     string `json:"tag"`
	Library bool   `json:"library"`
}

// Summarize describes m. Warnings are those recorded while loading.
func Summarize(m *movie.Movie, warnings []string) *Movie {
	out := &Movie{
		Path:         m.Path,
		Format:       string(m.Header.FileTag),
		LittleEndian: m.Header.LittleEndian,
		Sections:     m.Sections.Len(),
		Warnings:     warnings,
	}
	if m.Config != nil {
		p := m.Config.Palette
		out.Palette = &p
	}
	for _, lib := range m.Libraries.Libraries() {
		out.Libraries = append(out.Libraries, DescribeLibrary(lib))
	}
	if m.Order != nil {
		resolved := m.OrderedMembers()
		for i, e := range m.Order {
			oe := OrderEntry{Library: int(e.Library), Member: int(e.Member)}
			if resolved[i] != nil {
				oe.Name = resolved[i].Name
			}
			out.Order = append(out.Order, oe)
		}
	}
	return out
}

// DescribeLibrary lists the non-empty members of lib.
func DescribeLibrary(lib *cast.Library) Library {
	l := Library{
		Nr:        lib.Nr,
		Name:      lib.Name,
		Path:      lib.Path,
		AssocID:   lib.AssocID,
		Populated: lib.Populated(),
		Slots:     lib.Len(),
	}
	for i, mem := range lib.Members() {
		if mem != nil {
			l.Members = append(l.Members, DescribeMember(lib.Nr, i+1, mem))
		}
	}
	return l
}

func DescribeMember(lib, ordinal int, mem *cast.Member) Member {
	out := Member{
		Library:  lib,
		Ordinal:  ordinal,
		Section:  mem.SectionNr,
		Type:     mem.Type.String(),
		TypeCode: int32(mem.Type),
		CastID:   mem.CastID,
		Name:     mem.Name,
	}
	if !mem.Created.IsZero() {
		t := mem.Created
		out.Created = &t
	}
	if !mem.Modified.IsZero() {
		t := mem.Modified
		out.Modified = &t
	}
	switch d := mem.Data.(type) {
	case *cast.Image:
		out.Image = &Image{
			Width:        d.Width,
			Height:       d.Height,
			Stride:       d.Stride,
			BitsPerPixel: d.BitsPerPixel,
			Palette:      d.Palette,
			Padded:       d.Padded,
		}
	case *cast.Script:
		id := d.ID
		out.Script = &id
	case *cast.Extended:
		if d.Extended != nil {
			out.Extended = d.MediaType
		}
	}
	for _, tag := range mem.MediaTags() {
		out.Media = append(out.Media, DescribeMedia(mem.Media[tag]))
	}
	return out
}

func DescribeMedia(md *media.Media) Media {
	kind, detail := MediaKind(md)
	return Media{
		Tag:     string(md.Tag),
		Section: md.SectionNr,
		Size:    len(md.Data),
		Kind:    kind,
		Detail:  detail,
	}
}

// MediaKind names the decoded form of md with a short detail string.
func MediaKind(md *media.Media) (kind, detail string) {
	switch p := md.Payload.(type) {
	case *media.Bitmap:
		detail = fmt.Sprintf("%d bytes", len(p.Pixels))
		if p.Truncated {
			detail += ", truncated"
		}
		return "bitmap", detail
	case *media.Thumbnail:
		return "thumbnail", fmt.Sprintf("%dx%d", p.Width, p.Height)
	case *media.Embedded:
		switch p.Format {
		case media.FormatJPEG:
			return "jpeg", ""
		case media.FormatMP3:
			return "mp3", fmt.Sprintf("header %d bytes", len(p.Header))
		}
		return "embedded", fmt.Sprintf("%q", p.Signature)
	case *media.ExtendedMedia:
		switch {
		case p.Flash != nil:
			return "flash", fmt.Sprintf("%d bytes", len(p.Flash))
		case p.Extended != nil && p.Extended.Vector != nil:
			return "vector", fmt.Sprintf("%d points", len(p.Extended.Vector.Points))
		case p.Extended != nil:
			return "extended", p.Extended.MediaType
		}
		return "extended", ""
	}
	return "opaque", ""
}

// Export is the byte form of a media entry worth writing out on its own.
type Export struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ExportMedia picks the most useful byte form of md: the JPEG or MP3
// stream for embedded media, the SWF body for flash, and the raw section
// payload otherwise.
func ExportMedia(md *media.Media) Export {
	switch p := md.Payload.(type) {
	case *media.Embedded:
		switch p.Format {
		case media.FormatJPEG:
			return Export{Data: md.Data, ContentType: "image/jpeg", Ext: ".jpg"}
		case media.FormatMP3:
			return Export{Data: p.Music, ContentType: "audio/mpeg", Ext: ".mp3"}
		}
	case *media.ExtendedMedia:
		if p.Flash != nil {
			return Export{Data: p.Flash, ContentType: "application/x-shockwave-flash", Ext: ".swf"}
		}
	}
	return Export{Data: md.Data, ContentType: "application/octet-stream", Ext: ".bin"}
}

// Sections lists the section map, skipping unused entries.
func Sections(m *movie.Movie) []Section {
	var out []Section
	for _, s := range m.Sections.All() {
		if s == nil || s.Nr == 0 {
			continue
		}
		out = append(out, Section{Nr: s.Nr, Tag: string(s.Tag), Size: s.Size, Offset: s.Offset})
	}
	return out
}

func Associations(m *movie.Movie) []Association {
	out := make([]Association, 0, len(m.Associations.Entries))
	for _, a := range m.Associations.Entries {
		out = append(out, Association{
			Owned:   a.Owned,
			Assoc:   a.Assoc,
			Owner:   a.Owner,
			Tag:     string(a.Tag),
			Library: a.IsLibrarySection(),
		})
	}
	return out
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

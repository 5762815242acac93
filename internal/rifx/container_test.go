package rifx_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
	"github.com/Arusekk/Schockabsorber/internal/rifxtest"
)

func buildMap(t *testing.T, b *rifxtest.Builder) (*rifx.SectionMap, rifx.Header) {
	t.Helper()
	data := b.Build()
	r := bytes.NewReader(data)
	h, err := rifx.ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	m, err := rifx.DefaultEnvelopes().SectionMap(r, int64(len(data)), h, logger.Nop())
	if err != nil {
		t.Fatalf("SectionMap: %v", err)
	}
	return m, h
}

func TestReadHeader(t *testing.T) {
	t.Parallel()
	for _, le := range []bool{false, true} {
		data := rifxtest.New(le).Build()
		h, err := rifx.ReadHeader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("le=%v: %v", le, err)
		}
		if h.Magic != rifx.TagRIFX || h.FileTag != rifx.TagMV93 || h.LittleEndian != le {
			t.Fatalf("le=%v: unexpected header %+v", le, h)
		}
		if int(h.Size) != len(data)-8 {
			t.Fatalf("le=%v: size %d, want %d", le, h.Size, len(data)-8)
		}
	}
}

func TestReadHeaderRejects(t *testing.T) {
	t.Parallel()
	bad := rifxtest.New(false)
	bad.Magic = "RIFF"
	if _, err := rifx.ReadHeader(bytes.NewReader(bad.Build())); !errors.Is(err, rifx.ErrBadFileType) {
		t.Fatalf("bad magic: %v", err)
	}
	if _, err := rifx.ReadHeader(bytes.NewReader([]byte("RIFX"))); !errors.Is(err, rifx.ErrBadFileType) {
		t.Fatalf("short header: %v", err)
	}
}

func TestEnvelopeDispatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tag  rifx.Tag
		want error
	}{
		{rifx.TagFGDM, rifx.ErrUnsupportedEnvelope},
		{"APPL", rifx.ErrBadFileType},
	}
	for _, tc := range tests {
		b := rifxtest.New(false)
		b.FileTag = tc.tag
		data := b.Build()
		r := bytes.NewReader(data)
		h, err := rifx.ReadHeader(r)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := rifx.DefaultEnvelopes().SectionMap(r, int64(len(data)), h, nil); !errors.Is(err, tc.want) {
			t.Errorf("format %q: got %v, want %v", tc.tag, err, tc.want)
		}
	}

	called := false
	custom := rifx.Envelopes{rifx.TagFGDM: rifx.EnvelopeFunc(func(r io.ReaderAt, size int64, ctx rifx.Context, log logger.Logger) (*rifx.SectionMap, error) {
		called = true
		return rifx.NewSectionMap(nil), nil
	})}
	b := rifxtest.New(false)
	b.FileTag = rifx.TagFGDM
	data := b.Build()
	h, _ := rifx.ReadHeader(bytes.NewReader(data))
	if _, err := custom.SectionMap(bytes.NewReader(data), int64(len(data)), h, nil); err != nil || !called {
		t.Fatalf("custom envelope: called=%v err=%v", called, err)
	}
}

func TestSectionMapLookup(t *testing.T) {
	t.Parallel()
	for _, le := range []bool{false, true} {
		b := rifxtest.New(le)
		first := b.Add("STXT", []byte("hello"))
		second := b.Add("STXT", []byte("world!"))
		key := b.Add(rifx.TagKeyTable, rifxtest.KeyTable(le))
		m, _ := buildMap(t, b)

		if m.Len() != key+1 {
			t.Fatalf("le=%v: Len = %d, want %d", le, m.Len(), key+1)
		}
		if _, err := m.At(0); !errors.Is(err, rifx.ErrInvalidSection) {
			t.Fatalf("le=%v: At(0) = %v", le, err)
		}
		if _, err := m.At(m.Len()); !errors.Is(err, rifx.ErrInvalidSection) {
			t.Fatalf("le=%v: At(Len) = %v", le, err)
		}
		if s := m.ByTag("STXT"); s == nil || s.Nr != first {
			t.Fatalf("le=%v: ByTag returned %+v, want section %d", le, s, first)
		}
		if m.ByTag("nope") != nil {
			t.Fatalf("le=%v: ByTag found a missing tag", le)
		}
		if s := m.ByTag(rifx.TagRIFX); s != nil {
			t.Fatalf("le=%v: reserved entry is addressable", le)
		}

		got, err := m.Payload(second)
		if err != nil {
			t.Fatalf("le=%v: %v", le, err)
		}
		if string(got) != "world!" {
			t.Fatalf("le=%v: payload %q", le, got)
		}
		if s, _ := m.At(second); int(s.Size) != len(got) {
			t.Fatalf("le=%v: payload length %d, declared %d", le, len(got), s.Size)
		}
	}
}

func TestSectionPayloadTagMismatch(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	nr := b.AddMislabeled("CASt", "BITD", []byte{1, 2, 3})
	m, _ := buildMap(t, b)
	if _, err := m.Payload(nr); !errors.Is(err, rifx.ErrSectionMismatch) {
		t.Fatalf("expected ErrSectionMismatch, got %v", err)
	}
}

func TestSectionPayloadPastEnd(t *testing.T) {
	t.Parallel()
	data := rifxtest.New(false).Build()
	s := rifx.NewSection(5, "STXT", 100, int64(len(data)-4), bytes.NewReader(data), rifx.Context{})
	if _, err := s.Payload(); err == nil {
		t.Fatal("expected error reading past end")
	}
}

func TestSectionPayloadOversized(t *testing.T) {
	t.Parallel()
	const huge = 0xfffffff0
	data := []byte("BITD\x00\x00\x00\x03abc")

	s := rifx.NewSection(1, "BITD", huge, 0, bytes.NewReader(data), rifx.Context{})
	_, err := s.Payload()
	if !errors.Is(err, rifx.ErrInvalidSection) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrInvalidSection and io.ErrUnexpectedEOF, got %v", err)
	}

	// A reader that cannot report its length still fails without
	// allocating the recorded size.
	s = rifx.NewSection(1, "BITD", huge, 0, sizelessReader{bytes.NewReader(data)}, rifx.Context{})
	if _, err := s.Payload(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}

	for _, le := range []bool{false, true} {
		b := rifxtest.New(le)
		nr := b.AddOversized("STXT", []byte("short"), huge)
		m, _ := buildMap(t, b)
		if _, err := m.Payload(nr); !errors.Is(err, rifx.ErrInvalidSection) {
			t.Fatalf("le=%v: expected ErrInvalidSection, got %v", le, err)
		}
	}
}

type sizelessReader struct{ r io.ReaderAt }

func (s sizelessReader) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }

func TestUncompressedMMapPastEnd(t *testing.T) {
	t.Parallel()
	data := []byte("RIFX\x00\x00\x00\x10MV93mmap\x7f\xff\xff\xf0")
	_, err := rifx.Uncompressed{}.BuildSectionMap(bytes.NewReader(data), int64(len(data)), rifx.Context{}, nil)
	if !errors.Is(err, rifx.ErrInvalidSection) {
		t.Fatalf("expected ErrInvalidSection, got %v", err)
	}
}

func TestUncompressedWithoutMMap(t *testing.T) {
	t.Parallel()
	data := rifxtest.New(false).Build()[:rifx.HeaderSize]
	_, err := rifx.Uncompressed{}.BuildSectionMap(bytes.NewReader(data), int64(len(data)), rifx.Context{}, nil)
	if !errors.Is(err, rifx.ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(true)
	nr := b.Add("STXT", []byte("mapped"))
	path := filepath.Join(t.TempDir(), "movie.dxr")
	if err := os.WriteFile(path, b.Build(), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := rifx.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	h, err := rifx.ReadHeader(f)
	if err != nil {
		t.Fatal(err)
	}
	m, err := rifx.DefaultEnvelopes().SectionMap(f, f.Size(), h, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Payload(nr)
	if err != nil || string(got) != "mapped" {
		t.Fatalf("payload %q, %v", got, err)
	}
}

func TestOpenRejectsTinyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tiny.dir")
	if err := os.WriteFile(path, []byte("RIFX"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := rifx.Open(path); !errors.Is(err, rifx.ErrBadFileType) {
		t.Fatalf("expected ErrBadFileType, got %v", err)
	}
}

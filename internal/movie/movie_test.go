package movie_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arusekk/Schockabsorber/internal/bitmap"
	"github.com/Arusekk/Schockabsorber/internal/cast"
	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/movie"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
	"github.com/Arusekk/Schockabsorber/internal/rifxtest"
)

func load(t *testing.T, data []byte) (*movie.Movie, *logger.Recorder) {
	t.Helper()
	rec := logger.NewRecorder(nil)
	ctx := logger.WithContext(context.Background(), rec.Logger())
	m, err := movie.Load(ctx, bytes.NewReader(data), int64(len(data)), movie.Options{})
	require.NoError(t, err)
	return m, rec
}

func TestLoadSampleMovie(t *testing.T) {
	t.Parallel()
	for _, le := range []bool{false, true} {
		m, rec := load(t, rifxtest.SampleMovie(le))

		libs := m.Libraries.Libraries()
		require.Len(t, libs, 1)
		require.True(t, libs[0].Populated())
		require.Equal(t, 1, libs[0].Count())

		mem, ok := m.Member(0, 1)
		require.True(t, ok)
		assert.Equal(t, "sample", mem.Name)
		assert.Equal(t, cast.TypeImage, mem.Type)

		hdr, ok := mem.Image()
		require.True(t, ok)
		assert.Equal(t, 10, hdr.Width)
		assert.Equal(t, 5, hdr.Height)
		assert.Equal(t, 8, hdr.BitsPerPixel)
		assert.Equal(t, 0, hdr.Palette)

		img, err := m.RenderMember(0, 1, movie.InkCopy)
		require.NoError(t, err)
		p, ok := img.(*image.Paletted)
		require.True(t, ok, "got %T", img)
		assert.Equal(t, image.Rect(0, 0, 10, 5), p.Bounds())
		assert.Equal(t, bytes.Repeat([]byte{7}, 50), p.Pix)

		require.NotNil(t, m.Config)
		assert.Equal(t, int32(-101), m.Config.Palette)
		assert.Nil(t, m.Order)
		assert.Empty(t, rec.Warnings())
		assert.Equal(t, le, m.Context().LittleEndian)
	}
}

func TestLoadByteOrdersAgree(t *testing.T) {
	t.Parallel()
	be, _ := load(t, rifxtest.SampleMovie(false))
	le, _ := load(t, rifxtest.SampleMovie(true))

	assert.Equal(t, be.Sections.Len(), le.Sections.Len())
	for i, s := range be.Sections.All() {
		if s == nil {
			continue
		}
		other := le.Sections.All()[i]
		assert.Equal(t, s.Tag, other.Tag, "section %d", i)
		assert.Equal(t, s.Size, other.Size, "section %d", i)
	}
	assert.Equal(t, be.Associations.Entries, le.Associations.Entries)

	bm, _ := be.Member(0, 1)
	lm, _ := le.Member(0, 1)
	assert.Equal(t, bm.Name, lm.Name)
	assert.Equal(t, bm.Data, lm.Data)
	assert.Equal(t, bm.Media[rifx.TagBitmap].Payload, lm.Media[rifx.TagBitmap].Payload)
}

func TestLoadTruncatedBitmap(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 0)
	c.AddMember(
		rifxtest.Member{Type: 1, Name: "short", Specific: rifxtest.Image(10, 5, 10, 8, 0)},
		rifxtest.Attachment{Tag: rifx.TagBitmap, Data: rifxtest.Bitmap(bytes.Repeat([]byte{7}, 20))},
	)
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, c.Finish()...))
	m, rec := load(t, b.Build())
	// No configuration section.
	require.Len(t, rec.Warnings(), 1)

	img, err := m.RenderMember(0, 1, movie.InkCopy)
	require.NoError(t, err)
	p := img.(*image.Paletted)
	assert.Equal(t, uint8(7), p.ColorIndexAt(9, 1))
	assert.Equal(t, uint8(0), p.ColorIndexAt(0, 2))
	assert.Len(t, rec.Warnings(), 2)
}

func TestLoadOversizedMediaIsSoft(t *testing.T) {
	t.Parallel()
	for _, le := range []bool{false, true} {
		b := rifxtest.New(le)
		c := rifxtest.NewCast(b, 0)
		c.AddMember(rifxtest.Member{Type: 1, Name: "liar", Specific: rifxtest.Image(2, 2, 2, 8, 0)})
		keys := c.Finish()
		bad := b.AddOversized(rifx.TagBitmap, rifxtest.Bitmap([]byte{1, 2, 3, 4}), 0xfffffff0)
		keys = append(keys, rifxtest.CastMedia(rifxtest.FirstSection, bad, rifx.TagBitmap))
		b.Add(rifx.TagKeyTable, rifxtest.KeyTable(le, keys...))
		b.Add(rifx.TagDirConfig, rifxtest.DirConfig(0, nil))

		m, rec := load(t, b.Build())
		mem, ok := m.Member(0, 1)
		require.True(t, ok, "le=%v", le)
		assert.Empty(t, mem.Media)
		require.Len(t, rec.Warnings(), 1)
		assert.Equal(t, "media section unreadable", rec.Warnings()[0])

		_, err := m.RenderMember(0, 1, movie.InkCopy)
		assert.ErrorIs(t, err, movie.ErrNoPixels)
	}
}

func TestRenderDefaultStride(t *testing.T) {
	t.Parallel()
	// 5 pixels at 4bpp pack into 3 bytes; rows are padded to 4.
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 0)
	c.AddMember(
		rifxtest.Member{Type: 1, Name: "nibbles", Specific: rifxtest.Image(5, 2, 0, 4, bitmap.SystemPaletteID)},
		rifxtest.Attachment{Tag: rifx.TagBitmap, Data: rifxtest.Bitmap([]byte{
			0x12, 0x34, 0x50, 0x00,
			0x67, 0x89, 0xa0, 0x00,
		})},
	)
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, c.Finish()...))
	m, _ := load(t, b.Build())

	img, err := m.RenderMember(0, 1, movie.InkCopy)
	require.NoError(t, err)
	p := img.(*image.Paletted)
	assert.Equal(t, uint8(5), p.ColorIndexAt(4, 0))
	assert.Equal(t, uint8(6), p.ColorIndexAt(0, 1))
	assert.Equal(t, uint8(0xa), p.ColorIndexAt(4, 1))

	for _, tc := range []struct{ width, bpp, want int }{
		{5, 4, 4}, {8, 1, 2}, {16, 1, 2}, {3, 2, 2}, {10, 8, 10}, {7, 8, 8}, {3, 16, 6}, {4, 0, 2},
	} {
		assert.Equal(t, tc.want, movie.DefaultStride(tc.width, tc.bpp), "width=%d bpp=%d", tc.width, tc.bpp)
	}
}

func TestLoadEmptySlots(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 0)
	c.AddEmpty()
	c.AddMember(rifxtest.Member{Type: 3, Name: "text"})
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, c.Finish()...))
	m, _ := load(t, b.Build())

	lib, _ := m.Libraries.ByNr(0)
	require.Equal(t, 2, lib.Len())
	_, ok := m.Member(0, 1)
	assert.False(t, ok)
	mem, ok := m.Member(0, 2)
	require.True(t, ok)
	assert.Equal(t, "text", mem.Name)
	_, err := m.RenderMember(0, 2, movie.InkCopy)
	assert.ErrorIs(t, err, movie.ErrNotImage)
	_, err = m.RenderMember(0, 1, movie.InkCopy)
	assert.ErrorIs(t, err, movie.ErrMemberNotFound)
}

func TestLoadFatalErrors(t *testing.T) {
	t.Parallel()
	noKeys := rifxtest.New(false)
	noKeys.Add(rifx.TagDirConfig, rifxtest.DirConfig(0, nil))

	mismatch := rifxtest.New(true)
	c := rifxtest.NewCast(mismatch, 0)
	c.AddMember(rifxtest.Member{Type: 1})
	keys := c.Finish()
	bad := mismatch.AddMislabeled(rifx.TagBitmap, rifx.TagThumbnail, []byte{0, 1})
	keys = append(keys, rifxtest.CastMedia(rifxtest.FirstSection, bad, rifx.TagBitmap))
	mismatch.Add(rifx.TagKeyTable, rifxtest.KeyTable(true, keys...))

	fgdm := rifxtest.New(false)
	fgdm.FileTag = rifx.TagFGDM

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"missing KEY*", noKeys.Build(), rifx.ErrSectionNotFound},
		{"media tag mismatch", mismatch.Build(), rifx.ErrSectionMismatch},
		{"compressed envelope", fgdm.Build(), rifx.ErrUnsupportedEnvelope},
		{"not a container", []byte("RIFF\x00\x00\x00\x04WAVE"), rifx.ErrBadFileType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := movie.Load(context.Background(), bytes.NewReader(tc.data), int64(len(tc.data)), movie.Options{})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadLibraryDirectoryAndOrder(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 1)
	c.AddMember(rifxtest.Member{Type: 11, Name: "go", Specific: []byte{0, 1}})
	c.AddMember(rifxtest.Member{Type: 3, Name: "title"})
	keys := c.Finish()
	b.Add(rifx.TagLibraries, rifxtest.LibraryDir(
		rifxtest.Library{Name: "Internal", Low: 1, High: 2, Assoc: 1, Self: 1024},
		rifxtest.Library{Name: "Linked", Path: "linked.cst", Assoc: 0, Self: 2},
	))
	sord := b.Add(rifx.TagCastOrder, rifxtest.CastOrder([2]uint16{1, 2}, [2]uint16{1, 1}, [2]uint16{2, 1}))
	keys = append(keys, rifxtest.LibrarySection(0, sord, rifx.TagCastOrder))
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, keys...))
	b.Add(rifx.TagVWConfig, rifxtest.DirConfig(0, nil))

	m, rec := load(t, b.Build())
	assert.Empty(t, rec.Warnings())
	assert.Equal(t, rifx.TagVWConfig, m.Config.Tag)

	internal, ok := m.Libraries.ByAssocID(1)
	require.True(t, ok)
	assert.Equal(t, "Internal", internal.Name)
	assert.Equal(t, 2, internal.Count())
	linked, _ := m.Libraries.ByNr(2)
	assert.False(t, linked.Populated())
	assert.Equal(t, "linked.cst", linked.Path)

	ordered := m.OrderedMembers()
	require.Len(t, ordered, 3)
	assert.Equal(t, "title", ordered[0].Name)
	assert.Equal(t, "go", ordered[1].Name)
	assert.Nil(t, ordered[2])
}

func TestRenderMaskAndCache(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 0)
	// 2x1 16bpp pure red: 0 11111 00000 00000 split into byte planes.
	c.AddMember(
		rifxtest.Member{Type: 1, Name: "sprite", Specific: rifxtest.Image(2, 1, 4, 16, 0)},
		rifxtest.Attachment{Tag: rifx.TagBitmap, Data: rifxtest.Bitmap([]byte{0x7c, 0x7c, 0, 0})},
	)
	c.AddMember(
		rifxtest.Member{Type: 1, Name: "sprite mask", Specific: rifxtest.Image(2, 1, 2, 8, 0)},
		rifxtest.Attachment{Tag: rifx.TagBitmap, Data: rifxtest.Bitmap([]byte{255, 40})},
	)
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, c.Finish()...))
	m, _ := load(t, b.Build())

	img, err := m.RenderMember(0, 1, movie.InkMask)
	require.NoError(t, err)
	n := img.(*image.NRGBA)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, n.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 0, 0, 40}, n.NRGBAAt(1, 0))

	again, err := m.RenderMember(0, 1, movie.InkMask)
	require.NoError(t, err)
	assert.Same(t, n, again.(*image.NRGBA))

	plain, err := m.RenderMember(0, 1, movie.InkCopy)
	require.NoError(t, err)
	assert.NotSame(t, n, plain.(*image.NRGBA))
	assert.Equal(t, uint8(255), plain.(*image.NRGBA).NRGBAAt(1, 0).A)
}

func TestMaskFallsBackWithoutMaskMember(t *testing.T) {
	t.Parallel()
	m, rec := load(t, rifxtest.SampleMovie(false))
	img, err := m.RenderMember(0, 1, movie.InkMask)
	require.NoError(t, err)
	_, ok := img.(*image.Paletted)
	assert.True(t, ok)
	assert.Len(t, rec.Warnings(), 1)
}

func TestResolvePalette(t *testing.T) {
	t.Parallel()
	b := rifxtest.New(false)
	c := rifxtest.NewCast(b, 0)
	c.AddMember(
		rifxtest.Member{Type: 1, Name: "tinted", Specific: rifxtest.Image(2, 1, 2, 8, 2)},
		rifxtest.Attachment{Tag: rifx.TagBitmap, Data: rifxtest.Bitmap([]byte{1, 0})},
	)
	c.AddMember(
		rifxtest.Member{Type: 4, Name: "pal"},
		rifxtest.Attachment{Tag: rifx.TagCLUT, Data: rifxtest.CLUT(color.RGBA{1, 2, 3, 255}, color.RGBA{200, 100, 50, 255})},
	)
	b.Add(rifx.TagKeyTable, rifxtest.KeyTable(false, c.Finish()...))
	b.Add(rifx.TagDirConfig, rifxtest.DirConfig(0, nil))
	m, rec := load(t, b.Build())

	img, err := m.RenderMember(0, 1, movie.InkCopy)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{200, 100, 50, 255}, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, color.RGBAModel.Convert(img.At(1, 0)))

	assert.Nil(t, m.ResolvePalette(0, 0))
	assert.Equal(t, bitmap.SystemPalette(), m.ResolvePalette(0, bitmap.SystemPaletteID))
	assert.Empty(t, rec.Warnings())

	assert.Equal(t, bitmap.SystemPalette(), m.ResolvePalette(0, -7))
	assert.Nil(t, m.ResolvePalette(0, 1))
	assert.Nil(t, m.ResolvePalette(0, 9))
	assert.Len(t, rec.Warnings(), 3)
}

func TestCollaborators(t *testing.T) {
	t.Parallel()
	data := rifxtest.SampleMovie(false)
	var sawKeys bool
	score := movie.CollaboratorFunc{ID: "score", Fn: func(_ context.Context, secs *rifx.SectionMap, assoc *cast.AssociationTable, _ rifx.Context) (any, error) {
		sawKeys = secs.ByTag(rifx.TagKeyTable) != nil && len(assoc.Entries) > 0
		return 42, nil
	}}
	m, err := movie.Load(context.Background(), bytes.NewReader(data), int64(len(data)), movie.Options{
		Collaborators: []movie.Collaborator{score},
	})
	require.NoError(t, err)
	assert.True(t, sawKeys)
	assert.Equal(t, 42, m.Extras["score"])

	boom := errors.New("boom")
	broken := movie.CollaboratorFunc{ID: "scripts", Fn: func(context.Context, *rifx.SectionMap, *cast.AssociationTable, rifx.Context) (any, error) {
		return nil, boom
	}}
	_, err = movie.Load(context.Background(), bytes.NewReader(data), int64(len(data)), movie.Options{
		Collaborators: []movie.Collaborator{broken},
	})
	assert.ErrorIs(t, err, boom)
}

func TestCustomEnvelope(t *testing.T) {
	t.Parallel()
	inner := rifxtest.SampleMovie(false)
	b := rifxtest.New(false)
	b.FileTag = rifx.TagFGDM
	wrapped := b.Build()

	envs := rifx.Envelopes{rifx.TagFGDM: rifx.EnvelopeFunc(func(io.ReaderAt, int64, rifx.Context, logger.Logger) (*rifx.SectionMap, error) {
		r := bytes.NewReader(inner)
		h, err := rifx.ReadHeader(r)
		if err != nil {
			return nil, err
		}
		return rifx.Uncompressed{}.BuildSectionMap(r, int64(len(inner)), h.Context(), nil)
	})}
	m, err := movie.Load(context.Background(), bytes.NewReader(wrapped), int64(len(wrapped)), movie.Options{Envelopes: envs})
	require.NoError(t, err)
	_, ok := m.Member(0, 1)
	assert.True(t, ok)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sample.dir")
	require.NoError(t, os.WriteFile(path, rifxtest.SampleMovie(true), 0o644))

	m, err := movie.Open(context.Background(), path, movie.Options{})
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	_, err = m.RenderMember(0, 1, movie.InkCopy)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = movie.Open(context.Background(), filepath.Join(t.TempDir(), "missing.dir"), movie.Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCancelled(t *testing.T) {
	t.Parallel()
	data := rifxtest.SampleMovie(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := movie.Load(ctx, bytes.NewReader(data), int64(len(data)), movie.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

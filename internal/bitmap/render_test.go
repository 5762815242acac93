package bitmap

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Arusekk/Schockabsorber/internal/logger"
)

func rgbaAt(t *testing.T, img image.Image, x, y int) color.RGBA {
	t.Helper()
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestSystemPalette(t *testing.T) {
	t.Parallel()
	p := SystemPalette()
	if len(p) != 256 {
		t.Fatalf("system palette has %d entries", len(p))
	}
	tests := map[int]color.RGBA{
		0:   {255, 255, 255, 255},
		1:   {0, 255, 255, 255},
		6:   {255, 0, 0, 255},
		7:   {128, 128, 128, 255},
		8:   {160, 160, 164, 255},
		9:   {255, 251, 240, 255},
		10:  {255, 255, 254, 255},
		11:  {255, 255, 204, 255},
		224: {0, 0, 51, 255},
		225: {0, 0, 1, 255},
		244: {0, 0, 1, 255},
		245: {221, 221, 221, 255},
		246: {166, 202, 240, 255},
		247: {192, 220, 192, 255},
		248: {192, 192, 192, 255},
		255: {0, 0, 0, 255},
	}
	for i, want := range tests {
		if got := p[i].(color.RGBA); got != want {
			t.Errorf("entry %d = %v, want %v", i, got, want)
		}
	}
	if _, ok := BuiltinPalette(SystemPaletteID); !ok {
		t.Fatal("system palette id not resolved")
	}
	if _, ok := BuiltinPalette(-1); ok {
		t.Fatal("unknown builtin id resolved")
	}
}

func TestPaletteFromCLUT(t *testing.T) {
	t.Parallel()
	data := []byte{0x12, 0x00, 0x34, 0xff, 0x56, 0x01, 0xff, 0xff, 0, 0, 0x80, 0x80, 0xaa}
	p := PaletteFromCLUT(data)
	if len(p) != 2 {
		t.Fatalf("entries = %d, want 2", len(p))
	}
	if got := p[0].(color.RGBA); got != (color.RGBA{0x12, 0x34, 0x56, 0xff}) {
		t.Fatalf("entry 0 = %v", got)
	}
	if got := p[1].(color.RGBA); got != (color.RGBA{0xff, 0x00, 0x80, 0xff}) {
		t.Fatalf("entry 1 = %v", got)
	}
}

func TestRender8bppPaletteEveryValue(t *testing.T) {
	t.Parallel()
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.RGBA{uint8(i), uint8(255 - i), uint8(i * 7), 255}
	}
	px := make([]byte, 256)
	for i := range px {
		px[i] = byte(i)
	}
	img, err := Render(Source{Width: 16, Height: 16, Stride: 16, BitsPerPixel: 8, Pixels: px}, pal, nil)
	if err != nil {
		t.Fatal(err)
	}
	for v := range 256 {
		x, y := v%16, v/16
		if got := rgbaAt(t, img, x, y); got != pal[v].(color.RGBA) {
			t.Fatalf("value %d rendered as %v, want %v", v, got, pal[v])
		}
	}
}

func TestRender8bppSystemPalette(t *testing.T) {
	t.Parallel()
	img, err := Render(Source{Width: 2, Height: 1, Stride: 4, BitsPerPixel: 8, Pixels: []byte{7, 0, 9, 9}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(t, img, 0, 0); got != (color.RGBA{128, 128, 128, 255}) {
		t.Fatalf("pixel 0 = %v", got)
	}
	if got := rgbaAt(t, img, 1, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("pixel 1 = %v", got)
	}
}

func TestRenderSubByteIndexed(t *testing.T) {
	t.Parallel()
	pal := color.Palette{color.RGBA{0, 0, 0, 255}, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 255, 0, 255}, color.RGBA{0, 0, 255, 255}}
	// 2bpp, 5 pixels wide, stride 2 bytes: 00 01 10 11 | 01 xx
	src := Source{Width: 5, Height: 1, Stride: 2, BitsPerPixel: 2, Pixels: []byte{0b00011011, 0b01000000}}
	img, err := Render(src, pal, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := img.(*image.Paletted)
	want := []uint8{0, 1, 2, 3, 1}
	for x, w := range want {
		if p.ColorIndexAt(x, 0) != w {
			t.Fatalf("x=%d index %d, want %d", x, p.ColorIndexAt(x, 0), w)
		}
	}

	// 1bpp, two rows.
	src = Source{Width: 3, Height: 2, Stride: 1, BitsPerPixel: 1, Pixels: []byte{0b10100000, 0b01000000}}
	img, _ = Render(src, pal, nil)
	p = img.(*image.Paletted)
	if p.ColorIndexAt(0, 0) != 1 || p.ColorIndexAt(1, 0) != 0 || p.ColorIndexAt(2, 0) != 1 || p.ColorIndexAt(1, 1) != 1 {
		t.Fatalf("unexpected 1bpp unpacking %v", p.Pix)
	}
}

func TestScale5(t *testing.T) {
	t.Parallel()
	for v := range uint8(32) {
		want := uint8(int(v) * 255 / 31)
		if got := Scale5(v); got != want {
			t.Fatalf("Scale5(%d) = %d, want %d", v, got, want)
		}
	}
	if Scale5(0) != 0 || Scale5(31) != 255 {
		t.Fatal("endpoints wrong")
	}
}

func TestRender16bpp(t *testing.T) {
	t.Parallel()
	// Row layout: high bytes for both pixels, then low bytes.
	// Pixel 0: 0 11111 00000 10000 -> (255, 0, 131)
	// Pixel 1: alpha bit set -> yellow
	hi0, lo0 := uint8(0b0_11111_00), uint8(0b000_10000)
	hi1, lo1 := uint8(0x80), uint8(0x00)
	src := Source{Width: 2, Height: 1, Stride: 4, BitsPerPixel: 16, Pixels: []byte{hi0, hi1, lo0, lo1}}
	img, err := Render(src, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(t, img, 0, 0); got != (color.RGBA{255, 0, 131, 255}) {
		t.Fatalf("pixel 0 = %v", got)
	}
	if got := rgbaAt(t, img, 1, 0); got != (color.RGBA{255, 255, 0, 255}) {
		t.Fatalf("pixel 1 = %v", got)
	}
}

func TestRender32bpp(t *testing.T) {
	t.Parallel()
	// Planes R R | G G | B B | A A
	px := []byte{10, 20, 30, 40, 50, 60, 255, 255}
	img, err := Render(Source{Width: 2, Height: 1, Stride: 8, BitsPerPixel: 32, Pixels: px}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := img.(*image.NRGBA)
	if got := n.NRGBAAt(1, 0); got != (color.NRGBA{20, 40, 60, 255}) {
		t.Fatalf("pixel 1 = %v", got)
	}
}

func TestRenderPadsTruncatedData(t *testing.T) {
	t.Parallel()
	rec := logger.NewRecorder(nil)
	img, err := Render(Source{Width: 4, Height: 4, Stride: 4, BitsPerPixel: 8, Pixels: []byte{7, 7}}, nil, rec.Logger())
	if err != nil {
		t.Fatal(err)
	}
	p := img.(*image.Paletted)
	if p.ColorIndexAt(1, 0) != 7 || p.ColorIndexAt(3, 3) != 0 {
		t.Fatalf("unexpected padding %v", p.Pix)
	}
	if len(rec.Warnings()) != 1 {
		t.Fatalf("expected a truncation warning, got %v", rec.Warnings())
	}
}

func TestRenderUnknownDepthFallsBack(t *testing.T) {
	t.Parallel()
	rec := logger.NewRecorder(nil)
	img, err := Render(Source{Width: 2, Height: 1, Stride: 2, BitsPerPixel: 24, Pixels: []byte{3, 4}}, nil, rec.Logger())
	if err != nil {
		t.Fatal(err)
	}
	g, ok := img.(*image.Gray)
	if !ok || g.GrayAt(1, 0).Y != 4 {
		t.Fatalf("expected grayscale fallback, got %T", img)
	}
	if len(rec.Warnings()) != 1 {
		t.Fatalf("expected a warning, got %v", rec.Warnings())
	}
}

func TestRenderRejectsBadDimensions(t *testing.T) {
	t.Parallel()
	for _, src := range []Source{
		{Width: 0, Height: 1, Stride: 1, BitsPerPixel: 8},
		{Width: 1, Height: -1, Stride: 1, BitsPerPixel: 8},
		{Width: 1 << 20, Height: 1 << 20, Stride: 1, BitsPerPixel: 8},
	} {
		if _, err := Render(src, nil, nil); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("%+v: got %v", src, err)
		}
	}
}

func TestRenderMasked(t *testing.T) {
	t.Parallel()
	// 16bpp 3x2 image, 2x1 mask.
	src := Source{Width: 3, Height: 2, Stride: 6, BitsPerPixel: 16, Pixels: make([]byte, 12)}
	mask := Source{Width: 2, Height: 1, Stride: 4, BitsPerPixel: 8, Pixels: []byte{200, 100, 9, 9}}
	img, err := RenderMasked(src, mask, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := img.(*image.NRGBA)
	if a := n.NRGBAAt(0, 0).A; a != 200 {
		t.Fatalf("alpha(0,0) = %d", a)
	}
	if a := n.NRGBAAt(1, 0).A; a != 100 {
		t.Fatalf("alpha(1,0) = %d", a)
	}
	if a := n.NRGBAAt(2, 0).A; a != 0 {
		t.Fatalf("alpha outside mask width = %d", a)
	}
	if a := n.NRGBAAt(0, 1).A; a != 0 {
		t.Fatalf("alpha outside mask height = %d", a)
	}

	src32 := Source{Width: 1, Height: 1, Stride: 4, BitsPerPixel: 32, Pixels: []byte{1, 2, 3, 4}}
	img, err = RenderMasked(src32, Source{Width: 1, Height: 1, Stride: 1, BitsPerPixel: 8, Pixels: []byte{77}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.(*image.NRGBA).NRGBAAt(0, 0); got != (color.NRGBA{1, 2, 3, 77}) {
		t.Fatalf("32bpp masked = %v", got)
	}
}

func TestRenderMaskedUnsupportedPairing(t *testing.T) {
	t.Parallel()
	rec := logger.NewRecorder(nil)
	src := Source{Width: 1, Height: 1, Stride: 1, BitsPerPixel: 8, Pixels: []byte{5}}
	img, err := RenderMasked(src, src, rec.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("expected grayscale fallback, got %T", img)
	}
	if len(rec.Warnings()) != 1 {
		t.Fatalf("expected a warning, got %v", rec.Warnings())
	}
}

func TestRenderMaskedEmptyMaskRendersUnmasked(t *testing.T) {
	t.Parallel()
	rec := logger.NewRecorder(nil)
	src := Source{Width: 1, Height: 1, Stride: 4, BitsPerPixel: 32, Pixels: []byte{1, 2, 3, 4}}
	mask := Source{Width: 0, Height: 0, BitsPerPixel: 8}
	img, err := RenderMasked(src, mask, rec.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if got := img.(*image.NRGBA).NRGBAAt(0, 0); got != (color.NRGBA{1, 2, 3, 4}) {
		t.Fatalf("unmasked pixel = %v", got)
	}
	if len(rec.Warnings()) != 1 {
		t.Fatalf("expected one warning, got %v", rec.Warnings())
	}
}

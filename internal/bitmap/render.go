// Package bitmap reconstructs raster images from decoded member pixel data.
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/Arusekk/Schockabsorber/internal/logger"
)

var ErrInvalidDimensions = errors.New("invalid image dimensions")

// maxPixels bounds width*height of a single image.
const maxPixels = 1 << 28

// Source is raw pixel data with its geometry. Stride is the row length in
// bytes and may exceed what Width pixels need.
type Source struct {
	Width, Height int
	Stride        int
	BitsPerPixel  int
	Pixels        []byte
}

func (s Source) validate() error {
	if s.Width <= 0 || s.Height <= 0 || s.Stride < 0 || s.Width*s.Height > maxPixels || s.Stride*s.Height > maxPixels*4 {
		return fmt.Errorf("%w: %dx%d stride %d", ErrInvalidDimensions, s.Width, s.Height, s.Stride)
	}
	return nil
}

// padded returns the pixel bytes extended with zeros to Stride*Height.
func (s Source) padded(log logger.Logger) []byte {
	want := s.Stride * s.Height
	if len(s.Pixels) >= want {
		return s.Pixels
	}
	log.Warn("pixel data too short, padding with zeros", "expected", want, "got", len(s.Pixels),
		"percent", 100*len(s.Pixels)/max(want, 1))
	out := make([]byte, want)
	copy(out, s.Pixels)
	return out
}

// Render builds an image from src. A non-empty palette applies to 1, 2, 4
// and 8 bits per pixel. Without a palette, 8-bit data goes through the
// system palette, 16-bit data is split high/low byte planes of 1-5-5-5
// ARGB, and 32-bit data is four byte planes R, G, B, A per row. Anything
// else renders as grayscale with a warning.
func Render(src Source, pal color.Palette, log logger.Logger) (image.Image, error) {
	log = logger.OrNop(log)
	if err := src.validate(); err != nil {
		return nil, err
	}
	px := src.padded(log)

	if len(pal) > 0 {
		switch src.BitsPerPixel {
		case 1, 2, 4, 8:
			return indexed(src, px, pal), nil
		}
		log.Warn("palette ignored for direct-colour image", "bpp", src.BitsPerPixel)
	}
	switch src.BitsPerPixel {
	case 8:
		return indexed(src, px, systemPalette), nil
	case 16:
		return rgb555(src, px), nil
	case 32:
		return rgba32(src, px), nil
	}
	log.Warn("unsupported bit depth, rendering as grayscale", "bpp", src.BitsPerPixel)
	return grayscale(src, px), nil
}

// RenderMasked renders a 16- or 32-bit image whose alpha comes from an
// 8-bit mask image at the same coordinates, clipped to the smaller of the
// two. Outside the mask alpha is zero. A mask with invalid dimensions
// renders the image unmasked, and other depth pairs fall back to an
// unmasked grayscale rendering, both with a warning.
func RenderMasked(src, mask Source, log logger.Logger) (image.Image, error) {
	log = logger.OrNop(log)
	if err := src.validate(); err != nil {
		return nil, err
	}
	if mask.BitsPerPixel != 8 || (src.BitsPerPixel != 16 && src.BitsPerPixel != 32) {
		log.Warn("unsupported mask pairing, rendering as grayscale", "bpp", src.BitsPerPixel, "mask_bpp", mask.BitsPerPixel)
		return grayscale(src, src.padded(log)), nil
	}
	if err := mask.validate(); err != nil {
		log.Warn("mask unusable, rendering unmasked", "error", err)
		return Render(src, nil, log)
	}
	px := src.padded(log)
	mpx := mask.padded(log.With("mask", true))

	var img *image.NRGBA
	if src.BitsPerPixel == 16 {
		img = rgb555(src, px)
	} else {
		img = rgba32(src, px)
	}
	for y := range src.Height {
		for x := range src.Width {
			a := uint8(0)
			if y < mask.Height && x < mask.Width {
				a = byteAt(mpx, y*mask.Stride+x)
			}
			img.Pix[img.PixOffset(x, y)+3] = a
		}
	}
	return img, nil
}

// Scale5 maps a 5-bit channel to 8 bits as floor(v*255/31).
func Scale5(v uint8) uint8 {
	return uint8(uint16(v&31) * 255 / 31)
}

func byteAt(b []byte, i int) uint8 {
	if i < 0 || i >= len(b) {
		return 0
	}
	return b[i]
}

func indexed(src Source, px []byte, pal color.Palette) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, src.Width, src.Height), full256(pal))
	bpp := src.BitsPerPixel
	perByte := 8 / bpp
	mask := uint8(1<<bpp - 1)
	for y := range src.Height {
		row := y * src.Stride
		out := img.Pix[y*img.Stride : y*img.Stride+src.Width]
		for x := range out {
			if bpp == 8 {
				out[x] = byteAt(px, row+x)
				continue
			}
			b := byteAt(px, row+x/perByte)
			shift := uint(8 - bpp*(x%perByte+1))
			out[x] = (b >> shift) & mask
		}
	}
	return img
}

func rgb555(src Source, px []byte) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	for y := range src.Height {
		row := y * src.Stride
		for x := range src.Width {
			bits := uint16(byteAt(px, row+x))<<8 | uint16(byteAt(px, row+x+src.Width))
			r, g, b := uint8(bits>>10)&31, uint8(bits>>5)&31, uint8(bits)&31
			if bits>>15 != 0 {
				r, g, b = 31, 31, 0
			}
			o := img.PixOffset(x, y)
			img.Pix[o] = Scale5(r)
			img.Pix[o+1] = Scale5(g)
			img.Pix[o+2] = Scale5(b)
			img.Pix[o+3] = 0xff
		}
	}
	return img
}

func rgba32(src Source, px []byte) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	w := src.Width
	for y := range src.Height {
		row := y * src.Stride
		for x := range w {
			o := img.PixOffset(x, y)
			img.Pix[o] = byteAt(px, row+x)
			img.Pix[o+1] = byteAt(px, row+x+w)
			img.Pix[o+2] = byteAt(px, row+x+2*w)
			img.Pix[o+3] = byteAt(px, row+x+3*w)
		}
	}
	return img
}

func grayscale(src Source, px []byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, src.Width, src.Height))
	for y := range src.Height {
		for x := range src.Width {
			img.Pix[y*img.Stride+x] = byteAt(px, y*src.Stride+x)
		}
	}
	return img
}

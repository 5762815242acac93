package bitmap

import "image/color"

// SystemPaletteID is the id image members use for the built-in palette.
const SystemPaletteID = -101

var systemPalette = buildSystemPalette()

// SystemPalette returns the built-in 256-colour palette.
func SystemPalette() color.Palette {
	return append(color.Palette(nil), systemPalette...)
}

// BuiltinPalette resolves a negative palette id.
func BuiltinPalette(id int) (color.Palette, bool) {
	if id == SystemPaletteID {
		return SystemPalette(), true
	}
	return nil, false
}

func buildSystemPalette() color.Palette {
	var rgb []uint8
	bits := []uint8{1, 0}
	cube := []uint8{5, 4, 3, 2, 1, 0}

	// 0..6: reversed 3-bit BGR.
	for _, b := range bits {
		for _, g := range bits {
			for _, r := range bits {
				rgb = append(rgb, 255*r, 255*g, 255*b)
			}
		}
	}
	// 7..9 replace the last black.
	rgb = append(rgb[:len(rgb)-3], 128, 128, 128, 160, 160, 164, 255, 251, 240)
	// 10..225: reversed 6x6x6 cube.
	for _, r := range cube {
		for _, g := range cube {
			for _, b := range cube {
				rgb = append(rgb, 51*r, 51*g, 51*b)
			}
		}
	}
	rgb[32]--
	// 225..247 replace the cube's black.
	rgb = rgb[:len(rgb)-3]
	for range 20 {
		rgb = append(rgb, 0, 0, 1)
	}
	rgb = append(rgb, 221, 221, 221, 166, 202, 240, 192, 220, 192)
	// 248..255: reversed 3-bit BGR at half intensity.
	for _, b := range bits {
		for _, g := range bits {
			for _, r := range bits {
				rgb = append(rgb, 128*r, 128*g, 128*b)
			}
		}
	}
	n := len(rgb)
	rgb[n-24], rgb[n-23], rgb[n-22] = 192, 192, 192

	return rgbPalette(rgb)
}

// PaletteFromCLUT converts "CLUT" media: 6-byte entries of 16-bit channels,
// of which only the high bytes are kept.
func PaletteFromCLUT(data []byte) color.Palette {
	n := len(data) / 6
	rgb := make([]uint8, 0, n*3)
	for i := 0; i < n*6; i += 2 {
		rgb = append(rgb, data[i])
	}
	return rgbPalette(rgb)
}

func rgbPalette(rgb []uint8) color.Palette {
	p := make(color.Palette, 0, len(rgb)/3)
	for i := 0; i+2 < len(rgb); i += 3 {
		p = append(p, color.RGBA{R: rgb[i], G: rgb[i+1], B: rgb[i+2], A: 0xff})
	}
	return p
}

// full256 pads p with opaque black so every byte value indexes it.
func full256(p color.Palette) color.Palette {
	if len(p) >= 256 {
		return p[:256]
	}
	out := make(color.Palette, 256)
	copy(out, p)
	for i := len(p); i < 256; i++ {
		out[i] = color.RGBA{A: 0xff}
	}
	return out
}

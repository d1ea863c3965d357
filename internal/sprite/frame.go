// Package sprite decodes palette-indexed image formats into frame
// descriptors. Pixel data is always one palette index per byte.
package sprite

import (
	"image"
	"image/color"
)

// NoTransparency marks a frame without a transparent palette index.
const NoTransparency = -1

// Frame is one decoded image of a sprite. len(Data) == Width*Height.
type Frame struct {
	Width       int
	Height      int
	OffsetX     int
	OffsetY     int
	Palette     color.Palette
	Transparent int
	// Delay is the display time in hundredths of a second, where known.
	Delay int
	Data  []byte
}

// Sprite is an ordered sequence of frames on a common canvas.
type Sprite struct {
	Format string
	Width  int
	Height int
	Frames []Frame
}

// Image returns the frame as a paletted image. The transparent index, if
// any, is given a zero alpha.
func (f *Frame) Image() *image.Paletted {
	pal := make(color.Palette, len(f.Palette))
	copy(pal, f.Palette)
	if f.Transparent >= 0 && f.Transparent < len(pal) {
		pal[f.Transparent] = color.RGBA{}
	}

	// indices past the end of a short palette render as black
	if len(pal) < 256 {
		var maxIndex byte
		for _, v := range f.Data {
			maxIndex = max(maxIndex, v)
		}
		for len(pal) <= int(maxIndex) {
			pal = append(pal, color.RGBA{A: 0xFF})
		}
	}

	img := image.NewPaletted(image.Rect(0, 0, f.Width, f.Height), pal)
	copy(img.Pix, f.Data)
	return img
}

func readPalette(rgb []byte) color.Palette {
	pal := make(color.Palette, len(rgb)/3)
	for i := range pal {
		pal[i] = color.RGBA{R: rgb[3*i], G: rgb[3*i+1], B: rgb[3*i+2], A: 0xFF}
	}
	return pal
}

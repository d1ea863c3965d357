// Package font reads the 4-bit bitmap fonts (.fnt) of Tiberian Dawn, Red
// Alert and Tiberian Sun.
package font

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/text/encoding/charmap"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/bitstream"
)

const (
	formatV3 = 0x00
	formatV4 = 0x02

	bitsPerPixel = 4
	headerSize   = 0x14
)

type header struct {
	Size        uint16
	Format      uint8
	_           uint8
	_           uint16
	OffsetsList uint16
	WidthsList  uint16
	FontData    uint16
	HeightsList uint16
	_           uint16
	Zero        uint8
	LastSymbol  uint8
	Height      uint8
	Width       uint8
}

// Glyph is one symbol, one 4-bit colour index per pixel byte.
type Glyph struct {
	Width   int
	Height  int
	YOffset int
	Data    []byte
}

// Font is a decoded bitmap font indexed by code page 437 byte.
type Font struct {
	Version int
	Height  int
	Width   int
	Glyphs  []Glyph
}

func readHeader(c *binio.Cursor) (header, error) {
	var h header
	if err := c.ReadStruct(&h); err != nil {
		return h, fmt.Errorf("font: %w", binio.ErrNotThisFormat)
	}
	if int64(h.Size) != c.Len() || h.Zero != 0 {
		return h, fmt.Errorf("font: %w", binio.ErrNotThisFormat)
	}
	if h.Format != formatV3 && h.Format != formatV4 {
		return h, fmt.Errorf("font format 0x%02x: %w", h.Format, binio.ErrNotThisFormat)
	}
	for _, off := range []uint16{h.OffsetsList, h.WidthsList, h.FontData, h.HeightsList} {
		if off < headerSize || int64(off) > c.Len() {
			return h, fmt.Errorf("font table offset 0x%04x: %w", off, binio.ErrNotThisFormat)
		}
	}
	return h, nil
}

// Sniff reports whether c is positioned at the start of a font file whose
// declared size matches the cursor length. The position is restored.
func Sniff(c *binio.Cursor) bool {
	pos := c.Position()
	defer c.SeekTo(pos)

	_, err := readHeader(c)
	return err == nil
}

// symbolCount returns the number of glyphs. Version 4 fonts leave the last
// symbol byte empty, so the count is derived from the gap between the two
// lowest table offsets.
func (h *header) symbolCount() int {
	if h.Format == formatV3 {
		return int(h.LastSymbol) + 1
	}

	tables := []struct {
		offset int
		width  int
	}{
		{int(h.OffsetsList), 2},
		{int(h.WidthsList), 1},
		{int(h.FontData), 1},
		{int(h.HeightsList), 2},
	}
	lo, next := tables[0], tables[1]
	if next.offset < lo.offset {
		lo, next = next, lo
	}
	for _, t := range tables[2:] {
		switch {
		case t.offset < lo.offset:
			lo, next = t, lo
		case t.offset < next.offset:
			next = t
		}
	}
	return (next.offset - lo.offset) / lo.width
}

// Decode reads a version 3 or version 4 font.
func Decode(src *binio.Source) (*Font, error) {
	c := binio.NewCursor(src)
	h, err := readHeader(c)
	if err != nil {
		return nil, err
	}
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}

	n := h.symbolCount()
	size := len(data)
	if int(h.OffsetsList)+2*n > size || int(h.WidthsList)+n > size || int(h.HeightsList)+2*n > size {
		return nil, binio.Malformed("font tables for %d symbols exceed %d bytes", n, size)
	}

	f := &Font{Version: 3, Height: int(h.Height), Width: int(h.Width), Glyphs: make([]Glyph, n)}
	base := 0
	if h.Format == formatV4 {
		f.Version = 4
		base = int(h.FontData)
	}

	for i := range f.Glyphs {
		g := &f.Glyphs[i]
		start := base + (int(data[int(h.OffsetsList)+2*i]) | int(data[int(h.OffsetsList)+2*i+1])<<8)
		g.Width = int(data[int(h.WidthsList)+i])
		g.YOffset = int(data[int(h.HeightsList)+2*i])
		g.Height = int(data[int(h.HeightsList)+2*i+1])

		stride := bitstream.MinimumStride(g.Width, bitsPerPixel)
		if start < 0 || start+stride*g.Height > size {
			return nil, binio.Malformed("glyph %d data exceeds file bounds", i)
		}

		g.Data, err = bitstream.Unpack(bytes.NewReader(data[start:]), g.Width, g.Height, bitsPerPixel, false, stride)
		if err != nil {
			return nil, fmt.Errorf("glyph %d: %w", i, err)
		}
	}

	return f, nil
}

// Glyph returns the glyph for r, encoded through code page 437.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	b, ok := charmap.CodePage437.EncodeRune(r)
	if !ok || int(b) >= len(f.Glyphs) {
		return Glyph{}, false
	}
	return f.Glyphs[b], true
}

// Atlas lays every glyph out on a grid of columns cells, using a 16 step
// grey ramp for the colour indices.
func (f *Font) Atlas(columns int) *image.Paletted {
	cellW, cellH := 1, 1
	for _, g := range f.Glyphs {
		cellW = max(cellW, g.Width)
		cellH = max(cellH, g.YOffset+g.Height)
	}
	rows := (len(f.Glyphs) + columns - 1) / columns

	pal := make(color.Palette, 16)
	pal[0] = color.RGBA{}
	for i := 1; i < 16; i++ {
		v := uint8(i * 17)
		pal[i] = color.RGBA{v, v, v, 0xFF}
	}

	img := image.NewPaletted(image.Rect(0, 0, columns*cellW, max(rows, 1)*cellH), pal)
	for i, g := range f.Glyphs {
		ox, oy := i%columns*cellW, i/columns*cellH+g.YOffset
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetColorIndex(ox+x, oy+y, g.Data[y*g.Width+x])
			}
		}
	}
	return img
}

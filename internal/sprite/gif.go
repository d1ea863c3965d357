package sprite

import (
	"bytes"
	"compress/lzw"
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
)

const (
	gifImageDescriptor = 0x2C
	gifExtension       = 0x21
	gifTrailer         = 0x3B

	gifGraphicControl = 0xF9

	gifColorTable = 0x80
	gifInterlaced = 0x40
	gifTableSize  = 0x07

	gifHasTransparency = 0x01
)

type gifScreen struct {
	Width      uint16
	Height     uint16
	Flags      uint8
	Background uint8
	Aspect     uint8
}

type gifDescriptor struct {
	Left   uint16
	Top    uint16
	Width  uint16
	Height uint16
	Flags  uint8
}

type gifControl struct {
	Size        uint8
	Flags       uint8
	Delay       uint16
	Transparent uint8
	Terminator  uint8
}

// SniffGif reports whether c is positioned at a GIF87a or GIF89a
// signature. The cursor position is restored.
func SniffGif(c *binio.Cursor) bool {
	b, err := c.Peek(6)
	if err != nil {
		return false
	}
	sig := string(b)
	return sig == "GIF87a" || sig == "GIF89a"
}

// DecodeGif decodes every image of a GIF into frames. Frames are returned
// uncomposited with their canvas offsets; disposal methods are ignored.
func DecodeGif(src *binio.Source) (*Sprite, error) {
	c := binio.NewCursor(src)
	if !SniffGif(c) {
		return nil, fmt.Errorf("gif: %w", binio.ErrNotThisFormat)
	}
	if err := c.Skip(6); err != nil {
		return nil, err
	}

	var screen gifScreen
	if err := c.ReadStruct(&screen); err != nil {
		return nil, fmt.Errorf("reading gif screen descriptor: %w", err)
	}

	var global []byte
	if screen.Flags&gifColorTable != 0 {
		var err error
		if global, err = c.ReadBytes(3 << (screen.Flags&gifTableSize + 1)); err != nil {
			return nil, fmt.Errorf("reading gif global colour table: %w", err)
		}
	}

	s := &Sprite{Format: "gif", Width: int(screen.Width), Height: int(screen.Height)}
	transparent, delay := NoTransparency, 0

	for {
		block, err := c.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("reading gif block: %w", err)
		}

		switch block {
		case gifTrailer:
			return s, nil

		case gifExtension:
			label, err := c.ReadU8()
			if err != nil {
				return nil, fmt.Errorf("reading gif extension label: %w", err)
			}
			if label != gifGraphicControl {
				if _, err := readSubBlocks(c); err != nil {
					return nil, fmt.Errorf("skipping gif extension 0x%02x: %w", label, err)
				}
				continue
			}

			var gce gifControl
			if err := c.ReadStruct(&gce); err != nil {
				return nil, fmt.Errorf("reading gif graphic control: %w", err)
			}
			if gce.Size != 4 || gce.Terminator != 0 {
				return nil, binio.Malformed("gif graphic control block of size %d", gce.Size)
			}
			transparent, delay = NoTransparency, int(gce.Delay)
			if gce.Flags&gifHasTransparency != 0 {
				transparent = int(gce.Transparent)
			}

		case gifImageDescriptor:
			f, err := readGifFrame(c, global, &screen)
			if err != nil {
				return nil, fmt.Errorf("gif frame %d: %w", len(s.Frames), err)
			}
			f.Transparent, f.Delay = transparent, delay
			s.Frames = append(s.Frames, *f)
			transparent, delay = NoTransparency, 0

		default:
			return nil, binio.Malformed("gif block 0x%02x at offset %d", block, c.Position()-1)
		}
	}
}

func readGifFrame(c *binio.Cursor, global []byte, screen *gifScreen) (*Frame, error) {
	var d gifDescriptor
	if err := c.ReadStruct(&d); err != nil {
		return nil, err
	}
	if int(d.Left)+int(d.Width) > int(screen.Width) || int(d.Top)+int(d.Height) > int(screen.Height) {
		return nil, binio.Malformed("frame %dx%d at %d,%d outside the %dx%d screen",
			d.Width, d.Height, d.Left, d.Top, screen.Width, screen.Height)
	}

	table := global
	if d.Flags&gifColorTable != 0 {
		var err error
		if table, err = c.ReadBytes(3 << (d.Flags&gifTableSize + 1)); err != nil {
			return nil, fmt.Errorf("reading local colour table: %w", err)
		}
	}
	if table == nil {
		return nil, binio.Malformed("image without a colour table")
	}

	litWidth, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	if litWidth < 2 || litWidth > 8 {
		return nil, binio.Malformed("lzw minimum code size %d", litWidth)
	}

	compressed, err := readSubBlocks(c)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	// the pixel buffer grows with the decoded data
	width, height := int(d.Width), int(d.Height)
	lz := lzw.NewReader(bytes.NewReader(compressed), lzw.LSB, int(litWidth))
	defer lz.Close()
	pixels, err := io.ReadAll(io.LimitReader(lz, int64(width*height)))
	if err != nil {
		return nil, fmt.Errorf("%w: lzw data: %w", binio.ErrMalformedHeader, err)
	}
	if len(pixels) < width*height {
		return nil, binio.Malformed("lzw data holds %d of %d pixels", len(pixels), width*height)
	}

	if d.Flags&gifInterlaced != 0 {
		pixels = deinterlace(pixels, width, height)
	}

	return &Frame{
		Width:   width,
		Height:  height,
		OffsetX: int(d.Left),
		OffsetY: int(d.Top),
		Palette: readPalette(table),
		Data:    pixels,
	}, nil
}

// readSubBlocks concatenates length-prefixed data sub-blocks up to the
// zero-length terminator.
func readSubBlocks(c *binio.Cursor) ([]byte, error) {
	var out []byte
	for {
		n, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		b, err := c.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
}

var interlacePasses = []struct{ start, step int }{
	{0, 8}, {4, 8}, {2, 4}, {1, 2},
}

// deinterlace restores row order. Interlaced images store rows in four
// passes.
func deinterlace(pixels []byte, width, height int) []byte {
	out := make([]byte, len(pixels))
	src := 0
	for _, p := range interlacePasses {
		for y := p.start; y < height; y += p.step {
			copy(out[y*width:(y+1)*width], pixels[src*width:(src+1)*width])
			src++
		}
	}
	return out
}

package sprite

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/bitstream"
	"github.com/Mailaender/OpenRA/internal/rle"
)

const (
	pcxManufacturer  = 10
	pcxEncodingRLE   = 1
	pcxHeaderSize    = 128
	pcxPaletteMarker = 0x0C
)

type pcxHeader struct {
	Manufacturer uint8
	Version      uint8
	Encoding     uint8
	BitsPerPixel uint8
	XMin         uint16
	YMin         uint16
	XMax         uint16
	YMax         uint16
	HDpi         uint16
	VDpi         uint16
	Palette      [48]byte
	Reserved     uint8
	Planes       uint8
	BytesPerLine uint16
	PaletteInfo  uint16
	HScreenSize  uint16
	VScreenSize  uint16
	Filler       [54]byte
}

func (h *pcxHeader) validate() error {
	if h.Manufacturer != pcxManufacturer || h.Encoding != pcxEncodingRLE {
		return binio.ErrNotThisFormat
	}
	switch h.Version {
	case 0, 2, 3, 4, 5:
	default:
		return binio.ErrNotThisFormat
	}
	if h.XMax < h.XMin || h.YMax < h.YMin {
		return binio.ErrNotThisFormat
	}

	switch {
	case h.Planes == 1 && (h.BitsPerPixel == 1 || h.BitsPerPixel == 2 || h.BitsPerPixel == 4 || h.BitsPerPixel == 8):
	case h.BitsPerPixel == 1 && h.Planes >= 2 && h.Planes <= 4:
	case h.BitsPerPixel == 8 && h.Planes == 3:
		return binio.Unsupported("pcx true colour image")
	default:
		return fmt.Errorf("pcx with %d planes of %d bits: %w", h.Planes, h.BitsPerPixel, binio.ErrUnsupportedBitWidth)
	}
	return nil
}

func (h *pcxHeader) width() int  { return int(h.XMax) - int(h.XMin) + 1 }
func (h *pcxHeader) height() int { return int(h.YMax) - int(h.YMin) + 1 }

// SniffPcx reports whether c is positioned at a PCX header. The cursor
// position is restored.
func SniffPcx(c *binio.Cursor) bool {
	pos := c.Position()
	defer c.SeekTo(pos)

	var h pcxHeader
	if err := c.ReadStruct(&h); err != nil {
		return false
	}
	err := h.validate()
	return err == nil || !errors.Is(err, binio.ErrNotThisFormat)
}

// DecodePcx decodes a run-length encoded PCX image into a single frame.
func DecodePcx(src *binio.Source) (*Sprite, error) {
	c := binio.NewCursor(src)

	var h pcxHeader
	if err := c.ReadStruct(&h); err != nil {
		if errors.Is(err, binio.ErrOutOfRange) {
			return nil, fmt.Errorf("pcx: %w", binio.ErrNotThisFormat)
		}
		return nil, err
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("pcx: %w", err)
	}

	width, height := h.width(), h.height()
	bits := uint(h.BitsPerPixel)
	stride := int(h.BytesPerLine)
	if stride < bitstream.MinimumStride(width, bits) {
		return nil, binio.Malformed("pcx line of %d bytes holds fewer than %d pixels", stride, width)
	}
	// a two byte run expands to at most 63 bytes
	if int64(stride)*int64(h.Planes)*int64(height) > 63*c.Remaining() {
		return nil, binio.Malformed("pcx image of %dx%d exceeds %d bytes of data", width, height, c.Remaining())
	}

	// the run-length stream may cross scan line boundaries
	r := rle.NewReader(c)
	line := make([]byte, stride)
	pixels := make([]byte, width*height)

	for y := 0; y < height; y++ {
		row := pixels[y*width : (y+1)*width]
		for plane := 0; plane < int(h.Planes); plane++ {
			for i := range line {
				b, err := r.ReadByte()
				if err == io.EOF {
					return nil, fmt.Errorf("pcx scan line %d plane %d: %w", y, plane, binio.ErrOutOfRange)
				}
				if err != nil {
					return nil, fmt.Errorf("pcx scan line %d plane %d: %w", y, plane, err)
				}
				line[i] = b
			}

			indices, err := bitstream.Unpack(bytes.NewReader(line), width, 1, bits, true, stride)
			if err != nil {
				return nil, fmt.Errorf("pcx scan line %d plane %d: %w", y, plane, err)
			}
			for x, v := range indices {
				row[x] |= v << (plane * int(bits))
			}
		}
	}

	return &Sprite{
		Format: "pcx",
		Width:  width,
		Height: height,
		Frames: []Frame{{
			Width:       width,
			Height:      height,
			OffsetX:     int(h.XMin),
			OffsetY:     int(h.YMin),
			Palette:     pcxPalette(src, &h),
			Transparent: NoTransparency,
			Data:        pixels,
		}},
	}, nil
}

// pcxPalette returns the trailing 256 colour palette of 8-bit images, or the
// 16 colour palette stored in the header.
func pcxPalette(src *binio.Source, h *pcxHeader) color.Palette {
	if h.BitsPerPixel == 8 && h.Planes == 1 && src.Len() >= pcxHeaderSize+769 {
		tail := binio.NewCursor(src)
		if err := tail.SeekTo(src.Len() - 769); err == nil {
			if b, err := tail.ReadBytes(769); err == nil && b[0] == pcxPaletteMarker {
				return readPalette(b[1:])
			}
		}
	}
	return readPalette(h.Palette[:])
}

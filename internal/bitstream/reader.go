// Package bitstream extracts fixed-width sub-byte indices from a byte stream.
package bitstream

import (
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// Reader returns successive w-bit unsigned values from an underlying byte
// source, refilling one byte at a time. Widths must divide 8 evenly.
type Reader struct {
	src           io.ByteReader
	width         uint
	mask          uint32
	bigEndianBits bool

	cur       byte
	remaining uint
}

// NewReader returns a Reader extracting width-bit values. With bigEndianBits
// set, the most significant bits of each byte are consumed first.
func NewReader(src io.ByteReader, width uint, bigEndianBits bool) (*Reader, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%d bits per index: %w", width, binio.ErrUnsupportedBitWidth)
	}

	return &Reader{
		src:           src,
		width:         width,
		mask:          uint32(1)<<width - 1,
		bigEndianBits: bigEndianBits,
	}, nil
}

// Width returns the number of bits per index.
func (r *Reader) Width() uint {
	return r.width
}

// ReadIndex returns the next index.
func (r *Reader) ReadIndex() (uint32, error) {
	if r.remaining == 0 {
		b, err := r.src.ReadByte()
		if err != nil {
			return 0, err
		}
		r.cur = b
		r.remaining = 8
	}

	var index uint32
	if r.bigEndianBits {
		index = uint32(r.cur>>(8-r.width)) & r.mask
		r.cur <<= r.width
	} else {
		index = uint32(r.cur) & r.mask
		r.cur >>= r.width
	}
	r.remaining -= r.width

	return index, nil
}

// Align discards the unread bits of the current byte so that the next
// ReadIndex starts on a byte boundary.
func (r *Reader) Align() {
	r.remaining = 0
}

// Unpack expands width-bit packed rows into one byte per value. Each row
// occupies stride bytes of src; stride 0 means the minimum stride for width
// values per row.
func Unpack(src io.ByteReader, width, height int, bits uint, bigEndianBits bool, stride int) ([]byte, error) {
	r, err := NewReader(src, bits, bigEndianBits)
	if err != nil {
		return nil, err
	}

	minStride := MinimumStride(width, bits)
	if stride == 0 {
		stride = minStride
	}
	if stride < minStride {
		return nil, binio.Malformed("stride %d shorter than %d bytes needed for %d values", stride, minStride, width)
	}

	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v, err := r.ReadIndex()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", y, err)
			}
			out[y*width+x] = byte(v)
		}
		r.Align()

		for pad := stride - minStride; pad > 0; pad-- {
			if _, err := src.ReadByte(); err != nil {
				return nil, fmt.Errorf("row %d padding: %w", y, err)
			}
		}
	}

	return out, nil
}

// MinimumStride returns the number of bytes holding width values of bits each.
func MinimumStride(width int, bits uint) int {
	return (width*int(bits) + 7) / 8
}

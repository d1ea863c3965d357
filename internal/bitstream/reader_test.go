package bitstream

import (
	"bytes"
	"testing"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReader struct {
	*bytes.Reader
	reads int
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.Reader.ReadByte()
	if err == nil {
		c.reads++
	}
	return b, err
}

func TestReadIndexBitOrder(t *testing.T) {
	data := []byte{0b1011_0010}

	msb, err := NewReader(bytes.NewReader(data), 2, true)
	require.NoError(t, err)
	lsb, err := NewReader(bytes.NewReader(data), 2, false)
	require.NoError(t, err)

	var gotMSB, gotLSB []uint32
	for i := 0; i < 4; i++ {
		v, err := msb.ReadIndex()
		require.NoError(t, err)
		gotMSB = append(gotMSB, v)

		v, err = lsb.ReadIndex()
		require.NoError(t, err)
		gotLSB = append(gotLSB, v)
	}

	assert.Equal(t, []uint32{0b10, 0b11, 0b00, 0b10}, gotMSB)
	assert.Equal(t, []uint32{0b10, 0b00, 0b11, 0b10}, gotLSB)
}

func TestReadIndexNibbles(t *testing.T) {
	r, err := NewReader(bytes.NewReader([]byte{0x4A, 0x01}), 4, false)
	require.NoError(t, err)

	var got []uint32
	for i := 0; i < 4; i++ {
		v, err := r.ReadIndex()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []uint32{0xA, 0x4, 0x1, 0x0}, got)
}

func TestUnsupportedWidth(t *testing.T) {
	for _, w := range []uint{0, 3, 5, 6, 7, 16} {
		_, err := NewReader(bytes.NewReader(nil), w, true)
		assert.ErrorIs(t, err, binio.ErrUnsupportedBitWidth, "width %d", w)
	}
}

func TestReadCountConsumesCeilBytes(t *testing.T) {
	for _, w := range []uint{1, 2, 4, 8} {
		for _, n := range []int{0, 1, 3, 7, 8, 9, 17} {
			src := &countingReader{Reader: bytes.NewReader(make([]byte, 64))}
			r, err := NewReader(src, w, w%2 == 0)
			require.NoError(t, err)

			for i := 0; i < n; i++ {
				_, err := r.ReadIndex()
				require.NoError(t, err)
			}

			want := (n*int(w) + 7) / 8
			assert.Equal(t, want, src.reads, "width %d, %d indices", w, n)
		}
	}
}

func TestUnpackHonoursStride(t *testing.T) {
	// 3 pixels of 4 bits per row need 2 bytes; stride 3 adds a padding byte.
	data := []byte{
		0x21, 0x03, 0xEE,
		0x54, 0x06, 0xEE,
	}

	out, err := Unpack(bytes.NewReader(data), 3, 2, 4, false, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out)

	_, err = Unpack(bytes.NewReader(data), 3, 2, 4, false, 1)
	assert.ErrorIs(t, err, binio.ErrMalformedHeader)
}

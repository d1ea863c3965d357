package binio

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorLittleEndianReads(t *testing.T) {
	c := CursorFromBytes([]byte{
		0x01,
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		'O', 'g', 'g', 'S',
		0xff, 0xff,
	})

	u8, err := c.ReadU8()
	require.NoError(t, err)
	assert.EqualValues(t, 1, u8)

	u16, err := c.ReadU16LE()
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, u16)

	u32, err := c.ReadU32LE()
	require.NoError(t, err)
	assert.EqualValues(t, 0x12345678, u32)

	tag, err := c.ReadASCII(4)
	require.NoError(t, err)
	assert.Equal(t, "OggS", tag)

	i16, err := c.ReadI16LE()
	require.NoError(t, err)
	assert.EqualValues(t, -1, i16)

	assert.EqualValues(t, 13, c.Position())
	assert.Zero(t, c.Remaining())
}

func TestCursorReadPastEnd(t *testing.T) {
	c := CursorFromBytes([]byte{1, 2, 3})
	require.NoError(t, c.SeekTo(2))

	_, err := c.ReadU16LE()
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.EqualValues(t, 2, c.Position(), "failed reads must not move the cursor")

	_, err = c.ReadByte()
	require.NoError(t, err)
	_, err = c.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCursorSeekBounds(t *testing.T) {
	c := CursorFromBytes(make([]byte, 8))

	assert.NoError(t, c.SeekTo(0))
	assert.NoError(t, c.SeekTo(8))
	assert.ErrorIs(t, c.SeekTo(9), ErrOutOfRange)
	assert.ErrorIs(t, c.SeekTo(-1), ErrOutOfRange)
}

func TestCursorPeekDoesNotAdvance(t *testing.T) {
	c := CursorFromBytes([]byte("GIF89a"))

	b, err := c.Peek(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF"), b)
	assert.Zero(t, c.Position())
}

func TestSliceSharesStorageIndependently(t *testing.T) {
	c := CursorFromBytes([]byte("0123456789"))
	require.NoError(t, c.SeekTo(7))

	s, err := c.Slice(2, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 4, s.Len())

	got, err := s.ReadASCII(4)
	require.NoError(t, err)
	assert.Equal(t, "2345", got)
	assert.EqualValues(t, 7, c.Position())

	_, err = s.ReadU8()
	assert.ErrorIs(t, err, ErrOutOfRange)

	nested, err := s.Slice(1, 2)
	require.NoError(t, err)
	got, err = nested.ReadASCII(2)
	require.NoError(t, err)
	assert.Equal(t, "34", got)
}

func TestSegmentBounds(t *testing.T) {
	src := FromBytes(make([]byte, 16))

	_, err := src.Segment(8, 9)
	assert.ErrorIs(t, err, ErrOutOfRange)

	seg, err := src.Segment(16, 0)
	require.NoError(t, err)
	assert.Zero(t, seg.Len())
}

func TestSourceReadAtShortRead(t *testing.T) {
	src := FromBytes([]byte("abcdef"))
	seg, err := src.Segment(1, 3)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := seg.ReadAt(buf, 1)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "cd", string(buf[:n]))

	_, err = seg.ReadAt(buf, 4)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

type countingCloser struct{ calls int }

func (c *countingCloser) Close() error {
	c.calls++
	return nil
}

func TestSourceCloseOnce(t *testing.T) {
	closer := &countingCloser{}
	src := NewOwnedSource(FromBytes([]byte("x")), 1, closer)

	seg, err := src.Segment(0, 1)
	require.NoError(t, err)
	require.NoError(t, seg.Close())
	assert.Zero(t, closer.calls, "segments do not own the backing resource")

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, closer.calls)
}

func TestIOFailureWrapping(t *testing.T) {
	cause := errors.New("disk on fire")
	err := IOFailure("read", cause)

	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, cause)
}

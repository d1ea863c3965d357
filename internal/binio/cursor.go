package binio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cursor is a thin positional reader over a Source. It does no buffering
// of its own; every read goes to the backing storage. All multi-byte reads
// are little-endian.
type Cursor struct {
	src *Source
	pos int64
}

// NewCursor returns a cursor positioned at the start of src.
func NewCursor(src *Source) *Cursor {
	return &Cursor{src: src}
}

// CursorFromBytes is shorthand for NewCursor(FromBytes(b)).
func CursorFromBytes(b []byte) *Cursor {
	return NewCursor(FromBytes(b))
}

// Source returns the Source the cursor reads from.
func (c *Cursor) Source() *Source {
	return c.src
}

// Len returns the length of the underlying Source.
func (c *Cursor) Len() int64 {
	return c.src.length
}

// Position returns the current read offset.
func (c *Cursor) Position() int64 {
	return c.pos
}

// Remaining returns the number of bytes between the position and the end.
func (c *Cursor) Remaining() int64 {
	return c.src.length - c.pos
}

// SeekTo moves the cursor to an absolute position in [0, Len].
func (c *Cursor) SeekTo(pos int64) error {
	if pos < 0 || pos > c.src.length {
		return fmt.Errorf("seek to %d of %d bytes: %w", pos, c.src.length, ErrOutOfRange)
	}
	c.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) error {
	return c.SeekTo(c.pos + n)
}

// Slice returns an independent cursor over [off, off+n) of the underlying
// Source. The receiver's position is not affected.
func (c *Cursor) Slice(off, n int64) (*Cursor, error) {
	seg, err := c.src.Segment(off, n)
	if err != nil {
		return nil, err
	}
	return NewCursor(seg), nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := c.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBytes reads exactly n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: %w", n, ErrOutOfRange)
	}
	buf := make([]byte, n)
	if err := c.fill(buf); err != nil {
		return nil, err
	}
	c.pos += int64(n)
	return buf, nil
}

// ReadASCII reads n bytes and returns them as a string.
func (c *Cursor) ReadASCII(n int) (string, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	var b [1]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	c.pos++
	return b[0], nil
}

func (c *Cursor) ReadU16LE() (uint16, error) {
	var b [2]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	c.pos += 2
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (c *Cursor) ReadI16LE() (int16, error) {
	v, err := c.ReadU16LE()
	return int16(v), err
}

func (c *Cursor) ReadU32LE() (uint32, error) {
	var b [4]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	c.pos += 4
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (c *Cursor) ReadI32LE() (int32, error) {
	v, err := c.ReadU32LE()
	return int32(v), err
}

func (c *Cursor) ReadU64LE() (uint64, error) {
	var b [8]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	c.pos += 8
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadByte implements io.ByteReader. At the end of the Source it returns io.EOF.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= c.src.length {
		return 0, io.EOF
	}
	return c.ReadU8()
}

// Read implements io.Reader.
func (c *Cursor) Read(p []byte) (int, error) {
	if c.pos >= c.src.length {
		return 0, io.EOF
	}
	n, err := c.src.ReadAt(p, c.pos)
	c.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// fill reads len(buf) bytes at the current position without moving it.
func (c *Cursor) fill(buf []byte) error {
	if int64(len(buf)) > c.Remaining() {
		return fmt.Errorf("read %d bytes at %d of %d: %w", len(buf), c.pos, c.src.length, ErrOutOfRange)
	}
	if _, err := c.src.ReadAt(buf, c.pos); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// ReadStruct decodes a fixed-size little-endian structure with
// encoding/binary. It fails with ErrOutOfRange, leaving the position
// unchanged, when fewer than binary.Size(v) bytes remain.
func (c *Cursor) ReadStruct(v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("read %T: not a fixed-size value", v)
	}
	buf := make([]byte, size)
	if err := c.fill(buf); err != nil {
		return err
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	c.pos += int64(size)
	return nil
}

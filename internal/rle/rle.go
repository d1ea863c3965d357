// Package rle implements the PCX run-length byte scheme: a byte with both
// top bits set carries a repeat count in its low six bits and is followed by
// the value to repeat; every other byte stands for itself.
package rle

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
)

const (
	runMask = 0xC0
	maxRun  = 0x3F
)

// Reader expands a run-length encoded byte stream.
type Reader struct {
	src     io.ByteReader
	pending uint32
	value   byte
}

func NewReader(src io.ByteReader) *Reader {
	return &Reader{src: src}
}

// ReadByte returns the next expanded byte. A remaining repeat count is kept
// across calls.
func (r *Reader) ReadByte() (byte, error) {
	if r.pending > 0 {
		r.pending--
		return r.value, nil
	}

	code, err := r.src.ReadByte()
	if err != nil {
		return 0, err
	}

	if code&runMask != runMask {
		return code, nil
	}

	value, err := r.src.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("run marker 0x%02x without value: %w", code, binio.ErrOutOfRange)
		}
		return 0, err
	}

	// a zero count never comes out of the encoder; treat it as a single byte
	count := uint32(code & maxRun)
	if count == 0 {
		count = 1
	}

	r.value = value
	r.pending = count - 1
	return value, nil
}

// Writer encodes bytes written to it. Flush must be called after the last
// byte to emit the final run.
type Writer struct {
	dst   io.ByteWriter
	last  byte
	count uint32
}

func NewWriter(dst io.ByteWriter) *Writer {
	return &Writer{dst: dst}
}

func (w *Writer) WriteByte(b byte) error {
	if w.count == 0 || w.count == maxRun || b != w.last {
		if err := w.Flush(); err != nil {
			return err
		}
		w.last = b
		w.count = 1
		return nil
	}

	w.count++
	return nil
}

// Flush emits the pending run.
func (w *Writer) Flush() error {
	if w.count == 0 {
		return nil
	}

	count := w.count
	w.count = 0

	if count > 1 || w.last&runMask == runMask {
		if err := w.dst.WriteByte(runMask | byte(count)); err != nil {
			return err
		}
	}
	return w.dst.WriteByte(w.last)
}

// Encode run-length encodes p.
func Encode(p []byte) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, b := range p {
		// bytes.Buffer never fails to write
		_ = w.WriteByte(b)
	}
	_ = w.Flush()
	return buf.Bytes()
}

// Decode expands an entire run-length encoded buffer.
func Decode(p []byte) ([]byte, error) {
	r := NewReader(bytes.NewReader(p))
	out := make([]byte, 0, len(p))
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
}

package binio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Source is a view over the byte range [base, base+length) of a larger
// randomly accessible backing store. Segments share the backing store and
// never copy.
type Source struct {
	data   io.ReaderAt
	base   int64
	length int64

	// only the root source owns the closer; segments leave it nil
	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewSource returns a Source covering the first size bytes of r.
func NewSource(r io.ReaderAt, size int64) *Source {
	return &Source{data: r, length: size}
}

// NewOwnedSource is like NewSource, but Close also closes c.
func NewOwnedSource(r io.ReaderAt, size int64, c io.Closer) *Source {
	return &Source{data: r, length: size, closer: c}
}

// FromBytes returns a Source backed by b.
func FromBytes(b []byte) *Source {
	return &Source{data: bytes.NewReader(b), length: int64(len(b))}
}

// Len returns the length of the range covered by s.
func (s *Source) Len() int64 {
	return s.length
}

// Segment returns a Source covering [off, off+n) of s without copying.
func (s *Source) Segment(off, n int64) (*Source, error) {
	if off < 0 || n < 0 || off > s.length || n > s.length-off {
		return nil, fmt.Errorf("segment [%d, %d) of %d bytes: %w", off, off+n, s.length, ErrOutOfRange)
	}
	return &Source{data: s.data, base: s.base + off, length: n}, nil
}

// ReadAt implements io.ReaderAt over the range covered by s. Reads that
// start beyond the end fail with ErrOutOfRange; reads that run past the end
// return the available bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > s.length {
		return 0, fmt.Errorf("read at %d of %d bytes: %w", off, s.length, ErrOutOfRange)
	}

	want := len(p)
	if rem := s.length - off; int64(want) > rem {
		want = int(rem)
	}

	n, err := s.data.ReadAt(p[:want], s.base+off)
	if n < want {
		if err == nil || err == io.EOF {
			return n, io.ErrUnexpectedEOF
		}
		return n, IOFailure("read", err)
	}

	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes copies the whole range covered by s into a new slice.
func (s *Source) Bytes() ([]byte, error) {
	buf := make([]byte, s.length)
	if _, err := s.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// Close releases the owned backing resource, if any. Calling Close more
// than once is a no-op.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

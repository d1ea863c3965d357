package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// BufferFunc decodes one framing unit from src and pushes the result onto
// q. It reports exhausted once no further data can be produced.
type BufferFunc func(src *binio.Cursor, q *Queue) (exhausted bool, err error)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("stream closed")

// Adapter is a forward-only reader that invokes its BufferFunc on demand.
// Decoding is strictly sequential: each call to the BufferFunc sees the
// state left by the previous one.
type Adapter struct {
	src    *binio.Cursor
	fill   BufferFunc
	queue  Queue
	length int64

	produced  int64
	exhausted bool
	err       error
	closed    bool
	closer    io.Closer
}

// New returns an adapter decoding from src. length is the total number of
// decoded bytes the format declares; a negative length means unknown.
func New(src *binio.Cursor, length int64, fill BufferFunc) *Adapter {
	return &Adapter{src: src, fill: fill, length: length}
}

// WithCloser arranges for c to be closed when the adapter is closed.
func (a *Adapter) WithCloser(c io.Closer) *Adapter {
	a.closer = c
	return a
}

// Length returns the declared decoded length, or -1 when unknown.
func (a *Adapter) Length() int64 {
	if a.length < 0 {
		return -1
	}
	return a.length
}

// CanSeek reports false; decoding depends on every preceding sample.
func (a *Adapter) CanSeek() bool {
	return false
}

// Read fills p with decoded bytes, decoding more blocks as needed. It
// returns io.EOF once the decoder is exhausted and the queue is empty, and
// never returns more than Length bytes in total.
func (a *Adapter) Read(p []byte) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}

	if a.length >= 0 {
		if rem := a.length - a.produced; int64(len(p)) > rem {
			p = p[:rem]
		}
	}
	if len(p) == 0 {
		if a.length >= 0 && a.produced >= a.length {
			return 0, io.EOF
		}
		return 0, nil
	}

	for a.queue.Len() < len(p) && !a.exhausted && a.err == nil {
		before, pos := a.queue.Len(), a.src.Position()

		exhausted, err := a.fill(a.src, &a.queue)
		if err != nil {
			a.err = err
			break
		}
		a.exhausted = exhausted

		if !exhausted && a.queue.Len() == before && a.src.Position() == pos {
			a.err = fmt.Errorf("decoder made no progress at offset %d: %w", pos, binio.ErrMalformedHeader)
		}
	}

	n := a.queue.Pop(p)
	a.produced += int64(n)

	if n > 0 {
		return n, nil
	}
	if a.err != nil {
		return 0, a.err
	}
	return 0, io.EOF
}

// Close releases the adapter. Calling Close more than once is a no-op.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.queue = Queue{}
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Package stream turns block-oriented decoders into forward-only readers
// that decode lazily as bytes are requested.
package stream

// Queue is a FIFO of decoded bytes.
type Queue struct {
	buf  []byte
	head int
}

// Len returns the number of queued bytes.
func (q *Queue) Len() int {
	return len(q.buf) - q.head
}

// Push appends bytes to the tail.
func (q *Queue) Push(p ...byte) {
	q.buf = append(q.buf, p...)
}

// PushInt16 appends a little-endian 16-bit sample.
func (q *Queue) PushInt16(v int16) {
	q.buf = append(q.buf, byte(v), byte(uint16(v)>>8))
}

// Pop moves up to len(p) bytes from the head into p.
func (q *Queue) Pop(p []byte) int {
	n := copy(p, q.buf[q.head:])
	q.head += n

	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	} else if q.head > 4096 && q.head > len(q.buf)/2 {
		// reclaim the consumed prefix
		q.buf = append(q.buf[:0], q.buf[q.head:]...)
		q.head = 0
	}

	return n
}

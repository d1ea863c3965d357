package audio

import (
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/adpcm"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/stream"
)

const (
	audFlagStereo = 0x1
	audFlag16Bit  = 0x2

	audFormatWestwood = 1
	audFormatIma      = 99

	audChunkID = 0x0000DEAF
)

type audHeader struct {
	SampleRate uint16
	DataSize   int32
	OutputSize int32
	Flags      uint8
	Format     uint8
}

type audChunk struct {
	CompressedSize uint16
	OutputSize     uint16
	ID             uint32
}

func readAudHeader(c *binio.Cursor) (audHeader, error) {
	var h audHeader
	if err := c.ReadStruct(&h); err != nil {
		return h, err
	}
	if h.SampleRate == 0 {
		return h, binio.Malformed("aud sample rate is zero")
	}
	if h.Flags > audFlagStereo|audFlag16Bit {
		return h, binio.Malformed("aud flags 0x%02x", h.Flags)
	}
	if h.Format != audFormatWestwood && h.Format != audFormatIma {
		return h, binio.Malformed("aud format %d", h.Format)
	}
	if h.DataSize < 0 || h.OutputSize < 0 {
		return h, binio.Malformed("aud sizes %d/%d", h.DataSize, h.OutputSize)
	}
	if int64(h.DataSize) > c.Remaining() {
		return h, binio.Malformed("aud data size %d exceeds %d remaining bytes", h.DataSize, c.Remaining())
	}
	return h, nil
}

// raw reports whether the payload is stored without chunk framing.
func (h audHeader) raw() bool {
	return h.DataSize == h.OutputSize
}

// SniffAud reports whether c is positioned at an AUD header. The cursor
// position is restored.
func SniffAud(c *binio.Cursor) bool {
	pos := c.Position()
	defer c.SeekTo(pos)

	h, err := readAudHeader(c)
	if err != nil {
		return false
	}
	if h.DataSize == 0 || h.raw() {
		return true
	}

	var chunk audChunk
	return c.ReadStruct(&chunk) == nil && chunk.ID == audChunkID
}

// SoundLength returns the playback duration in seconds computed from the
// header alone. The cursor position is restored.
func SoundLength(c *binio.Cursor) (float64, error) {
	pos := c.Position()
	defer c.SeekTo(pos)

	h, err := readAudHeader(c)
	if err != nil {
		return 0, err
	}
	return h.length(), nil
}

func (h audHeader) length() float64 {
	samples := int64(h.OutputSize)
	if h.Flags&audFlagStereo != 0 {
		samples /= 2
	}
	if h.Flags&audFlag16Bit != 0 {
		samples /= 2
	}
	return float64(samples) / float64(h.SampleRate)
}

// OpenAud parses the AUD header at the start of src. Bytes that do not form
// a valid AUD header yield ErrNotThisFormat.
func OpenAud(src *binio.Source) (*Sound, error) {
	c := binio.NewCursor(src)
	if !SniffAud(c) {
		return nil, fmt.Errorf("aud: %w", binio.ErrNotThisFormat)
	}
	h, err := readAudHeader(c)
	if err != nil {
		return nil, fmt.Errorf("reading aud header: %w", err)
	}

	channels := 1
	if h.Flags&audFlagStereo != 0 {
		channels = 2
	}
	bits := 8
	if h.Format == audFormatIma {
		bits = 16
	}

	payload, err := src.Segment(c.Position(), int64(h.DataSize))
	if err != nil {
		return nil, err
	}

	s := &Sound{
		Format:        "aud",
		SampleRate:    int(h.SampleRate),
		SampleBits:    bits,
		Channels:      channels,
		LengthSeconds: h.length(),
		src:           src,
	}
	s.open = func() (io.ReadCloser, error) {
		c := binio.NewCursor(payload)
		out := int64(h.OutputSize)
		switch {
		case h.raw():
			return stream.New(c, out, copyFill(out)), nil
		case h.Format == audFormatIma:
			d := &audDecoder{remaining: int64(h.DataSize), outputSize: out}
			return stream.New(c, out, d.fillIma), nil
		default:
			d := &audDecoder{remaining: int64(h.DataSize), outputSize: out}
			return stream.New(c, out, d.fillWestwood), nil
		}
	}

	return s, nil
}

// audDecoder carries the decode state of one PCM stream. IMA state runs on
// across chunk boundaries; Westwood chunks each restart from 0x80.
type audDecoder struct {
	remaining  int64
	outputSize int64
	produced   int64
	ima        adpcm.ImaState
}

func (d *audDecoder) nextChunk(src *binio.Cursor) (audChunk, []byte, error) {
	var chunk audChunk
	if err := src.ReadStruct(&chunk); err != nil {
		return chunk, nil, fmt.Errorf("reading aud chunk header: %w", err)
	}
	if chunk.ID != audChunkID {
		return chunk, nil, binio.Malformed("aud chunk id 0x%08x at offset %d", chunk.ID, src.Position()-4)
	}
	if int64(chunk.CompressedSize) > src.Remaining() || 8+int64(chunk.CompressedSize) > d.remaining {
		return chunk, nil, binio.Malformed("aud chunk of %d bytes exceeds remaining data", chunk.CompressedSize)
	}

	data, err := src.ReadBytes(int(chunk.CompressedSize))
	if err != nil {
		return chunk, nil, err
	}
	d.remaining -= 8 + int64(chunk.CompressedSize)
	return chunk, data, nil
}

func (d *audDecoder) fillIma(src *binio.Cursor, q *stream.Queue) (bool, error) {
	if d.remaining <= 0 {
		return true, nil
	}

	_, data, err := d.nextChunk(src)
	if err != nil {
		return true, err
	}

	for _, b := range data {
		q.PushInt16(d.ima.DecodeNibble(b))
		d.produced += 2

		// the final byte may carry a single sample
		if d.produced < d.outputSize {
			q.PushInt16(d.ima.DecodeNibble(b >> 4))
			d.produced += 2
		}
	}

	return d.remaining <= 0, nil
}

func (d *audDecoder) fillWestwood(src *binio.Cursor, q *stream.Queue) (bool, error) {
	if d.remaining <= 0 {
		return true, nil
	}

	chunk, data, err := d.nextChunk(src)
	if err != nil {
		return true, err
	}

	if chunk.CompressedSize == chunk.OutputSize {
		q.Push(data...)
	} else {
		out, err := adpcm.DecodeWestwoodChunk(data, int(chunk.OutputSize), nil)
		if err != nil {
			return true, fmt.Errorf("decoding westwood chunk: %w", err)
		}
		q.Push(out...)
	}

	return d.remaining <= 0, nil
}

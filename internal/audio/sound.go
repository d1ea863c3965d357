// Package audio decodes the sound formats shipped with the Westwood games
// and their remasters: AUD, WAV and Ogg. Every decoder exposes a lazily
// decoded PCM stream plus the metadata a mixer needs to play it.
package audio

import (
	"io"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/stream"
)

// Sound is a decoded-stream factory plus playback metadata.
type Sound struct {
	Format        string  `yaml:"format"`
	SampleRate    int     `yaml:"sample_rate"`
	SampleBits    int     `yaml:"sample_bits"`
	Channels      int     `yaml:"channels"`
	LengthSeconds float64 `yaml:"length_seconds"`
	Bitrate       int     `yaml:"bitrate,omitempty"`

	src  *binio.Source
	open func() (io.ReadCloser, error)
}

// PCM returns a new forward-only stream of interleaved little-endian
// samples. Each call starts decoding from the beginning.
func (s *Sound) PCM() (io.ReadCloser, error) {
	return s.open()
}

// Close releases the backing source.
func (s *Sound) Close() error {
	return s.src.Close()
}

// copyFill returns a BufferFunc that moves up to n raw bytes from the
// source in blocks.
func copyFill(n int64) stream.BufferFunc {
	const block = 4096
	return func(src *binio.Cursor, q *stream.Queue) (bool, error) {
		want := min(int64(block), n, src.Remaining())
		if want <= 0 {
			return true, nil
		}
		b, err := src.ReadBytes(int(want))
		if err != nil {
			return true, err
		}
		q.Push(b...)
		n -= want
		return n <= 0 || src.Remaining() == 0, nil
	}
}

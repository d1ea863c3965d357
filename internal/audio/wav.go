package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Mailaender/OpenRA/internal/adpcm"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/stream"
)

const (
	wavFormatPCM = 0x0001
	wavFormatIma = 0x0011
)

type riffHeader struct {
	ID   [4]byte
	Size uint32
	Form [4]byte
}

type riffChunk struct {
	ID   [4]byte
	Size uint32
}

type wavFormat struct {
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// SniffWav reports whether c is positioned at a RIFF/WAVE header. The
// cursor position is restored.
func SniffWav(c *binio.Cursor) bool {
	pos := c.Position()
	defer c.SeekTo(pos)

	var h riffHeader
	if err := c.ReadStruct(&h); err != nil {
		return false
	}
	return string(h.ID[:]) == "RIFF" && string(h.Form[:]) == "WAVE"
}

// OpenWav parses a RIFF/WAVE file holding PCM or IMA ADPCM samples.
func OpenWav(src *binio.Source) (*Sound, error) {
	c := binio.NewCursor(src)
	if !SniffWav(c) {
		return nil, fmt.Errorf("wav: %w", binio.ErrNotThisFormat)
	}
	if err := c.Skip(12); err != nil {
		return nil, err
	}

	var (
		format    wavFormat
		haveFmt   bool
		data      *binio.Source
		factCount int64 = -1
	)

	for data == nil {
		var chunk riffChunk
		if err := c.ReadStruct(&chunk); err != nil {
			return nil, fmt.Errorf("reading wav chunk header: %w", err)
		}
		size := int64(chunk.Size)
		start := c.Position()

		switch string(chunk.ID[:]) {
		case "fmt ":
			if err := c.ReadStruct(&format); err != nil {
				return nil, fmt.Errorf("reading wav format: %w", err)
			}
			haveFmt = true
		case "fact":
			n, err := c.ReadU32LE()
			if err != nil {
				return nil, fmt.Errorf("reading wav fact: %w", err)
			}
			factCount = int64(n)
		case "data":
			// truncated files are common; clamp to what is there
			size = min(size, c.Remaining())
			seg, err := src.Segment(start, size)
			if err != nil {
				return nil, err
			}
			data = seg
			continue
		}

		// chunks are word aligned
		if err := c.SeekTo(start + size + size&1); err != nil {
			return nil, fmt.Errorf("skipping wav chunk %q: %w", chunk.ID[:], err)
		}
	}

	if !haveFmt {
		return nil, binio.Malformed("wav data chunk precedes fmt chunk")
	}
	if format.Channels == 0 || format.SampleRate == 0 {
		return nil, binio.Malformed("wav with %d channels at %d Hz", format.Channels, format.SampleRate)
	}

	s := &Sound{
		Format:     "wav",
		SampleRate: int(format.SampleRate),
		Channels:   int(format.Channels),
		src:        src,
	}

	switch format.Format {
	case wavFormatPCM:
		if format.BitsPerSample != 8 && format.BitsPerSample != 16 {
			return nil, binio.Unsupported("wav pcm with %d bits per sample", format.BitsPerSample)
		}
		s.SampleBits = int(format.BitsPerSample)
		frame := int64(format.Channels) * int64(format.BitsPerSample/8)
		s.LengthSeconds = float64(data.Len()/frame) / float64(format.SampleRate)
		s.open = func() (io.ReadCloser, error) {
			return stream.New(binio.NewCursor(data), data.Len(), copyFill(data.Len())), nil
		}

	case wavFormatIma:
		if format.BitsPerSample != 4 {
			return nil, binio.Unsupported("wav ima adpcm with %d bits per sample", format.BitsPerSample)
		}
		if int(format.BlockAlign) <= 4*int(format.Channels) {
			return nil, binio.Malformed("wav ima block align %d", format.BlockAlign)
		}
		s.SampleBits = 16
		frames := imaFrames(data.Len(), int64(format.BlockAlign), int64(format.Channels))
		if factCount >= 0 && factCount < frames {
			frames = factCount
		}
		s.LengthSeconds = float64(frames) / float64(format.SampleRate)
		s.open = func() (io.ReadCloser, error) {
			d := &imaBlockDecoder{channels: int(format.Channels), blockAlign: int(format.BlockAlign)}
			return stream.New(binio.NewCursor(data), frames*int64(format.Channels)*2, d.fill), nil
		}

	default:
		return nil, binio.Unsupported("wav format tag 0x%04x", format.Format)
	}

	return s, nil
}

// imaFrames returns the number of sample frames held by size bytes of IMA
// blocks.
func imaFrames(size, blockAlign, channels int64) int64 {
	perBlock := func(n int64) int64 {
		if n < 4*channels {
			return 0
		}
		return 1 + (n-4*channels)*2/channels
	}
	return size/blockAlign*perBlock(blockAlign) + perBlock(size%blockAlign)
}

// imaBlockDecoder decodes one IMA ADPCM block per call. Each block opens
// with a four byte preamble per channel, followed by interleaved four byte
// words of eight nibbles per channel.
type imaBlockDecoder struct {
	channels   int
	blockAlign int
}

func (d *imaBlockDecoder) fill(src *binio.Cursor, q *stream.Queue) (bool, error) {
	n := min(int64(d.blockAlign), src.Remaining())
	if n < 4*int64(d.channels) {
		return true, nil
	}
	block, err := src.ReadBytes(int(n))
	if err != nil {
		return true, err
	}

	states := make([]adpcm.ImaState, d.channels)
	for ch := range states {
		pre := block[4*ch:]
		states[ch] = adpcm.ImaState{
			Sample: int32(int16(binary.LittleEndian.Uint16(pre))),
			Index:  int32(pre[2]),
		}
		if states[ch].Index > 88 {
			return true, binio.Malformed("wav ima step index %d", states[ch].Index)
		}
		q.PushInt16(int16(states[ch].Sample))
	}

	body := block[4*d.channels:]
	group := 4 * d.channels
	samples := make([]int16, 8)
	for g := 0; g+group <= len(body); g += group {
		out := make([][]int16, d.channels)
		for ch := 0; ch < d.channels; ch++ {
			word := body[g+4*ch : g+4*ch+4]
			for i, b := range word {
				samples[2*i], samples[2*i+1] = states[ch].DecodeByte(b)
			}
			out[ch] = append([]int16(nil), samples...)
		}
		for i := 0; i < 8; i++ {
			for ch := 0; ch < d.channels; ch++ {
				q.PushInt16(out[ch][i])
			}
		}
	}

	return src.Remaining() == 0, nil
}

// WriteWAV encodes the PCM stream of s as a canonical RIFF/WAVE file.
func WriteWAV(w io.Writer, s *Sound) error {
	pcm, err := s.PCM()
	if err != nil {
		return err
	}
	defer pcm.Close()

	data, err := io.ReadAll(pcm)
	if err != nil {
		return fmt.Errorf("decoding %s samples: %w", s.Format, err)
	}

	blockAlign := uint16(s.Channels * s.SampleBits / 8)
	header := struct {
		Riff   riffHeader
		Fmt    riffChunk
		Format wavFormat
		Data   riffChunk
	}{
		Riff: riffHeader{ID: [4]byte{'R', 'I', 'F', 'F'}, Size: uint32(36 + len(data)), Form: [4]byte{'W', 'A', 'V', 'E'}},
		Fmt:  riffChunk{ID: [4]byte{'f', 'm', 't', ' '}, Size: 16},
		Format: wavFormat{
			Format:        wavFormatPCM,
			Channels:      uint16(s.Channels),
			SampleRate:    uint32(s.SampleRate),
			ByteRate:      uint32(s.SampleRate) * uint32(blockAlign),
			BlockAlign:    blockAlign,
			BitsPerSample: uint16(s.SampleBits),
		},
		Data: riffChunk{ID: [4]byte{'d', 'a', 't', 'a'}, Size: uint32(len(data))},
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing wav header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	return nil
}

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/stream"
)

const opusRate = 48000

type oggPageHeader struct {
	Capture  [4]byte
	Version  uint8
	Type     uint8
	Granule  int64
	Serial   uint32
	Sequence uint32
	Checksum uint32
	Segments uint8
}

// oggPage is a parsed page header together with the position of its body.
type oggPage struct {
	header   oggPageHeader
	lacing   []byte
	bodyAt   int64
	bodySize int64
}

// SniffOgg reports whether c is positioned at an Ogg page. The cursor
// position is restored.
func SniffOgg(c *binio.Cursor) bool {
	b, err := c.Peek(4)
	return err == nil && string(b) == "OggS"
}

func readOggPage(c *binio.Cursor) (oggPage, error) {
	var p oggPage
	if err := c.ReadStruct(&p.header); err != nil {
		return p, err
	}
	if string(p.header.Capture[:]) != "OggS" {
		return p, binio.Malformed("ogg capture pattern at offset %d", c.Position()-27)
	}
	if p.header.Version != 0 {
		return p, binio.Unsupported("ogg stream structure version %d", p.header.Version)
	}

	lacing, err := c.ReadBytes(int(p.header.Segments))
	if err != nil {
		return p, err
	}
	p.lacing = lacing
	p.bodyAt = c.Position()
	for _, l := range lacing {
		p.bodySize += int64(l)
	}

	if err := c.Skip(p.bodySize); err != nil {
		return p, fmt.Errorf("ogg page body: %w", err)
	}
	return p, nil
}

// firstPacket returns the first packet starting on page p.
func (p oggPage) firstPacket(c *binio.Cursor) ([]byte, error) {
	var n int64
	for _, l := range p.lacing {
		n += int64(l)
		if l < 255 {
			break
		}
	}
	sub, err := c.Slice(p.bodyAt, n)
	if err != nil {
		return nil, err
	}
	return sub.ReadBytes(int(n))
}

type oggInfo struct {
	codec    string
	channels int
	rate     int
	bitrate  int
	preSkip  int64
	granule  int64
}

func readOggInfo(src *binio.Source) (oggInfo, error) {
	var info oggInfo
	c := binio.NewCursor(src)

	first, err := readOggPage(c)
	if err != nil {
		return info, fmt.Errorf("reading first ogg page: %w", err)
	}
	id, err := first.firstPacket(binio.NewCursor(src))
	if err != nil {
		return info, fmt.Errorf("reading ogg identification packet: %w", err)
	}

	switch {
	case len(id) >= 30 && id[0] == 1 && string(id[1:7]) == "vorbis":
		info.codec = "vorbis"
		info.channels = int(id[11])
		info.rate = int(binary.LittleEndian.Uint32(id[12:]))
		info.bitrate = int(int32(binary.LittleEndian.Uint32(id[20:])))
	case len(id) >= 19 && string(id[:8]) == "OpusHead":
		info.codec = "opus"
		info.channels = int(id[9])
		info.preSkip = int64(binary.LittleEndian.Uint16(id[10:]))
		info.rate = opusRate
	default:
		return info, binio.Unsupported("ogg stream without vorbis or opus identification header")
	}
	if info.channels == 0 || info.rate == 0 {
		return info, binio.Malformed("ogg %s with %d channels at %d Hz", info.codec, info.channels, info.rate)
	}

	// the last page with a granule position carries the total sample count
	info.granule = first.header.Granule
	for c.Remaining() > 0 {
		p, err := readOggPage(c)
		if err != nil {
			break
		}
		if p.header.Granule >= 0 {
			info.granule = p.header.Granule
		}
	}

	return info, nil
}

// OpenOgg parses the headers of an Ogg Vorbis or Ogg Opus stream. Only
// Vorbis streams can be decoded to PCM.
func OpenOgg(src *binio.Source) (*Sound, error) {
	if !SniffOgg(binio.NewCursor(src)) {
		return nil, fmt.Errorf("ogg: %w", binio.ErrNotThisFormat)
	}

	info, err := readOggInfo(src)
	if err != nil {
		return nil, err
	}

	frames := max(info.granule-info.preSkip, 0)
	s := &Sound{
		Format:        "ogg/" + info.codec,
		SampleRate:    info.rate,
		SampleBits:    16,
		Channels:      info.channels,
		LengthSeconds: float64(frames) / float64(info.rate),
		Bitrate:       info.bitrate,
		src:           src,
	}

	if info.codec != "vorbis" {
		s.open = func() (io.ReadCloser, error) {
			return nil, binio.Unsupported("ogg %s decoding", info.codec)
		}
		return s, nil
	}

	s.open = func() (io.ReadCloser, error) {
		r, err := oggvorbis.NewReader(io.NewSectionReader(src, 0, src.Len()))
		if err != nil {
			return nil, fmt.Errorf("opening vorbis stream: %w", err)
		}

		length := int64(-1)
		if n := r.Length(); n > 0 {
			length = n * int64(r.Channels()) * 2
		}

		buf := make([]float32, r.Channels()*max(r.SampleRate()/5, 1))
		fill := func(_ *binio.Cursor, q *stream.Queue) (bool, error) {
			n, err := r.Read(buf)
			for _, v := range buf[:n] {
				q.PushInt16(floatToInt16(v))
			}
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			if err != nil {
				return true, fmt.Errorf("decoding vorbis: %w", err)
			}
			if n == 0 {
				return true, nil
			}
			return false, nil
		}

		return stream.New(binio.CursorFromBytes(nil), length, fill), nil
	}

	return s, nil
}

func floatToInt16(v float32) int16 {
	return int16(math.Round(float64(max(-1, min(1, v))) * math.MaxInt16))
}

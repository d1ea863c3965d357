package adpcm

import (
	"fmt"

	"github.com/Mailaender/OpenRA/internal/binio"
)

var (
	wsTable2bit = [4]int32{-2, -1, 0, 1}
	wsTable4bit = [16]int32{
		-9, -8, -6, -5, -4, -3, -2, -1,
		0, 1, 2, 3, 4, 5, 6, 8,
	}
)

// WestwoodInitialSample is the predictor value every Westwood chunk starts from.
const WestwoodInitialSample = 0x80

// WestwoodState is the running 8-bit unsigned sample of the Westwood decoder.
type WestwoodState struct {
	Sample int32
}

// NewWestwoodState returns a state primed with WestwoodInitialSample.
func NewWestwoodState() WestwoodState {
	return WestwoodState{Sample: WestwoodInitialSample}
}

// Decode4 applies a 4-bit delta code.
func (s *WestwoodState) Decode4(nibble byte) byte {
	s.Sample = clamp(s.Sample+wsTable4bit[nibble&0x0F], 0, 255)
	return byte(s.Sample)
}

// Decode2 applies a 2-bit delta code.
func (s *WestwoodState) Decode2(code byte) byte {
	s.Sample = clamp(s.Sample+wsTable2bit[code&0x03], 0, 255)
	return byte(s.Sample)
}

const (
	wsMode2Bit = iota
	wsMode4Bit
	wsModeRaw
	wsModeRepeat
)

// DecodeWestwoodChunk decodes one compressed chunk and appends at most
// outputSize unsigned 8-bit samples to dst. Every command byte carries a
// mode in its top two bits and a count in its low six.
func DecodeWestwoodChunk(src []byte, outputSize int, dst []byte) ([]byte, error) {
	state := NewWestwoodState()
	start := len(dst)
	i := 0

	next := func() (byte, error) {
		if i >= len(src) {
			return 0, fmt.Errorf("westwood chunk: read past %d compressed bytes: %w", len(src), binio.ErrOutOfRange)
		}
		b := src[i]
		i++
		return b, nil
	}
	full := func() bool { return len(dst)-start >= outputSize }

	for !full() && i < len(src) {
		cmd, _ := next()
		mode := cmd >> 6
		count := int(cmd & 0x3F)

		switch mode {
		case wsMode2Bit:
			for n := 0; n <= count && !full(); n++ {
				code, err := next()
				if err != nil {
					return dst, err
				}
				for shift := 0; shift < 8 && !full(); shift += 2 {
					dst = append(dst, state.Decode2(code>>shift))
				}
			}

		case wsMode4Bit:
			for n := 0; n <= count && !full(); n++ {
				code, err := next()
				if err != nil {
					return dst, err
				}
				dst = append(dst, state.Decode4(code))
				if !full() {
					dst = append(dst, state.Decode4(code>>4))
				}
			}

		case wsModeRaw:
			if count&0x20 != 0 {
				// 5-bit signed delta packed into the count field
				delta := int32(int8(byte(count)<<3) >> 3)
				state.Sample = clamp(state.Sample+delta, 0, 255)
				dst = append(dst, byte(state.Sample))
				continue
			}
			for n := 0; n <= count && !full(); n++ {
				b, err := next()
				if err != nil {
					return dst, err
				}
				state.Sample = int32(b)
				dst = append(dst, b)
			}

		case wsModeRepeat:
			for n := 0; n <= count && !full(); n++ {
				dst = append(dst, byte(state.Sample))
			}
		}
	}

	return dst, nil
}

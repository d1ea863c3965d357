// Package adpcm implements the two 4-bit differential audio codecs found in
// Westwood assets: the Westwood 8-bit delta scheme and standard IMA ADPCM.
package adpcm

var imaIndexAdjust = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// ImaState is the running predictor of an IMA ADPCM decoder.
type ImaState struct {
	Sample int32
	Index  int32
}

// DecodeNibble decodes the low four bits of nibble and advances the state.
func (s *ImaState) DecodeNibble(nibble byte) int16 {
	nibble &= 0x0F

	if s.Index < 0 {
		s.Index = 0
	} else if s.Index > 88 {
		s.Index = 88
	}

	step := imaStepTable[s.Index]
	diff := step >> 3
	if nibble&1 != 0 {
		diff += step >> 2
	}
	if nibble&2 != 0 {
		diff += step >> 1
	}
	if nibble&4 != 0 {
		diff += step
	}
	if nibble&8 != 0 {
		diff = -diff
	}

	s.Sample = clamp(s.Sample+diff, -32768, 32767)

	s.Index += imaIndexAdjust[nibble]
	if s.Index < 0 {
		s.Index = 0
	} else if s.Index > 88 {
		s.Index = 88
	}

	return int16(s.Sample)
}

// DecodeByte decodes both nibbles of b, low nibble first.
func (s *ImaState) DecodeByte(b byte) (first, second int16) {
	first = s.DecodeNibble(b)
	second = s.DecodeNibble(b >> 4)
	return first, second
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

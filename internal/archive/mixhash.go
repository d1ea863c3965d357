package archive

import (
	"hash/crc32"
	"strings"
)

// ClassicHash is the filename id used by Tiberian Dawn and Red Alert mix
// files: the upper-cased name, NUL padded to whole words, folded by
// rotate-left-then-add.
func ClassicHash(name string) uint32 {
	b := []byte(strings.ToUpper(name))
	for len(b)%4 != 0 {
		b = append(b, 0)
	}

	var result uint32
	for i := 0; i < len(b); i += 4 {
		word := uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24
		result = (result<<1 | result>>31) + word
	}
	return result
}

// CRCHash is the filename id used by Tiberian Sun mix files: a CRC-32 of
// the upper-cased name, padded to whole words with the remainder length
// followed by repeats of the first byte of the final partial word.
func CRCHash(name string) uint32 {
	b := []byte(strings.ToUpper(name))
	l := len(b)
	if rem := l & 3; rem != 0 {
		whole := l &^ 3
		b = append(b, byte(rem))
		for i := 0; i < 3-rem; i++ {
			b = append(b, b[whole])
		}
	}
	return crc32.ChecksumIEEE(b)
}

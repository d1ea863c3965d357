package font

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGlyph struct {
	width, height, yOffset int
	packed                 []byte
}

func buildFont(format uint8, glyphs []testGlyph) []byte {
	n := len(glyphs)
	offsets := headerSize
	widths := offsets + 2*n
	heights := widths + n
	fontData := heights + 2*n

	var body bytes.Buffer
	var offsetList, widthList, heightList []byte
	for _, g := range glyphs {
		off := fontData + body.Len()
		if format == formatV4 {
			off -= fontData
		}
		offsetList = binary.LittleEndian.AppendUint16(offsetList, uint16(off))
		widthList = append(widthList, byte(g.width))
		heightList = append(heightList, byte(g.yOffset), byte(g.height))
		body.Write(g.packed)
	}

	total := fontData + body.Len()
	h := header{
		Size:        uint16(total),
		Format:      format,
		OffsetsList: uint16(offsets),
		WidthsList:  uint16(widths),
		FontData:    uint16(fontData),
		HeightsList: uint16(heights),
		LastSymbol:  uint8(n - 1),
		Height:      8,
		Width:       6,
	}
	if format == formatV4 {
		h.LastSymbol = 0
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, h)
	buf.Write(offsetList)
	buf.Write(widthList)
	buf.Write(heightList)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

var twoGlyphs = []testGlyph{
	{width: 3, height: 2, packed: []byte{0x21, 0x03, 0xF0, 0x0E}},
	{width: 1, height: 1, yOffset: 1, packed: []byte{0x07}},
}

func TestDecodeV3(t *testing.T) {
	data := buildFont(formatV3, twoGlyphs)
	require.True(t, Sniff(binio.CursorFromBytes(data)))

	f, err := Decode(binio.FromBytes(data))
	require.NoError(t, err)
	assert.Equal(t, 3, f.Version)
	assert.Equal(t, 8, f.Height)
	require.Len(t, f.Glyphs, 2)

	assert.Equal(t, Glyph{Width: 3, Height: 2, Data: []byte{1, 2, 3, 0, 15, 14}}, f.Glyphs[0])
	assert.Equal(t, Glyph{Width: 1, Height: 1, YOffset: 1, Data: []byte{7}}, f.Glyphs[1])
}

func TestDecodeV4DerivesSymbolCount(t *testing.T) {
	f, err := Decode(binio.FromBytes(buildFont(formatV4, twoGlyphs)))
	require.NoError(t, err)
	assert.Equal(t, 4, f.Version)
	require.Len(t, f.Glyphs, 2)
	assert.Equal(t, []byte{7}, f.Glyphs[1].Data)
}

func TestGlyphUsesCodePage437(t *testing.T) {
	glyphs := make([]testGlyph, 0x83)
	for i := range glyphs {
		glyphs[i] = testGlyph{width: 1, height: 1, packed: []byte{byte(i % 16)}}
	}
	f, err := Decode(binio.FromBytes(buildFont(formatV3, glyphs)))
	require.NoError(t, err)

	g, ok := f.Glyph('A')
	require.True(t, ok)
	assert.Equal(t, []byte{0x41 % 16}, g.Data)

	g, ok = f.Glyph('é')
	require.True(t, ok)
	assert.Equal(t, []byte{0x82 % 16}, g.Data)

	_, ok = f.Glyph('€')
	assert.False(t, ok)

	// encodable but beyond the last symbol
	_, ok = f.Glyph('ÿ')
	assert.False(t, ok)
}

func TestDecodeRejectsSizeMismatch(t *testing.T) {
	data := append(buildFont(formatV3, twoGlyphs), 0)
	assert.False(t, Sniff(binio.CursorFromBytes(data)))

	_, err := Decode(binio.FromBytes(data))
	assert.ErrorIs(t, err, binio.ErrNotThisFormat)
}

func TestDecodeGlyphOutOfBounds(t *testing.T) {
	data := buildFont(formatV3, []testGlyph{{width: 4, height: 4, packed: []byte{0x11}}})

	_, err := Decode(binio.FromBytes(data))
	assert.ErrorIs(t, err, binio.ErrMalformedHeader)
}

func TestAtlas(t *testing.T) {
	f, err := Decode(binio.FromBytes(buildFont(formatV3, twoGlyphs)))
	require.NoError(t, err)

	img := f.Atlas(16)
	assert.Equal(t, 16*3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, uint8(15), img.ColorIndexAt(1, 1))
	assert.Equal(t, uint8(7), img.ColorIndexAt(3, 1))
}

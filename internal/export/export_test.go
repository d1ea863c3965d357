package export

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/format"
)

// mono 16-bit IMA AUD with one chunk of two bytes
var audBytes = []byte{
	0x22, 0x56, 0x0A, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x02, 0x63,
	0x02, 0x00, 0x08, 0x00, 0xAF, 0xDE, 0x00, 0x00,
	0x07, 0xF0,
}

// same header, but the chunk claims more data than the file holds
var brokenAudBytes = []byte{
	0x22, 0x56, 0x0A, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x02, 0x63,
	0xC8, 0x00, 0x08, 0x00, 0xAF, 0xDE, 0x00, 0x00,
	0x07, 0xF0,
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	img.Pix = []byte{0, 1, 1, 0}
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testPackage(t *testing.T) archive.Package {
	t.Helper()
	files := []struct {
		name string
		data []byte
	}{
		{"maps/", nil},
		{"sounds/intro.aud", audBytes},
		{"bad.aud", brokenAudBytes},
		{"art/cursor.gif", gifBytes(t)},
		{"rules.ini", []byte("[General]\n")},
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	z, err := archive.TryOpenZip(binio.FromBytes(buf.Bytes()), "test.zip")
	require.NoError(t, err)
	return z
}

func TestExportEntriesConverts(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := NewExporter(format.NewDispatcher(nil), testPackage(t), fsys, "out")

	var progress []int
	result, err := e.ExportEntries(
		[]string{"sounds/intro.aud", "art/cursor.gif", "rules.ini", "bad.aud", "maps/", "missing.txt"},
		func(current, total int, _ string) {
			assert.Equal(t, 6, total)
			progress = append(progress, current)
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"out/sounds@intro.wav", "out/art@cursor.png", "out/rules.ini"}, result.Written)
	assert.Equal(t, []string{"bad.aud", "maps/", "missing.txt"}, result.Skipped)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress)

	wav, err := afero.ReadFile(fsys, "out/sounds@intro.wav")
	require.NoError(t, err)
	require.Len(t, wav, 44+8)
	assert.Equal(t, []byte("RIFF"), wav[:4])
	assert.Equal(t, []byte{0x0B, 0x00, 0x0D, 0x00, 0x0E, 0x00, 0xF7, 0xFF}, wav[44:])

	pngData, err := afero.ReadFile(fsys, "out/art@cursor.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	ini, err := afero.ReadFile(fsys, "out/rules.ini")
	require.NoError(t, err)
	assert.Equal(t, "[General]\n", string(ini))

	exists, err := afero.Exists(fsys, "out/bad.wav")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExportEntriesRaw(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := NewExporter(format.NewDispatcher(nil), testPackage(t), fsys, "raw")
	e.Raw = true

	result, err := e.ExportEntries([]string{"sounds/intro.aud"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/sounds@intro.aud"}, result.Written)

	data, err := afero.ReadFile(fsys, "raw/sounds@intro.aud")
	require.NoError(t, err)
	assert.Equal(t, audBytes, data)
}

func TestExportNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	result, err := NewExporter(format.NewDispatcher(nil), testPackage(t), fsys, "out").ExportEntries(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Written)

	exists, err := afero.DirExists(fsys, "out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExportWriteFailureAborts(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := NewExporter(format.NewDispatcher(nil), testPackage(t), fsys, "out").ExportEntries([]string{"rules.ini"}, nil)
	assert.Error(t, err)
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "a@b@c.shp", sanitizePath("a/b/c.shp"))
	assert.Equal(t, "a@intro.wav", withExtension("a/intro.aud", ".wav"))
	assert.Equal(t, "noext.png", withExtension("noext", ".png"))
}

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/catalog"
	"github.com/Mailaender/OpenRA/internal/format"
)

var audBytes = []byte{
	0x22, 0x56,
	0x0A, 0x00, 0x00, 0x00,
	0x08, 0x00, 0x00, 0x00,
	0x02, 0x63,
	0x02, 0x00, 0x08, 0x00, 0xAF, 0xDE, 0x00, 0x00,
	0x07, 0xF0,
}

func tdMix(id uint32, data []byte) []byte {
	out := binary.LittleEndian.AppendUint16(nil, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = binary.LittleEndian.AppendUint32(out, id)
	out = binary.LittleEndian.AppendUint32(out, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...)
}

func modZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{"maps/", nil},
		{"inner.mix", tdMix(archive.ClassicHash("rules.ini"), []byte("[Basic]"))},
		{"intro.aud", audBytes},
		{"readme.txt", []byte("hi")},
	} {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestScanPackageRecordsNestedContainers(t *testing.T) {
	ctx := context.Background()

	cat, err := catalog.NewCatalog(catalog.DefaultOptions(filepath.Join(t.TempDir(), "assets.db")))
	require.NoError(t, err)
	defer cat.Close()
	require.NoError(t, cat.CreateSchema(ctx))

	d := format.NewDispatcher(&format.Options{MixNames: []string{"rules.ini"}})
	p, err := d.TryOpenPackage(binio.FromBytes(modZip(t)), "mod.zip")
	require.NoError(t, err)
	defer p.Close()

	stats := &ScanStats{}
	require.NoError(t, scanPackage(ctx, cat, d, p, "mod.zip", stats))
	assert.Equal(t, 2, stats.Packages)
	assert.EqualValues(t, 4, stats.Entries)

	entries, err := cat.Entries(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Entry{
		{Package: "mod.zip", Name: "inner.mix", Size: 25, Kind: "mix"},
		{Package: "mod.zip", Name: "intro.aud", Size: int64(len(audBytes)), Kind: "aud"},
		{Package: "mod.zip", Name: "readme.txt", Size: 2, Kind: "unknown"},
		{Package: "mod.zip/inner.mix", Name: "rules.ini", Size: 7, Kind: "unknown"},
	}, entries)
}

func TestOpenOrCreateZip(t *testing.T) {
	saved := osFs
	osFs = afero.NewMemMapFs()
	t.Cleanup(func() { osFs = saved })

	m, err := openOrCreateZip("/new.oramod")
	require.NoError(t, err)
	require.NoError(t, m.Update("mod.yaml", []byte("Metadata:")))
	require.NoError(t, m.Close())

	m, err = openOrCreateZip("/new.oramod")
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, []string{"mod.yaml"}, m.Contents())
}

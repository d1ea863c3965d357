package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blowfish"

	"github.com/Mailaender/OpenRA/internal/binio"
)

type zipFile struct {
	name   string
	method uint16
	data   []byte
}

func buildZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openZip(t *testing.T, image []byte) *Zip {
	t.Helper()
	z, err := TryOpenZip(binio.FromBytes(image), "test.zip")
	require.NoError(t, err)
	return z
}

func readAll(t *testing.T, src *binio.Source) []byte {
	t.Helper()
	b, err := src.Bytes()
	require.NoError(t, err)
	return b
}

var zipOpener = OpenerFunc(func(src *binio.Source, name string) (Package, error) {
	z, err := TryOpenZip(src, name)
	if err != nil {
		return nil, err
	}
	return z, nil
})

func TestZipOpenEntry(t *testing.T) {
	z := openZip(t, buildZip(t,
		zipFile{name: "readme.txt", method: zip.Deflate, data: []byte("hi")},
		zipFile{name: "raw.bin", method: zip.Store, data: []byte{1, 2, 3}},
	))
	defer z.Close()

	assert.Equal(t, []string{"raw.bin", "readme.txt"}, z.Contents())
	assert.True(t, z.Contains("readme.txt"))

	src, ok, err := z.Open("readme.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), readAll(t, src))

	src, ok, err = z.Open("raw.bin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, readAll(t, src))
}

func TestZipOpenIsRepeatable(t *testing.T) {
	z := openZip(t, buildZip(t, zipFile{name: "a.txt", method: zip.Deflate, data: []byte("same bytes")}))

	first, ok, err := z.Open("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := z.Open("a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, readAll(t, first), readAll(t, second))
}

func TestZipMissingEntry(t *testing.T) {
	z := openZip(t, buildZip(t, zipFile{name: "a.txt", data: []byte("x")}))

	src, ok, err := z.Open("b.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, src)
	assert.False(t, z.Contains("b.txt"))
}

func TestZipNotThisFormat(t *testing.T) {
	_, err := TryOpenZip(binio.FromBytes([]byte("OggS not a zip")), "x")
	assert.ErrorIs(t, err, binio.ErrNotThisFormat)

	assert.True(t, SniffZip(binio.CursorFromBytes(buildZip(t))))
}

func TestZipTruncatedDirectory(t *testing.T) {
	image := buildZip(t, zipFile{name: "a.txt", data: []byte("hello")})
	_, err := TryOpenZip(binio.FromBytes(image[:len(image)-10]), "broken.zip")
	assert.ErrorIs(t, err, binio.ErrMalformedHeader)
}

func TestFolderListsDirectChildren(t *testing.T) {
	z := openZip(t, buildZip(t,
		zipFile{name: "a/", method: zip.Store},
		zipFile{name: "a/b", data: []byte("b")},
		zipFile{name: "a/c", data: []byte("c")},
		zipFile{name: "a/b/d", data: []byte("d")},
	))

	p, ok, err := z.OpenPackage("a", zipOpener)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "a", p.Name())
	assert.Equal(t, []string{"b", "c"}, p.Contents())
	assert.True(t, p.Contains("b/d"))

	src, ok, err := p.Open("c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("c"), readAll(t, src))
	assert.NoError(t, p.Close())
}

func TestOpenNestedPackage(t *testing.T) {
	inner := buildZip(t, zipFile{name: "inner.txt", method: zip.Deflate, data: []byte("nested")})
	z := openZip(t, buildZip(t,
		zipFile{name: "inner.zip", method: zip.Deflate, data: inner},
		zipFile{name: "readme.txt", data: []byte("hi")},
	))

	p, ok, err := z.OpenPackage("inner.zip", zipOpener)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"inner.txt"}, p.Contents())

	_, ok, err = z.OpenPackage("readme.txt", zipOpener)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = z.OpenPackage("missing", zipOpener)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexRejectsDuplicates(t *testing.T) {
	_, err := NewIndex([]Entry{{Name: "a"}, {Name: "b"}, {Name: "a"}})
	assert.ErrorIs(t, err, binio.ErrMalformedHeader)

	idx, err := NewIndex([]Entry{{Name: "b", Length: 2}, {Name: "a", Length: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, idx.Contents())

	e, ok := idx.Lookup("b")
	require.True(t, ok)
	assert.EqualValues(t, 2, e.Length)
}

func TestMutableZipUpdateAndDelete(t *testing.T) {
	fsys := afero.NewMemMapFs()

	m, err := CreateMutableZip(fsys, "mod.zip")
	require.NoError(t, err)
	assert.Empty(t, m.Contents())

	require.NoError(t, m.Update("rules.yaml", []byte("one")))
	require.NoError(t, m.Update("readme.txt", []byte("hi")))
	require.NoError(t, m.Update("rules.yaml", []byte("two")))

	src, ok, err := m.Open("rules.yaml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("two"), readAll(t, src))

	reopened, err := OpenMutableZip(fsys, "mod.zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.txt", "rules.yaml"}, reopened.Contents())

	require.NoError(t, reopened.Delete("rules.yaml"))
	assert.False(t, reopened.Contains("rules.yaml"))
	require.NoError(t, reopened.Delete("never-there"))

	src, ok, err = reopened.Open("readme.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), readAll(t, src))

	require.NoError(t, reopened.Close())
	require.NoError(t, m.Close())
}

func TestMutableZipRejectsBadNames(t *testing.T) {
	m, err := CreateMutableZip(afero.NewMemMapFs(), "x.zip")
	require.NoError(t, err)
	assert.Error(t, m.Update("", []byte("x")))
	assert.Error(t, m.Update("/abs", []byte("x")))
}

func TestOpenMutableZipMissingFile(t *testing.T) {
	_, err := OpenMutableZip(afero.NewMemMapFs(), "absent.zip")
	assert.ErrorIs(t, err, binio.ErrIOFailure)
}

func TestMixHashes(t *testing.T) {
	assert.Equal(t, uint32(0x41), ClassicHash("a"))
	assert.Equal(t, uint32(0x888684C7), ClassicHash("ABCDE"))
	assert.Equal(t, ClassicHash("ABCDE"), ClassicHash("abcde"))

	assert.Equal(t, crc32.ChecksumIEEE([]byte("ABCDE\x01EE")), CRCHash("abcde"))
	assert.Equal(t, crc32.ChecksumIEEE([]byte("ABCD")), CRCHash("abcd"))
	assert.Equal(t, uint32(0), CRCHash(""))
}

type mixFile struct {
	id   uint32
	data []byte
}

// mixTable returns the count/size/entries block and the body it indexes.
func mixTable(files ...mixFile) ([]byte, []byte) {
	var body []byte
	table := binary.LittleEndian.AppendUint16(nil, uint16(len(files)))
	for _, f := range files {
		body = append(body, f.data...)
	}
	table = binary.LittleEndian.AppendUint32(table, uint32(len(body)))

	var offset uint32
	for _, f := range files {
		table = binary.LittleEndian.AppendUint32(table, f.id)
		table = binary.LittleEndian.AppendUint32(table, offset)
		table = binary.LittleEndian.AppendUint32(table, uint32(len(f.data)))
		offset += uint32(len(f.data))
	}
	return table, body
}

func buildTDMix(files ...mixFile) []byte {
	table, body := mixTable(files...)
	return append(table, body...)
}

func buildRAMix(flags uint32, files ...mixFile) []byte {
	table, body := mixTable(files...)
	out := binary.LittleEndian.AppendUint32(nil, flags)
	out = append(out, table...)
	out = append(out, body...)
	if flags&mixFlagChecksum != 0 {
		out = append(out, make([]byte, 20)...)
	}
	return out
}

func buildEncryptedMix(t *testing.T, files ...mixFile) []byte {
	t.Helper()
	keySource := make([]byte, mixKeySourceSize)
	for i := range keySource {
		keySource[i] = byte(i*7 + 3)
	}
	fish, err := blowfish.NewCipher(mixBlowfishKey(keySource))
	require.NoError(t, err)

	table, body := mixTable(files...)
	for len(table)%blowfish.BlockSize != 0 {
		table = append(table, 0)
	}
	for i := 0; i < len(table); i += blowfish.BlockSize {
		block := table[i : i+blowfish.BlockSize]
		swapWords(block)
		fish.Encrypt(block, block)
		swapWords(block)
	}

	out := binary.LittleEndian.AppendUint32(nil, mixFlagEncrypted)
	out = append(out, keySource...)
	out = append(out, table...)
	return append(out, body...)
}

func buildLocalMixDatabase(names ...string) []byte {
	out := make([]byte, lmdNamesOffset)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(names)))
	for _, n := range names {
		out = append(out, n...)
		out = append(out, 0)
	}
	return out
}

func openMix(t *testing.T, image []byte, names ...string) *Mix {
	t.Helper()
	require.True(t, SniffMix(binio.CursorFromBytes(image)))
	m, err := TryOpenMix(binio.FromBytes(image), "test.mix", names)
	require.NoError(t, err)
	return m
}

func TestTDMixResolvesCandidateNames(t *testing.T) {
	m := openMix(t, buildTDMix(
		mixFile{id: ClassicHash("rules.ini"), data: []byte("[General]")},
		mixFile{id: 0xDEADBEEF, data: []byte{1, 2}},
	), "rules.ini", "unused.shp")

	assert.False(t, m.Encrypted())
	assert.Equal(t, []string{"DEADBEEF", "rules.ini"}, m.Contents())

	src, ok, err := m.Open("rules.ini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("[General]"), readAll(t, src))

	src, ok, err = m.Open("DEADBEEF")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, readAll(t, src))
}

func TestMixOpenFallsBackToHash(t *testing.T) {
	m := openMix(t, buildTDMix(mixFile{id: ClassicHash("conquer.eng"), data: []byte("text")}))

	assert.Equal(t, []string{fmt.Sprintf("%08X", ClassicHash("conquer.eng"))}, m.Contents())
	assert.True(t, m.Contains("CONQUER.ENG"))

	src, ok, err := m.Open("conquer.eng")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("text"), readAll(t, src))

	_, ok, err = m.Open("other.eng")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMixLocalDatabase(t *testing.T) {
	m := openMix(t, buildRAMix(mixFlagChecksum,
		mixFile{id: ClassicHash(LocalMixDatabase), data: buildLocalMixDatabase("speech.aud", "absent.shp")},
		mixFile{id: CRCHash("speech.aud"), data: []byte("audio")},
	))

	assert.Equal(t, []string{LocalMixDatabase, "speech.aud"}, m.Contents())

	src, ok, err := m.Open("speech.aud")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("audio"), readAll(t, src))
}

func TestEncryptedMix(t *testing.T) {
	m := openMix(t, buildEncryptedMix(t,
		mixFile{id: ClassicHash("a.shp"), data: []byte("first")},
		mixFile{id: ClassicHash("b.shp"), data: []byte("second")},
	), "a.shp", "b.shp")

	assert.True(t, m.Encrypted())
	assert.Equal(t, []string{"a.shp", "b.shp"}, m.Contents())

	src, ok, err := m.Open("b.shp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), readAll(t, src))
}

func TestMixEntryPastBody(t *testing.T) {
	image := buildTDMix(mixFile{id: 1, data: []byte("abcd")})
	// grow the entry length beyond the declared body
	binary.LittleEndian.PutUint32(image[14:], 5)

	_, err := TryOpenMix(binio.FromBytes(image), "bad.mix", nil)
	assert.ErrorIs(t, err, binio.ErrMalformedHeader)
}

func TestMixNotThisFormat(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("hello world"),
		{0, 0, 0x10, 0},
		{},
	} {
		assert.False(t, SniffMix(binio.CursorFromBytes(data)))
		_, err := TryOpenMix(binio.FromBytes(data), "x", nil)
		assert.ErrorIs(t, err, binio.ErrNotThisFormat)
	}
}

func TestEmptyTDMix(t *testing.T) {
	data := buildTDMix()
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0}, data)

	assert.True(t, SniffMix(binio.CursorFromBytes(data)))
	m, err := TryOpenMix(binio.FromBytes(data), "empty.mix", nil)
	require.NoError(t, err)
	assert.Empty(t, m.Contents())

	// trailing bytes past an empty body are not a mix
	_, err = TryOpenMix(binio.FromBytes(append(data, 1, 2, 3)), "x", nil)
	assert.ErrorIs(t, err, binio.ErrNotThisFormat)
}

func TestMixSniffRestoresPosition(t *testing.T) {
	c := binio.CursorFromBytes(buildTDMix(mixFile{id: 1, data: []byte("x")}))
	require.True(t, SniffMix(c))
	assert.EqualValues(t, 0, c.Position())
}

func TestFSWalk(t *testing.T) {
	z := openZip(t, buildZip(t,
		zipFile{name: "maps/", method: zip.Store},
		zipFile{name: "maps/a.bin", method: zip.Deflate, data: []byte("aaaa")},
		zipFile{name: "maps/sub/b.bin", data: []byte("b")},
		zipFile{name: "readme.txt", data: []byte("hi")},
	))
	fsys := FS(z)

	var walked []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		walked = append(walked, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".", "maps", "maps/a.bin", "maps/sub", "maps/sub/b.bin", "readme.txt"}, walked)

	data, err := fs.ReadFile(fsys, "maps/a.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), data)

	info, err := fs.Stat(fsys, "maps/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "sub", info.Name())

	entries, err := fs.ReadDir(fsys, "maps")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	fi, err := entries[0].Info()
	require.NoError(t, err)
	assert.EqualValues(t, 4, fi.Size())
}

func TestFSMissingAndInvalid(t *testing.T) {
	fsys := FS(openZip(t, buildZip(t, zipFile{name: "a.txt", data: []byte("x")})))

	_, err := fsys.Open("b.txt")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = fsys.Open("../a.txt")
	assert.True(t, errors.Is(err, fs.ErrInvalid))
}

func TestFSReadDirPaging(t *testing.T) {
	fsys := FS(openZip(t, buildZip(t,
		zipFile{name: "a", data: []byte("1")},
		zipFile{name: "b", data: []byte("2")},
	)))

	f, err := fsys.Open(".")
	require.NoError(t, err)
	dir := f.(fs.ReadDirFile)

	page, err := dir.ReadDir(1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	page, err = dir.ReadDir(1)
	require.NoError(t, err)
	assert.Equal(t, "b", page[0].Name())
	_, err = dir.ReadDir(1)
	assert.Equal(t, io.EOF, err)
}

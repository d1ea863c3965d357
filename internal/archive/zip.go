package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/Mailaender/OpenRA/internal/binio"
)

const (
	zipLocalHeaderSig = 0x04034b50
	zipEndOfDirSig    = 0x06054b50
)

// SniffZip reports whether c is positioned at a zip local file header, or
// at the end-of-directory record of an empty archive. The position is
// restored.
func SniffZip(c *binio.Cursor) bool {
	b, err := c.Peek(4)
	if err != nil {
		return false
	}
	sig := binary.LittleEndian.Uint32(b)
	return sig == zipLocalHeaderSig || sig == zipEndOfDirSig
}

// Zip is a read-only zip archive.
type Zip struct {
	name  string
	src   *binio.Source
	index *Index
	files map[string]*zip.File
}

// TryOpenZip opens src as a zip archive. It fails with
// binio.ErrNotThisFormat without reading past the signature when src does
// not start with one.
func TryOpenZip(src *binio.Source, name string) (*Zip, error) {
	if !SniffZip(binio.NewCursor(src)) {
		return nil, fmt.Errorf("zip: %w", binio.ErrNotThisFormat)
	}

	r, err := zip.NewReader(src, src.Len())
	if err != nil {
		return nil, fmt.Errorf("%w: reading zip directory of %s: %w", binio.ErrMalformedHeader, name, err)
	}

	entries := make([]Entry, 0, len(r.File))
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		off, err := f.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: locating %s: %w", binio.ErrMalformedHeader, f.Name, err)
		}
		entries = append(entries, Entry{Name: f.Name, Offset: off, Length: int64(f.UncompressedSize64)})
		files[f.Name] = f
	}

	index, err := NewIndex(entries)
	if err != nil {
		return nil, fmt.Errorf("zip %s: %w", name, err)
	}

	return &Zip{name: name, src: src, index: index, files: files}, nil
}

func (z *Zip) Name() string {
	return z.name
}

func (z *Zip) Contents() []string {
	return z.index.Contents()
}

func (z *Zip) Contains(name string) bool {
	_, ok := z.files[name]
	return ok
}

// Index returns the directory of the archive.
func (z *Zip) Index() *Index {
	return z.index
}

// Open returns the payload of name. Stored entries are views into the
// archive; compressed entries are inflated into memory.
func (z *Zip) Open(name string) (*binio.Source, bool, error) {
	f, ok := z.files[name]
	if !ok {
		return nil, false, nil
	}

	if f.Method == zip.Store {
		e, _ := z.index.Lookup(name)
		seg, err := z.src.Segment(e.Offset, int64(f.CompressedSize64))
		if err != nil {
			return nil, false, fmt.Errorf("zip entry %s: %w", name, err)
		}
		return seg, true, nil
	}

	data, err := readZipFile(f)
	if err != nil {
		return nil, false, err
	}
	return binio.FromBytes(data), true, nil
}

func (z *Zip) OpenPackage(name string, opener Opener) (Package, bool, error) {
	return openNested(z, name, opener)
}

// Close releases the backing source.
func (z *Zip) Close() error {
	return z.src.Close()
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating zip entry %s: %w", binio.ErrMalformedHeader, f.Name, err)
	}
	return data, nil
}

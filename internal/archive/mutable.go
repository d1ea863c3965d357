package archive

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// MutableZip is a zip archive held fully in memory and written back to its
// backing file after every change. It has a single writer; callers must
// serialise Update and Delete.
type MutableZip struct {
	*Zip

	fs    afero.Fs
	path  string
	image []byte
}

// OpenMutableZip loads the archive at path for editing.
func OpenMutableZip(fsys afero.Fs, path string) (*MutableZip, error) {
	image, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, binio.IOFailure("reading "+path, err)
	}

	z, err := TryOpenZip(binio.FromBytes(image), path)
	if err != nil {
		return nil, err
	}
	return &MutableZip{Zip: z, fs: fsys, path: path, image: image}, nil
}

// CreateMutableZip writes an empty archive to path and opens it for editing.
func CreateMutableZip(fsys afero.Fs, path string) (*MutableZip, error) {
	m := &MutableZip{fs: fsys, path: path}
	if err := m.rebuild(nil, "", nil); err != nil {
		return nil, err
	}
	return m, nil
}

// Update replaces or inserts the entry name and rewrites the archive.
func (m *MutableZip) Update(name string, data []byte) error {
	if name == "" || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid entry name %q", name)
	}
	if data == nil {
		data = []byte{}
	}
	return m.rebuild(m.Zip, name, data)
}

// Delete removes the entry name, if present, and rewrites the archive.
func (m *MutableZip) Delete(name string) error {
	if !m.Contains(name) {
		return nil
	}
	return m.rebuild(m.Zip, name, nil)
}

// rebuild serialises every entry of old except name, then name itself
// when data is non-nil, and persists the new image.
func (m *MutableZip) rebuild(old *Zip, name string, data []byte) error {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	if old != nil {
		for _, e := range old.index.Entries() {
			if e.Name == name {
				continue
			}
			f := old.files[e.Name]
			payload, err := readZipFile(f)
			if err != nil {
				return err
			}
			if err := writeZipEntry(w, f.Name, f.Method, f.Modified, payload); err != nil {
				return err
			}
		}
	}

	if data != nil {
		if err := writeZipEntry(w, name, zip.Deflate, time.Now(), data); err != nil {
			return err
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing zip %s: %w", m.path, err)
	}

	image := buf.Bytes()
	z, err := TryOpenZip(binio.FromBytes(image), m.path)
	if err != nil {
		return fmt.Errorf("reopening rebuilt zip %s: %w", m.path, err)
	}
	m.Zip, m.image = z, image

	// a failed write leaves a truncated file behind
	if err := afero.WriteFile(m.fs, m.path, image, 0o644); err != nil {
		return binio.IOFailure("writing "+m.path, err)
	}
	return nil
}

func writeZipEntry(w *zip.Writer, name string, method uint16, modified time.Time, data []byte) error {
	if strings.HasSuffix(name, "/") {
		method = zip.Store
	}
	fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modified})
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if len(data) > 0 {
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the in-memory image.
func (m *MutableZip) Close() error {
	m.image = nil
	return m.Zip.Close()
}

package archive

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// packageFS exposes a package as a read-only fs.FS. Directories are
// derived from the "/" separators in entry names.
type packageFS struct {
	pkg   Package
	names []string
}

// FS returns an io/fs view of p. The view reads the contents of p once;
// later changes to a mutable package are not reflected.
func FS(p Package) fs.FS {
	names := p.Contents()
	slices.Sort(names)
	return &packageFS{pkg: p, names: names}
}

func (p *packageFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return &packageDir{fs: p, prefix: ""}, nil
	}

	names := p.names
	idx := sort.SearchStrings(names, name)
	if idx < len(names) && names[idx] == name {
		src, ok, err := p.pkg.Open(name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		if ok {
			return &packageFile{name: name, src: src, r: io.NewSectionReader(src, 0, src.Len())}, nil
		}
	}

	dirName := name + "/"
	idx += sort.SearchStrings(names[idx:], dirName)
	if idx < len(names) && strings.HasPrefix(names[idx], dirName) {
		return &packageDir{fs: p, prefix: dirName, offset: idx}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// size looks the entry up in the package index when there is one, and
// falls back to opening it.
func (p *packageFS) size(name string) int64 {
	if indexed, ok := p.pkg.(interface{ Index() *Index }); ok {
		if e, ok := indexed.Index().Lookup(name); ok {
			return e.Length
		}
	}
	src, ok, err := p.pkg.Open(name)
	if err != nil || !ok {
		return 0
	}
	defer src.Close()
	return src.Len()
}

type packageFile struct {
	name string
	src  *binio.Source
	r    *io.SectionReader
}

func (f *packageFile) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *packageFile) ReadAt(p []byte, off int64) (int, error) {
	return f.r.ReadAt(p, off)
}

func (f *packageFile) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

func (f *packageFile) Close() error {
	return f.src.Close()
}

func (f *packageFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(f.name), size: f.src.Len()}, nil
}

type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (fi fileInfo) Name() string { return fi.name }
func (fi fileInfo) Size() int64  { return fi.size }
func (fi fileInfo) IsDir() bool  { return fi.dir }
func (fi fileInfo) Sys() any     { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return 0o555 | fs.ModeDir
	}
	return 0o444
}

func (fi fileInfo) ModTime() time.Time {
	return time.Unix(0, 0)
}

func (fi fileInfo) Type() fs.FileMode {
	return fi.Mode().Type()
}

func (fi fileInfo) Info() (fs.FileInfo, error) {
	return fi, nil
}

type packageDir struct {
	fs     *packageFS
	prefix string
	offset int
}

func (d *packageDir) Read(p []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.prefix, Err: fmt.Errorf("is a directory")}
}

func (d *packageDir) Close() error {
	return nil
}

func (d *packageDir) Stat() (fs.FileInfo, error) {
	name := "."
	if d.prefix != "" {
		name = path.Base(d.prefix)
	}
	return fileInfo{name: name, dir: true}, nil
}

func (d *packageDir) ReadDir(n int) ([]fs.DirEntry, error) {
	names := d.fs.names
	prefixLen := len(d.prefix)

	dirents := []fs.DirEntry{}
	for d.offset < len(names) {
		name := names[d.offset]
		if !strings.HasPrefix(name, d.prefix) {
			break
		}

		rest := name[prefixLen:]
		if rest == "" {
			// the marker of this directory
			d.offset++
			continue
		}

		if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
			dir := name[:prefixLen+slashIdx]
			dirents = append(dirents, fileInfo{name: path.Base(dir), dir: true})
			d.offset += sort.SearchStrings(names[d.offset:], dir+"/\xff")
		} else {
			dirents = append(dirents, fileInfo{name: rest, size: d.fs.size(name)})
			d.offset++
		}

		if n > 0 && len(dirents) >= n {
			return dirents, nil
		}
	}

	if n > 0 && len(dirents) == 0 {
		return dirents, io.EOF
	}
	return dirents, nil
}

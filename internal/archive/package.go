package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// Package is an opened container.
type Package interface {
	// Name returns the name the package was opened under.
	Name() string
	// Contents returns every entry name.
	Contents() []string
	Contains(name string) bool
	// Open returns the payload of an entry. A missing entry is reported
	// with ok == false and a nil error.
	Open(name string) (src *binio.Source, ok bool, err error)
	// OpenPackage resolves name as a nested container, trying name first
	// and then the directory marker name+"/".
	OpenPackage(name string, opener Opener) (Package, bool, error)
	Close() error
}

// Opener turns a byte source into a package, failing with
// binio.ErrNotThisFormat when the bytes are not a known container.
type Opener interface {
	TryOpenPackage(src *binio.Source, name string) (Package, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(src *binio.Source, name string) (Package, error)

func (f OpenerFunc) TryOpenPackage(src *binio.Source, name string) (Package, error) {
	return f(src, name)
}

func openNested(p Package, name string, opener Opener) (Package, bool, error) {
	src, ok, err := p.Open(name)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", name, err)
	}
	if ok && !strings.HasSuffix(name, "/") {
		child, err := opener.TryOpenPackage(src, name)
		switch {
		case err == nil:
			return child, true, nil
		case errors.Is(err, binio.ErrNotThisFormat):
			src.Close()
			return nil, false, nil
		default:
			src.Close()
			return nil, false, fmt.Errorf("opening %s as package: %w", name, err)
		}
	}

	folder := strings.TrimSuffix(name, "/")
	if p.Contains(folder + "/") {
		return NewFolder(p, folder), true, nil
	}
	return nil, false, nil
}

// Folder is a view of the entries below a directory marker of its parent.
type Folder struct {
	parent Package
	name   string
}

// NewFolder returns the folder name of parent. The parent keeps ownership
// of the backing source.
func NewFolder(parent Package, name string) *Folder {
	return &Folder{parent: parent, name: strings.TrimSuffix(name, "/")}
}

func (f *Folder) Name() string {
	return f.name
}

// Contents returns the direct children of the folder.
func (f *Folder) Contents() []string {
	return directChildren(f.parent.Contents(), f.name)
}

func (f *Folder) Contains(name string) bool {
	return f.parent.Contains(f.name + "/" + name)
}

func (f *Folder) Open(name string) (*binio.Source, bool, error) {
	return f.parent.Open(f.name + "/" + name)
}

func (f *Folder) OpenPackage(name string, opener Opener) (Package, bool, error) {
	return openNested(f, name, opener)
}

// Close is a no-op; the parent owns the data.
func (f *Folder) Close() error {
	return nil
}

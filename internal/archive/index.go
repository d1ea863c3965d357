// Package archive reads the containers game assets ship in: standard zip
// archives (read-only or editable), Westwood mix files, and virtual folders
// nested inside either.
package archive

import (
	"sort"
	"strings"

	"github.com/Mailaender/OpenRA/internal/binio"
)

// Entry locates one named payload inside a container. A name ending in "/"
// is a directory marker and carries no data.
type Entry struct {
	Name   string
	Offset int64
	Length int64
}

// IsDir reports whether e is a directory marker.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Index is an immutable directory of entries sorted by name.
type Index struct {
	entries []Entry
}

// NewIndex builds an index from entries. Duplicate names are rejected.
func NewIndex(entries []Entry) (*Index, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, binio.Malformed("duplicate entry %q", sorted[i].Name)
		}
	}

	return &Index{entries: sorted}, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns the entries in name order.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Lookup finds an entry by exact name.
func (idx *Index) Lookup(name string) (Entry, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Name >= name
	})
	if i < len(idx.entries) && idx.entries[i].Name == name {
		return idx.entries[i], true
	}
	return Entry{}, false
}

// Contents returns every entry name in order.
func (idx *Index) Contents() []string {
	names := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		names[i] = e.Name
	}
	return names
}

// Children returns the direct children of folder, relative to it.
func (idx *Index) Children(folder string) []string {
	return directChildren(idx.Contents(), folder)
}

// directChildren returns the names below folder+"/" that have exactly one
// path segment left. Subfolder markers keep their trailing slash.
func directChildren(names []string, folder string) []string {
	prefix := strings.TrimSuffix(folder, "/") + "/"

	var out []string
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		if segment := strings.TrimSuffix(rest, "/"); segment != "" && !strings.Contains(segment, "/") {
			out = append(out, rest)
		}
	}
	return out
}

// Package format recognises asset files by their leading bytes and opens
// them with the matching container or codec.
package format

import (
	"fmt"
	"strings"
)

// Kind identifies a recognised file format.
type Kind int

const (
	Unknown Kind = iota
	Zip
	Mix
	Ogg
	Wav
	Aud
	Gif
	Pcx
	Font
)

var kindNames = map[Kind]string{
	Unknown: "unknown",
	Zip:     "zip",
	Mix:     "mix",
	Ogg:     "ogg",
	Wav:     "wav",
	Aud:     "aud",
	Gif:     "gif",
	Pcx:     "pcx",
	Font:    "font",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("unknown format %q", s)
}

// IsPackage reports whether assets of this kind are containers.
func (k Kind) IsPackage() bool {
	return k == Zip || k == Mix
}

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// validateNames ensures mix filenames are non-empty and free of NUL bytes,
// which the local mix database uses as a terminator
func validateNames(names []string) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("mix name cannot be empty")
		}
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("invalid mix name '%s': contains a NUL byte", name)
		}
	}
	return nil
}

// CandidateNames returns the configured mix names followed by those listed
// in MixNamesFile, one per line. Blank lines and lines starting with '#'
// are ignored.
func (c *Config) CandidateNames(fsys afero.Fs) ([]string, error) {
	names := append([]string{}, c.MixNames...)
	if c.MixNamesFile == "" {
		return names, nil
	}

	data, err := afero.ReadFile(fsys, c.MixNamesFile)
	if err != nil {
		return nil, fmt.Errorf("reading mix names file: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mix names file: %w", err)
	}

	if err := validateNames(names); err != nil {
		return nil, err
	}
	return names, nil
}

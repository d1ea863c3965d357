// Package export writes container entries to disk, converting decodable
// assets into formats common tools can read.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/format"
)

// AssetLoader opens container entries as decoded assets
type AssetLoader interface {
	OpenEntry(p archive.Package, name string) (*format.Asset, bool, error)
}

// Exporter handles exporting entries of a package to an output directory
type Exporter struct {
	loader    AssetLoader
	pkg       archive.Package
	fs        afero.Fs
	outputDir string

	// Raw disables conversion; every entry is copied verbatim.
	Raw bool
}

// NewExporter creates a new entry exporter
func NewExporter(loader AssetLoader, pkg archive.Package, fs afero.Fs, outputDir string) *Exporter {
	return &Exporter{
		loader:    loader,
		pkg:       pkg,
		fs:        fs,
		outputDir: outputDir,
	}
}

// ProgressCallback is called to report export progress
type ProgressCallback func(current int, total int, description string)

// Result counts the outcome of an export run
type Result struct {
	Written []string
	Skipped []string
}

// ExportEntries exports the named entries. Sounds become WAV files, sprite
// frames and font atlases become PNG files, and anything else is copied
// as-is. Entries that cannot be read are logged and skipped; failures to
// write the output abort the run.
func (e *Exporter) ExportEntries(names []string, progressCallback ProgressCallback) (*Result, error) {
	result := &Result{}
	if len(names) == 0 {
		return result, nil
	}

	if err := e.fs.MkdirAll(e.outputDir, 0755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}

	for i, name := range names {
		written, err := e.exportEntry(name)
		switch {
		case errors.Is(err, errSkipped):
			result.Skipped = append(result.Skipped, name)
		case err != nil:
			return result, err
		default:
			result.Written = append(result.Written, written...)
		}

		if progressCallback != nil {
			progressCallback(i+1, len(names), sanitizePath(name))
		}
	}

	return result, nil
}

var errSkipped = errors.New("entry skipped")

// exportEntry writes one entry and returns the paths it created
func (e *Exporter) exportEntry(name string) ([]string, error) {
	if strings.HasSuffix(name, "/") {
		return nil, errSkipped
	}

	if e.Raw {
		return e.copyEntry(name)
	}

	asset, ok, err := e.loader.OpenEntry(e.pkg, name)
	switch {
	case !ok && err == nil:
		slog.Warn("Entry not found", "name", name)
		return nil, errSkipped
	case errors.Is(err, binio.ErrNotThisFormat):
		return e.copyEntry(name)
	case errors.Is(err, binio.ErrIOFailure):
		return nil, fmt.Errorf("reading %s: %w", name, err)
	case err != nil:
		slog.Warn("Skipping unreadable entry", "name", name, "error", err)
		return nil, errSkipped
	}
	defer asset.Close()

	var written []string
	switch {
	case asset.Sound != nil:
		written, err = e.writeSound(name, asset)
	case asset.Sprite != nil:
		written, err = e.writeSprite(name, asset)
	case asset.Font != nil:
		written, err = e.writeFont(name, asset)
	default:
		return e.copyEntry(name)
	}

	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		slog.Warn("Skipping undecodable entry", "name", name, "kind", asset.Kind, "error", decodeErr.err)
		return nil, errSkipped
	}
	return written, err
}

// copyEntry writes the raw bytes of an entry
func (e *Exporter) copyEntry(name string) ([]string, error) {
	src, ok, err := e.pkg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if !ok {
		slog.Warn("Entry not found", "name", name)
		return nil, errSkipped
	}
	defer src.Close()

	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	outputPath := e.outputPath(sanitizePath(name))
	if err := e.writeFile(outputPath, data); err != nil {
		return nil, err
	}

	slog.Debug("Copied entry", "name", name, "output", outputPath)
	return []string{outputPath}, nil
}

func (e *Exporter) outputPath(base string) string {
	return filepath.Join(e.outputDir, base)
}

func (e *Exporter) writeFile(outputPath string, data []byte) error {
	if err := afero.WriteFile(e.fs, outputPath, data, 0644); err != nil {
		return binio.IOFailure("writing "+outputPath, err)
	}
	return nil
}

// sanitizePath sanitizes a file path for use as a filename
// Replaces forward slashes with @ symbols
func sanitizePath(path string) string {
	return strings.ReplaceAll(path, "/", "@")
}

// withExtension swaps the extension of a sanitized entry name
func withExtension(name, ext string) string {
	base := sanitizePath(name)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

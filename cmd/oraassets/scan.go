package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/catalog"
	"github.com/Mailaender/OpenRA/internal/format"
	"github.com/Mailaender/OpenRA/internal/utils"
)

type ScanStats struct {
	Files    int
	Packages int
	Entries  int64
	Errors   int
}

var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "Inventory every container below a directory into the catalog",
	Long: `Scan walks DIR, opens every mix, zip, oramap and oramod file it finds and
records each entry with its size, detected format and decode error (if
any) in the catalog database. Containers nested inside containers are
recorded too, under the path "outer.mix/inner.mix".

Scanning a container again replaces its earlier entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		start := time.Now()
		stats := &ScanStats{}

		d, err := newDispatcher()
		if err != nil {
			return err
		}

		cat, err := catalog.NewCatalog(catalog.DefaultOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer cat.Close()

		if err := cat.CreateSchema(ctx); err != nil {
			return err
		}

		var files []string
		err = afero.Walk(osFs, args[0], func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.Mode().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", args[0], err)
		}
		stats.Files = len(files)

		slog.Info("Starting scan...", "dir", args[0], "files", len(files), "database", cfg.Database)

		progress := utils.NewProgress(os.Stderr, len(files), showProgress())
		for i, file := range files {
			progress.Update(i+1, len(files), file)

			p, err := d.OpenPackageFile(osFs, file)
			if errors.Is(err, binio.ErrNotThisFormat) {
				slog.Debug("Not a container", "path", file)
				continue
			}
			if err != nil {
				slog.Error("Failed to open container", "path", file, "error", err)
				stats.Errors++
				continue
			}

			err = scanPackage(ctx, cat, d, p, file, stats)
			p.Close()
			if err != nil {
				progress.Finish()
				return err
			}
		}
		progress.Finish()

		fmt.Printf("Files walked: %s\n", utils.Number(int64(stats.Files)))
		fmt.Printf("Containers recorded: %s\n", utils.Number(int64(stats.Packages)))
		fmt.Printf("Entries recorded: %s\n", utils.Number(stats.Entries))
		fmt.Printf("Open errors: %d\n", stats.Errors)
		fmt.Printf("Total duration: %s\n", utils.Duration(time.Since(start)))
		fmt.Println("Try running: oraassets query --summary")

		return nil
	},
}

// scanPackage records p and its entries under pkgPath, then descends into
// nested containers. Only catalog failures are returned.
func scanPackage(ctx context.Context, cat *catalog.Catalog, d *format.Dispatcher, p archive.Package, pkgPath string, stats *ScanStats) error {
	kind := format.Zip
	if _, ok := p.(*archive.Mix); ok {
		kind = format.Mix
	}

	id, err := cat.RecordPackage(ctx, pkgPath, kind.String())
	if err != nil {
		return err
	}
	stats.Packages++

	var entries []catalog.Entry
	var nested []archive.Package
	defer func() {
		for _, child := range nested {
			child.Close()
		}
	}()

	for _, name := range p.Contents() {
		if strings.HasSuffix(name, "/") {
			continue
		}

		src, ok, err := p.Open(name)
		if err != nil || !ok {
			slog.Warn("Failed to read entry", "package", pkgPath, "name", name, "error", err)
			stats.Errors++
			continue
		}

		entry := catalog.Entry{Name: name, Size: src.Len(), Kind: format.Unknown.String()}
		asset, err := d.Open(src, name)
		switch {
		case errors.Is(err, binio.ErrNotThisFormat):
			src.Close()
		case err != nil:
			entry.Error = err.Error()
			if k, ok := d.Sniff(binio.NewCursor(src), name); ok {
				entry.Kind = k.String()
			}
			src.Close()
		case asset.Package != nil:
			entry.Kind = asset.Kind.String()
			nested = append(nested, asset.Package)
		default:
			entry.Kind = asset.Kind.String()
			asset.Close()
		}
		entries = append(entries, entry)
	}

	if err := cat.RecordEntries(ctx, id, entries); err != nil {
		return err
	}
	stats.Entries += int64(len(entries))

	for _, child := range nested {
		childPath := path.Join(pkgPath, child.Name())
		if err := scanPackage(ctx, cat, d, child, childPath, stats); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

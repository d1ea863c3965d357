package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/archive"
)

var zipAs string

var zipCmd = &cobra.Command{
	Use:   "zip",
	Short: "Edit zip, oramap and oramod archives",
}

var zipAddCmd = &cobra.Command{
	Use:   "add ARCHIVE FILE...",
	Short: "Add or replace files in an archive, creating it if needed",
	Long: `Add stores each FILE in ARCHIVE under its base name, or under --as when a
single file is given. Existing entries with the same name are replaced.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args[1:]
		if zipAs != "" && len(files) != 1 {
			return fmt.Errorf("--as needs exactly one file, got %d", len(files))
		}

		m, err := openOrCreateZip(args[0])
		if err != nil {
			return err
		}
		defer m.Close()

		for _, file := range files {
			data, err := afero.ReadFile(osFs, file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			name := filepath.ToSlash(filepath.Base(file))
			if zipAs != "" {
				name = zipAs
			}

			if err := m.Update(name, data); err != nil {
				return fmt.Errorf("adding %s: %w", name, err)
			}
			slog.Info("Added entry", "archive", args[0], "name", name, "size", len(data))
		}
		return nil
	},
}

var zipRmCmd = &cobra.Command{
	Use:   "rm ARCHIVE ENTRY...",
	Short: "Remove entries from an archive",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := archive.OpenMutableZip(osFs, args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer m.Close()

		for _, name := range args[1:] {
			if !m.Contains(name) {
				slog.Warn("Entry not found", "archive", args[0], "name", name)
				continue
			}
			if err := m.Delete(name); err != nil {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			slog.Info("Removed entry", "archive", args[0], "name", name)
		}
		return nil
	},
}

func openOrCreateZip(path string) (*archive.MutableZip, error) {
	m, err := archive.OpenMutableZip(osFs, path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Creating archive", "path", path)
		return archive.CreateMutableZip(osFs, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(zipCmd)
	zipCmd.AddCommand(zipAddCmd, zipRmCmd)
	zipAddCmd.Flags().StringVar(&zipAs, "as", "", "entry name for a single added file")
}

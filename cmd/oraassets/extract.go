package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/export"
	"github.com/Mailaender/OpenRA/internal/utils"
)

var (
	extractIn  []string
	extractRaw bool
)

var extractCmd = &cobra.Command{
	Use:   "extract ARCHIVE [ENTRY...]",
	Short: "Extract container entries to the output directory",
	Long: `Extract writes the entries of a container to the output directory. Without
ENTRY arguments every entry is extracted.

Sounds are written as WAV files, PCX and GIF images as PNG (one file per
frame when there are several) and fonts as a PNG glyph atlas. Anything
else is copied unchanged. Use --raw to copy every entry unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		d, err := newDispatcher()
		if err != nil {
			return err
		}

		p, closePackage, err := openPackage(d, args[0], extractIn)
		if err != nil {
			return err
		}
		defer closePackage()

		names := args[1:]
		if len(names) == 0 {
			names = p.Contents()
		}

		slog.Info("Starting extract...",
			"archive", args[0],
			"nested", extractIn,
			"entries", len(names),
			"output", cfg.Output,
			"raw", extractRaw)

		exporter := export.NewExporter(d, p, osFs, cfg.Output)
		exporter.Raw = extractRaw

		progress := utils.NewProgress(os.Stderr, len(names), showProgress())
		result, err := exporter.ExportEntries(names, progress.Update)
		progress.Finish()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", args[0], err)
		}

		fmt.Printf("Entries: %s\n", utils.Number(int64(len(names))))
		fmt.Printf("Files written: %s\n", utils.Number(int64(len(result.Written))))
		fmt.Printf("Entries skipped: %s\n", utils.Number(int64(len(result.Skipped))))
		fmt.Printf("Total duration: %s\n", utils.Duration(time.Since(start)))
		if len(result.Skipped) > 0 {
			fmt.Println("Run with --log-level debug to see why entries were skipped")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringSliceVar(&extractIn, "in", []string{}, "nested containers or folders to descend into first")
	extractCmd.Flags().BoolVar(&extractRaw, "raw", false, "copy entries without converting them")
}

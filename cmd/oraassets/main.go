package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/config"
	"github.com/Mailaender/OpenRA/internal/format"
)

var (
	cfg       *config.Config
	cfgFile   string
	logCloser io.Closer

	// the tool works on the host filesystem; everything below cmd takes an afero.Fs
	osFs = afero.NewOsFs()

	dbPath     string
	outputDir  string
	mixNames   []string
	logLevel   string
	logFormat  string
	logFile    string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "oraassets",
	Short: "Inspect and extract legacy Westwood game assets",
	Long: `oraassets reads the asset containers shipped with Tiberian Dawn, Red Alert
and Tiberian Sun (mix files) and with OpenRA mods (zip, oramap, oramod).

It lists and extracts container entries, decodes AUD, WAV and Ogg sounds,
PCX and GIF images and bitmap fonts, and can inventory whole game
directories into a SQLite database for querying.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("output") {
			cfg.Output = outputDir
		}
		if cmd.Flags().Changed("mix-names") {
			cfg.MixNames = mixNames
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		var logger *slog.Logger
		logger, logCloser = cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		slog.Debug("Configuration",
			"database", cfg.Database,
			"output", cfg.Output,
			"mix_names", len(cfg.MixNames),
			"mix_names_file", cfg.MixNamesFile,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat,
			"log_file", cfg.LogFile)

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is oraassets.yaml in home or pwd)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "catalog database file path")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for extracted files")
	rootCmd.PersistentFlags().StringSliceVar(&mixNames, "mix-names", []string{}, "comma-separated filenames used to resolve mix entry ids")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}

// newDispatcher builds a dispatcher that knows the configured mix names
func newDispatcher() (*format.Dispatcher, error) {
	names, err := cfg.CandidateNames(osFs)
	if err != nil {
		return nil, err
	}
	return format.NewDispatcher(&format.Options{MixNames: names, Logger: slog.Default()}), nil
}

// openPackage opens the container file at path and descends into the
// nested containers or folders named by inner
func openPackage(d *format.Dispatcher, path string, inner []string) (archive.Package, func(), error) {
	root, err := d.OpenPackageFile(osFs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	p, err := d.Resolve(root, inner...)
	if err != nil {
		root.Close()
		return nil, nil, err
	}

	// nested packages share the root source; closing the root releases them
	return p, func() { root.Close() }, nil
}

// showProgress reports whether a progress bar would be readable
func showProgress() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug")
}

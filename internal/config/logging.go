package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func validateLogLevel(level string) error {
	if _, ok := logLevels[level]; !ok {
		return fmt.Errorf("unknown level '%s', expected debug, info, warn or error", level)
	}
	return nil
}

// NewLogger builds the process logger. Output goes to stderr, or to a
// rotating LogFile when one is configured. The returned closer releases
// the log file and must be called on exit.
func (c *Config) NewLogger(stderr io.Writer) (*slog.Logger, io.Closer) {
	level, ok := logLevels[c.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	var out io.Writer = stderr
	var closer io.Closer = io.NopCloser(nil)
	toFile := c.LogFile != ""
	if toFile {
		file := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		out, closer = file, file
	}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:   level,
			NoColor: toFile,
		})
	}

	return slog.New(handler), closer
}

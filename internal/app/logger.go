package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

// NewLoggerTo is NewLogger writing to w, e.g. stderr for CLIs.
func NewLoggerTo(cfg *Config, w io.Writer) *slog.Logger {
	return newLogger(cfg, w)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil {
		if level, err := parseLevel(cfg.LogLevel); err == nil {
			opts.Level = level
		}
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

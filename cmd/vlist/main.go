// Package main is the entry point for vlist, a terminal viewer for large
// lists loaded window by window.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/vlist/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Persistent flags.
var (
	configPath string
	logLevel   string
	logFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vlist",
		Short:         "Browse very large lists that load window by window",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (.toml, .yaml, .json, .jsonc)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file; overrides the config file")

	root.AddCommand(newViewCmd(), newGenCmd())
	return root
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger. The terminal belongs to the UI, so
// logs go to cfg.File or are discarded. The returned close func releases
// the log file.
func newLogger(cfg config.LogConfig, level *slog.LevelVar) (*slog.Logger, func() error, error) {
	lvl, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	level.Set(lvl)

	var w io.Writer = io.Discard
	closeFn := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}

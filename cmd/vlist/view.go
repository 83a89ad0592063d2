package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vlist/internal/collection"
	"github.com/dshills/vlist/internal/config"
	"github.com/dshills/vlist/internal/config/watcher"
	"github.com/dshills/vlist/internal/source"
	"github.com/dshills/vlist/internal/source/jsonsource"
	"github.com/dshills/vlist/internal/source/luasource"
	"github.com/dshills/vlist/internal/view"
)

// ErrNoSource is returned when neither --source nor source.path is set.
var ErrNoSource = errors.New("no source: pass --source or set source.path")

// ErrUnknownSource is returned for source files that are neither JSON nor Lua.
var ErrUnknownSource = errors.New("unsupported source type")

func newViewCmd() *cobra.Command {
	var (
		sourcePath  string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse a JSON document or Lua script source in the terminal",
		Long: `Opens a scrolling list over the records of a source. Only the windows
around the screen are loaded.

Keys: arrows/j/k move, PgUp/PgDn page, Home/End jump, space toggles the
row, v marks and then selects a range, c clears the selection, r reloads,
q quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if sourcePath != "" {
				cfg.Source.Path = sourcePath
			}
			return runView(cmd.Context(), cfg, metricsAddr)
		},
	}
	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source file (.json or .lua); overrides source.path")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runView(ctx context.Context, cfg config.Config, metricsAddr string) error {
	if cfg.Source.Path == "" {
		return ErrNoSource
	}

	var level slog.LevelVar
	logger, closeLog, err := newLogger(cfg.Log, &level)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	fetcher, closeSource, err := openSource(cfg.Source)
	if err != nil {
		return err
	}
	defer func() { _ = closeSource() }()

	if cfg.Source.RateLimit > 0 {
		fetcher = source.NewRateLimited(fetcher, cfg.Source.RateLimit, cfg.Source.Burst)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	coll := collection.New(fetcher,
		collection.WithWindowSize(cfg.Window.Size),
		collection.WithDebounceDelay(cfg.Window.DebounceDelay.Std()),
		collection.WithLogger(logger),
		collection.WithContext(ctx),
	)
	defer func() { _ = coll.Close() }()

	if n, err := coll.RefreshCount(ctx); err == nil {
		logger.Info("source opened", "path", cfg.Source.Path, "count", n)
	} else if !errors.Is(err, source.ErrNoCounter) {
		return fmt.Errorf("count %s: %w", cfg.Source.Path, err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	formatter := source.Formatter{
		Categories:    source.NewLookup(cfg.Categories),
		CategoryField: cfg.Source.CategoryField,
	}
	list, err := view.New(screen, coll, formatter.Format,
		view.WithPrefetch(cfg.View.Prefetch),
		view.WithMargin(2),
		view.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer list.Close()

	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return list.Run(gctx)
	})

	if configPath != "" {
		w, err := config.Watch(configPath, func(next config.Config, err error) {
			if err != nil {
				logger.Warn("config reload rejected", "path", configPath, "error", err)
				return
			}
			applyLive(next, coll, list, &level, logger)
		}, watcher.WithLogger(logger))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("watch config: %w", err)
		}
		defer func() { _ = w.Close() }()
		g.Go(func() error {
			return ignoreCanceled(w.Run(gctx))
		})
	}

	if metricsAddr != "" {
		serveMetrics(gctx, g, metricsAddr, logger)
	}

	return ignoreCanceled(g.Wait())
}

// applyLive applies the settings that can change while viewing.
func applyLive(next config.Config, coll *collection.Collection[source.Record], list *view.List[source.Record], level *slog.LevelVar, logger *slog.Logger) {
	coll.SetDebounceDelay(next.Window.DebounceDelay.Std())
	list.SetPrefetch(next.View.Prefetch)
	if logLevel == "" {
		if lvl, err := config.ParseLevel(next.Log.Level); err == nil {
			level.Set(lvl)
		}
	}
	logger.Info("config reloaded",
		"debounce_delay", next.Window.DebounceDelay.String(),
		"prefetch", next.View.Prefetch,
		"log_level", level.Level().String(),
	)
}

// serveMetrics exposes the default Prometheus registry until ctx ends.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// openSource opens the source named by cfg.Path, choosing the
// implementation by file extension.
func openSource(cfg config.SourceConfig) (source.Fetcher[source.Record], func() error, error) {
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".json":
		var opts []jsonsource.Option
		if cfg.ArrayPath != "" {
			opts = append(opts, jsonsource.WithArrayPath(cfg.ArrayPath))
		}
		if cfg.TextField != "" {
			opts = append(opts, jsonsource.WithTextField(cfg.TextField))
		}
		src, err := jsonsource.Load(cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return src, func() error { return nil }, nil
	case ".lua":
		src, err := luasource.Load(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Path)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

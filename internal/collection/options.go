package collection

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/rangecache"
	"github.com/dshills/vlist/internal/window"
)

// Option configures a Collection.
type Option func(*options)

type options struct {
	windowSize    int
	debounceDelay time.Duration
	logger        *slog.Logger
	ctx           context.Context
	bus           *event.Bus
}

func defaultOptions() options {
	return options{
		windowSize:    rangecache.DefaultWindowSize,
		debounceDelay: window.DefaultDebounceDelay,
		logger:        slog.Default(),
		ctx:           context.Background(),
	}
}

// WithWindowSize sets the number of items fetched per window.
func WithWindowSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.windowSize = n
		}
	}
}

// WithDebounceDelay sets the quiet period before a re-pass.
func WithDebounceDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounceDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithContext sets the base context for fetches and event delivery.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithBus publishes events on a shared bus instead of a private one.
// A shared bus is not closed by Collection.Close.
func WithBus(b *event.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

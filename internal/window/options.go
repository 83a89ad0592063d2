package window

import (
	"context"
	"log/slog"
	"time"
)

// DefaultDebounceDelay is the quiet period before a re-pass starts.
const DefaultDebounceDelay = 50 * time.Millisecond

// Option configures a Coordinator.
type Option func(*options)

// options contains coordinator configuration.
type options struct {
	// debounceDelay is the wait between a superseded pass and its re-pass.
	debounceDelay time.Duration

	// logger receives structured diagnostics.
	logger *slog.Logger

	// ctx is passed to every fetch. It is not cancelled by Close.
	ctx context.Context
}

// defaultOptions returns the default coordinator configuration.
func defaultOptions() options {
	return options{
		debounceDelay: DefaultDebounceDelay,
		logger:        slog.Default(),
		ctx:           context.Background(),
	}
}

// WithDebounceDelay sets the debounce delay. Non-positive values are ignored.
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

// WithContext sets the base context handed to the fetcher.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// Handlers receive coordinator notifications. Any field may be nil.
// Handlers run on the pass goroutine without any coordinator lock held.
type Handlers[T any] struct {
	// ItemReplaced is called once per item of every newly loaded window,
	// in ascending index order within a pass.
	ItemReplaced func(index int, item T)

	// FetchFailed is called with a *FetchError when a window fails to load.
	FetchFailed func(err error)

	// Reset is called after Reset has cleared the cache and before the
	// re-fetch starts.
	Reset func()

	// PassCompleted is called at the end of every pass, before the
	// coordinator decides whether to go idle or re-pass.
	PassCompleted func(result PassResult)
}

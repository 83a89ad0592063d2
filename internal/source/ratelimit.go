package source

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to an underlying fetcher.
type RateLimited[T any] struct {
	next    Fetcher[T]
	limiter *rate.Limiter
}

// NewRateLimited wraps next so that at most perSecond fetches start per
// second, with the given burst. A non-positive rate disables limiting and
// returns next unchanged.
func NewRateLimited[T any](next Fetcher[T], perSecond float64, burst int) Fetcher[T] {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited[T]{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// FetchWindow waits for a token, then delegates.
func (r *RateLimited[T]) FetchWindow(ctx context.Context, window, size int) ([]T, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for window %d: %w", window, err)
	}
	return r.next.FetchWindow(ctx, window, size)
}

// Count delegates to the wrapped fetcher when it implements Counter.
func (r *RateLimited[T]) Count(ctx context.Context) (int, error) {
	c, ok := r.next.(Counter)
	if !ok {
		return 0, ErrNoCounter
	}
	return c.Count(ctx)
}

// Reload delegates to the wrapped fetcher when it implements Reloader.
func (r *RateLimited[T]) Reload() error {
	if rl, ok := r.next.(Reloader); ok {
		return rl.Reload()
	}
	return nil
}

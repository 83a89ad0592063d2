// Package source defines the fetch collaborators that supply windows of
// items to a virtual collection, plus adapters around them.
package source

import (
	"context"
	"errors"
)

var (
	// ErrWindowOutOfRange is returned by sources that know their size when a
	// window starts past the last item.
	ErrWindowOutOfRange = errors.New("window out of range")

	// ErrNoCounter is returned when a count is requested from a source that
	// cannot report one.
	ErrNoCounter = errors.New("source does not report a count")
)

// Fetcher loads one window of items.
//
// FetchWindow returns the items at logical indices
// [window*size, window*size+size-1]. The final window may be shorter.
// Implementations must be idempotent and free of side effects visible to
// the collection; they may block for arbitrary I/O latency.
type Fetcher[T any] interface {
	FetchWindow(ctx context.Context, window, size int) ([]T, error)
}

// FetchFunc is a function adapter for Fetcher.
type FetchFunc[T any] func(ctx context.Context, window, size int) ([]T, error)

// FetchWindow implements Fetcher.
func (f FetchFunc[T]) FetchWindow(ctx context.Context, window, size int) ([]T, error) {
	return f(ctx, window, size)
}

// Counter is implemented by sources that can report the total number of
// logical items.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Reloader is implemented by sources backed by data that can change, such
// as a file. Reload re-reads it; on error the previous data stays in use.
type Reloader interface {
	Reload() error
}

// Slice is an in-memory source backed by a slice.
type Slice[T any] struct {
	items []T
}

// NewSlice creates a source serving the given items.
func NewSlice[T any](items []T) *Slice[T] {
	return &Slice[T]{items: items}
}

// FetchWindow implements Fetcher.
func (s *Slice[T]) FetchWindow(ctx context.Context, window, size int) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := window * size
	if window < 0 || size <= 0 || start >= len(s.items) {
		return nil, ErrWindowOutOfRange
	}
	end := min(start+size, len(s.items))
	out := make([]T, end-start)
	copy(out, s.items[start:end])
	return out, nil
}

// Count implements Counter.
func (s *Slice[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

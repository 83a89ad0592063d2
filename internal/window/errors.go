package window

import (
	"errors"
	"fmt"

	"github.com/dshills/vlist/internal/interval"
)

// Sentinel errors for the coordinator.
var (
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("window coordinator is closed")

	// ErrInvalidCount is returned when a negative logical count is set.
	ErrInvalidCount = errors.New("logical count must not be negative")

	// ErrFetcherPanic is wrapped by FetchError when the fetcher panicked.
	ErrFetcherPanic = errors.New("fetcher panicked")
)

// FetchError reports a failed window fetch.
type FetchError struct {
	// Window is the index of the window that failed to load.
	Window int

	// Err is the error returned by the fetcher.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch window %d: %v", e.Window, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// RangeError reports a malformed tracked range passed to Report.
type RangeError struct {
	// Position is the index of the offending range in the reported list.
	Position int

	// Interval is the rejected range.
	Interval interval.Interval

	// Err is the validation error.
	Err error
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("tracked range %d %s: %v", e.Position, e.Interval, e.Err)
}

// Unwrap returns the underlying error.
func (e *RangeError) Unwrap() error {
	return e.Err
}

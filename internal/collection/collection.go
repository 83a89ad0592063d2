// Package collection implements a virtualized collection: a logically large
// list whose items are loaded window by window from a fetcher as the
// consumer reports which index ranges it is interested in.
//
// A Collection owns its cache, fetch coordinator, selection and event bus.
// Consumers observe it only through the On* subscriptions; every
// notification carries the collection ID as its event source.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/interval"
	"github.com/dshills/vlist/internal/rangecache"
	"github.com/dshills/vlist/internal/selection"
	"github.com/dshills/vlist/internal/source"
	"github.com/dshills/vlist/internal/window"
)

// Collection is a virtualized, window-fetched list of T.
type Collection[T any] struct {
	id        string
	fetcher   source.Fetcher[T]
	cache     *rangecache.Cache[T]
	coord     *window.Coordinator[T]
	selection *selection.Tracker
	bus       *event.Bus
	ownsBus   bool

	ctx    context.Context
	logger *slog.Logger
}

// New creates a collection that loads items from fetcher.
func New[T any](fetcher source.Fetcher[T], opts ...Option) *Collection[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collection[T]{
		id:        uuid.NewString(),
		fetcher:   fetcher,
		cache:     rangecache.New[T](o.windowSize),
		selection: selection.NewTracker(),
		bus:       o.bus,
		ctx:       o.ctx,
	}
	if c.bus == nil {
		c.bus = event.NewBus(event.WithLogger(o.logger))
		c.ownsBus = true
	}
	c.logger = o.logger.With("collection", c.id)

	c.coord = window.New[T](c.cache, fetcher, window.Handlers[T]{
		ItemReplaced: func(index int, item T) {
			publish(c, TopicItemReplaced, ItemReplaced[T]{Index: index, Item: item})
		},
		FetchFailed: func(err error) {
			publish(c, TopicFetchFailed, FetchFailed{Err: err})
		},
		Reset: func() {
			publish(c, TopicReset, Reset{})
		},
	},
		window.WithDebounceDelay(o.debounceDelay),
		window.WithLogger(c.logger),
		window.WithContext(o.ctx),
	)
	return c
}

// ID returns the collection's unique identifier.
func (c *Collection[T]) ID() string {
	return c.id
}

// ReportTrackedRanges declares the index ranges the consumer currently
// needs. Each report replaces the previous one. Malformed ranges are
// rejected with a *window.RangeError.
func (c *Collection[T]) ReportTrackedRanges(ranges []interval.Interval) error {
	return c.coord.Report(ranges)
}

// Tracked returns the most recently reported ranges in canonical form.
func (c *Collection[T]) Tracked() interval.Set {
	return c.coord.Tracked()
}

// SetLogicalCount sets the total number of items and publishes
// CountChanged if it differs from the previous value.
func (c *Collection[T]) SetLogicalCount(n int) error {
	changed, err := c.coord.SetLogicalCount(n)
	if err != nil {
		return err
	}
	if changed {
		publish(c, TopicCountChanged, CountChanged{Count: n})
	}
	return nil
}

// Count returns the logical count and whether it is known.
func (c *Collection[T]) Count() (int, bool) {
	return c.coord.LogicalCount()
}

// RefreshCount asks the fetcher for the item count and applies it. It
// returns source.ErrNoCounter if the fetcher cannot count.
func (c *Collection[T]) RefreshCount(ctx context.Context) (int, error) {
	counter, ok := c.fetcher.(source.Counter)
	if !ok {
		return 0, source.ErrNoCounter
	}
	n, err := counter.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.SetLogicalCount(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Item returns the cached item at index, if its window is loaded.
func (c *Collection[T]) Item(index int) (T, bool) {
	return c.cache.Item(index)
}

// Reset reloads the source when it implements source.Reloader, then drops
// every cached window and fetches the tracked ranges again. After a reload
// the count is refreshed for sources that can count. A failed reload is
// returned and published as FetchFailed, and the cache is left untouched.
func (c *Collection[T]) Reset() error {
	if r, ok := c.fetcher.(source.Reloader); ok {
		if err := r.Reload(); err != nil {
			err = fmt.Errorf("reload source: %w", err)
			publish(c, TopicFetchFailed, FetchFailed{Err: err})
			return err
		}
		if _, err := c.RefreshCount(c.ctx); err != nil && !errors.Is(err, source.ErrNoCounter) {
			c.logger.Warn("count after reload failed", "error", err)
		}
	}
	return c.coord.Reset()
}

// SetDebounceDelay changes the re-pass quiet period.
func (c *Collection[T]) SetDebounceDelay(d time.Duration) {
	c.coord.SetDebounceDelay(d)
}

// Wait blocks until no fetch pass is running or scheduled.
func (c *Collection[T]) Wait(ctx context.Context) error {
	return c.coord.Wait(ctx)
}

// Close stops fetching and notification delivery. Close is idempotent.
func (c *Collection[T]) Close() error {
	if err := c.coord.Close(); err != nil {
		return err
	}
	if c.ownsBus {
		return c.bus.Close()
	}
	return nil
}

// Select adds iv to the selection.
func (c *Collection[T]) Select(iv interval.Interval) error {
	changed, err := c.selection.Select(iv)
	if err != nil {
		return err
	}
	if changed {
		c.selectionChanged()
	}
	return nil
}

// Deselect removes iv from the selection.
func (c *Collection[T]) Deselect(iv interval.Interval) error {
	changed, err := c.selection.Deselect(iv)
	if err != nil {
		return err
	}
	if changed {
		c.selectionChanged()
	}
	return nil
}

// Toggle flips the selection state of one index and returns the new state.
func (c *Collection[T]) Toggle(index int) (bool, error) {
	selected, err := c.selection.Toggle(index)
	if err != nil {
		return false, err
	}
	c.selectionChanged()
	return selected, nil
}

// ClearSelection deselects everything.
func (c *Collection[T]) ClearSelection() {
	if c.selection.Clear() {
		c.selectionChanged()
	}
}

// IsSelected reports whether index is selected.
func (c *Collection[T]) IsSelected(index int) bool {
	return c.selection.IsSelected(index)
}

// SelectedRanges returns the selection as ordered, disjoint, non-adjacent
// intervals.
func (c *Collection[T]) SelectedRanges() []interval.Interval {
	return c.selection.Ranges()
}

// SelectedCount returns the number of selected indices.
func (c *Collection[T]) SelectedCount() int {
	return c.selection.Count()
}

func (c *Collection[T]) selectionChanged() {
	publish(c, TopicSelectionChanged, SelectionChanged{Ranges: c.selection.Ranges()})
}

// publish delivers one event with the collection ID as its source.
func publish[T, P any](c *Collection[T], topic event.Topic, payload P) {
	if err := c.bus.Publish(c.ctx, event.NewEvent(topic, payload, c.id)); err != nil {
		c.logger.Debug("event not published", "topic", string(topic), "error", err)
	}
}

// Stats contains collection statistics.
type Stats struct {
	ID       string
	Window   window.Stats
	Cache    rangecache.Stats
	Bus      event.Stats
	Selected int
	Count    int
	CountSet bool
}

// Stats returns current statistics.
func (c *Collection[T]) Stats() Stats {
	n, known := c.Count()
	return Stats{
		ID:       c.id,
		Window:   c.coord.Stats(),
		Cache:    c.cache.Stats(),
		Bus:      c.bus.Stats(),
		Selected: c.selection.Count(),
		Count:    n,
		CountSet: known,
	}
}

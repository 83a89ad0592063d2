package window

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/vlist/internal/interval"
	"github.com/dshills/vlist/internal/rangecache"
	"github.com/dshills/vlist/internal/source"
)

// State is the coordinator's fetch state.
type State int32

const (
	// StateIdle means no pass is running or scheduled.
	StateIdle State = iota

	// StateFetching means a pass is running or a re-pass is scheduled.
	StateFetching

	// StateFetchingWithPendingRetry means a newer report arrived while a
	// pass was running.
	StateFetchingWithPendingRetry
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFetchingWithPendingRetry:
		return "fetching-pending-retry"
	default:
		return "unknown"
	}
}

const tracerName = "github.com/dshills/vlist/internal/window"

// Coordinator drives window fetches for reported tracked ranges.
type Coordinator[T any] struct {
	mu sync.Mutex

	// Collaborators
	cache    *rangecache.Cache[T]
	fetcher  source.Fetcher[T]
	handlers Handlers[T]

	// State machine, guarded by mu
	state      State
	latest     interval.Set
	generation uint64
	closed     bool
	idle       chan struct{}

	// Debounce timer, guarded by mu. timerSeq invalidates callbacks of
	// timers that fired while being replaced.
	timer    *time.Timer
	timerSeq uint64
	waiting  bool
	delay    time.Duration

	// Logical item count, -1 while unknown
	count atomic.Int64

	ctx    context.Context
	logger *slog.Logger
	tracer trace.Tracer

	// afterFetch runs after each fetcher call returns; set by tests.
	afterFetch func(window int)

	// Stats
	reports    atomic.Uint64
	passes     atomic.Uint64
	superseded atomic.Uint64
	discarded  atomic.Uint64
	fetched    atomic.Uint64
	failed     atomic.Uint64
}

// New creates a coordinator that fills cache from fetcher.
func New[T any](cache *rangecache.Cache[T], fetcher source.Fetcher[T], handlers Handlers[T], opts ...Option) *Coordinator[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	idle := make(chan struct{})
	close(idle)

	c := &Coordinator[T]{
		cache:    cache,
		fetcher:  fetcher,
		handlers: handlers,
		state:    StateIdle,
		latest:   interval.Set{},
		idle:     idle,
		delay:    o.debounceDelay,
		ctx:      o.ctx,
		logger:   o.logger,
		tracer:   otel.Tracer(tracerName),
	}
	c.count.Store(-1)
	return c
}

// Report records the index ranges the consumer is interested in and drives
// fetching for them. Malformed ranges are rejected with a *RangeError and
// leave the coordinator untouched. Report never blocks on a fetch.
func (c *Coordinator[T]) Report(ranges []interval.Interval) error {
	for i, iv := range ranges {
		if err := iv.Validate(); err != nil {
			return &RangeError{Position: i, Interval: iv, Err: err}
		}
	}
	normalized := interval.Normalize(ranges)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.latest = normalized
	c.reports.Add(1)
	reportsTotal.Inc()

	switch {
	case c.state == StateIdle:
		c.leaveIdleLocked()
		c.startPassLocked()
	case c.waiting:
		// Still in the quiet period: restart it, the re-pass reads latest.
		c.armDebounceLocked()
	default:
		c.state = StateFetchingWithPendingRetry
	}
	return nil
}

// Reset drops every cached window, as when the backing query changed.
// Results of passes started before the reset are discarded. The latest
// tracked ranges are then fetched again.
func (c *Coordinator[T]) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.generation++
	dropped := c.cache.Clear()
	c.mu.Unlock()

	c.logger.Debug("window cache reset", "dropped_windows", dropped)
	if c.handlers.Reset != nil {
		c.handlers.Reset()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.latest) == 0 {
		return nil
	}
	switch {
	case c.state == StateIdle:
		c.leaveIdleLocked()
		c.startPassLocked()
	case c.waiting:
		// The scheduled re-pass will fetch into the cleared cache.
	default:
		c.state = StateFetchingWithPendingRetry
	}
	return nil
}

// SetLogicalCount sets the total number of logical items. Notification
// indices are clamped to count-1 and windows starting at or past count are
// not fetched. It reports whether the count changed.
func (c *Coordinator[T]) SetLogicalCount(n int) (bool, error) {
	if n < 0 {
		return false, ErrInvalidCount
	}
	old := c.count.Swap(int64(n))
	return old != int64(n), nil
}

// LogicalCount returns the logical item count and whether it has been set.
func (c *Coordinator[T]) LogicalCount() (int, bool) {
	n := c.count.Load()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// SetDebounceDelay changes the debounce delay for subsequent re-passes.
func (c *Coordinator[T]) SetDebounceDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounceDelay
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// State returns the current state.
func (c *Coordinator[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tracked returns the most recently reported normalized ranges.
func (c *Coordinator[T]) Tracked() interval.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest.Clone()
}

// Wait blocks until the coordinator is idle or ctx is done.
func (c *Coordinator[T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any scheduled re-pass. A pass still running finishes in the
// background; its results are not announced. Close is idempotent.
func (c *Coordinator[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.waiting {
		c.stopTimerLocked()
		c.enterIdleLocked()
	}
	return nil
}

// Stats returns coordinator statistics.
func (c *Coordinator[T]) Stats() Stats {
	return Stats{
		State:          c.State(),
		Reports:        c.reports.Load(),
		Passes:         c.passes.Load(),
		Superseded:     c.superseded.Load(),
		Discarded:      c.discarded.Load(),
		WindowsFetched: c.fetched.Load(),
		FetchErrors:    c.failed.Load(),
	}
}

// Stats holds coordinator statistics.
type Stats struct {
	State          State
	Reports        uint64
	Passes         uint64
	Superseded     uint64
	Discarded      uint64
	WindowsFetched uint64
	FetchErrors    uint64
}

// leaveIdleLocked opens a fresh idle channel for Wait.
func (c *Coordinator[T]) leaveIdleLocked() {
	c.idle = make(chan struct{})
}

// enterIdleLocked marks the coordinator idle and releases waiters.
func (c *Coordinator[T]) enterIdleLocked() {
	c.state = StateIdle
	close(c.idle)
}

// startPassLocked launches a pass over a snapshot of the latest ranges.
func (c *Coordinator[T]) startPassLocked() {
	c.state = StateFetching
	snapshot := c.latest.Clone()
	gen := c.generation
	go c.runPass(snapshot, gen)
}

// armDebounceLocked (re)starts the debounce timer.
func (c *Coordinator[T]) armDebounceLocked() {
	c.stopTimerLocked()
	c.waiting = true
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.delay, func() {
		c.debounceFired(seq)
	})
}

// stopTimerLocked cancels the debounce timer, if any.
func (c *Coordinator[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.waiting = false
}

// debounceFired starts the re-pass once the quiet period has elapsed.
func (c *Coordinator[T]) debounceFired(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.waiting || seq != c.timerSeq {
		return
	}
	c.timer = nil
	c.waiting = false
	c.startPassLocked()
}

// runPass executes one pass and then settles the state machine.
func (c *Coordinator[T]) runPass(tracked interval.Set, gen uint64) {
	result := c.fetchPass(tracked, gen)
	if c.handlers.PassCompleted != nil {
		c.handlers.PassCompleted(result)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		c.enterIdleLocked()
	case c.state == StateFetchingWithPendingRetry:
		c.state = StateFetching
		c.armDebounceLocked()
	default:
		c.enterIdleLocked()
	}
}

// passStatus reports whether the coordinator was closed and whether gen
// has been superseded by a Reset.
func (c *Coordinator[T]) passStatus(gen uint64) (closed, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, gen != c.generation
}

// commit stores items for window w if gen is still current and the
// coordinator is open. The check and the write share one critical section
// so that a Reset can never be followed by a write of older data.
func (c *Coordinator[T]) commit(gen uint64, w int, items []T) (closed, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	closed, stale = c.closed, gen != c.generation
	if !closed && !stale {
		c.cache.Put(w, items)
	}
	return closed, stale
}

// retryPending reports whether a newer report is waiting.
func (c *Coordinator[T]) retryPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateFetchingWithPendingRetry
}

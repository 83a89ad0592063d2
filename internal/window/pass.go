package window

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/vlist/internal/interval"
)

// PassResult summarizes one fetch pass.
type PassResult struct {
	// Tracked is the interval snapshot the pass worked on.
	Tracked interval.Set

	// Evicted lists windows removed because they left the tracked set.
	Evicted []int

	// Fetched lists windows loaded by this pass, in fetch order.
	Fetched []int

	// Failed lists windows whose fetch returned an error.
	Failed []int

	// Cached counts tracked windows that were already loaded.
	Cached int

	// Superseded is true if the pass stopped early for a newer report.
	Superseded bool

	// Discarded is true if the pass stopped because the coordinator was
	// closed or reset while it ran.
	Discarded bool

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// fetchPass evicts untracked windows and loads every missing tracked window.
func (c *Coordinator[T]) fetchPass(tracked interval.Set, gen uint64) PassResult {
	ctx, span := c.tracer.Start(c.ctx, "window.fetch_pass", trace.WithAttributes(
		attribute.Int("window.tracked_ranges", len(tracked)),
		attribute.Int64("window.generation", int64(gen)),
	))
	defer span.End()

	start := time.Now()
	result := PassResult{Tracked: tracked}
	c.passes.Add(1)

	defer func() {
		result.Duration = time.Since(start)
		outcome := outcomeCompleted
		switch {
		case result.Discarded:
			outcome = outcomeDiscarded
			c.discarded.Add(1)
		case result.Superseded:
			outcome = outcomeSuperseded
			c.superseded.Add(1)
		}
		passesTotal.WithLabelValues(outcome).Inc()
		span.SetAttributes(
			attribute.Int("window.fetched", len(result.Fetched)),
			attribute.Int("window.failed", len(result.Failed)),
			attribute.String("window.outcome", outcome),
		)
	}()

	if closed, stale := c.passStatus(gen); closed || stale {
		result.Discarded = true
		return result
	}

	result.Evicted = c.cache.EvictUntracked(tracked)
	evictionsTotal.Add(float64(len(result.Evicted)))

	c.logger.Debug("fetch pass started",
		"tracked", tracked.String(),
		"evicted", len(result.Evicted),
		"generation", gen,
	)

	size := c.cache.WindowSize()
	count, countKnown := c.LogicalCount()

	for _, iv := range tracked {
		firstWindow := iv.First / size
		lastWindow := iv.Last / size
		if countKnown {
			if count == 0 || iv.First >= count {
				continue
			}
			lastWindow = min(lastWindow, (count-1)/size)
		}

		for w := firstWindow; ; w++ {
			if stop := c.loadWindow(ctx, w, size, gen, &result); stop {
				return result
			}
			// lastWindow may be math.MaxInt; stop before w++ wraps.
			if w == lastWindow {
				break
			}
		}
	}

	c.logger.Debug("fetch pass completed",
		"fetched", len(result.Fetched),
		"failed", len(result.Failed),
		"cached", result.Cached,
	)
	return result
}

// loadWindow fetches window w unless it is cached, stores it and announces
// its items. It returns true when the pass must stop.
func (c *Coordinator[T]) loadWindow(ctx context.Context, w, size int, gen uint64, result *PassResult) (stop bool) {
	if _, ok := c.cache.Get(w); ok {
		result.Cached++
		return false
	}
	if c.retryPending() {
		result.Superseded = true
		c.logger.Debug("fetch pass superseded", "next_window", w)
		return true
	}

	items, err := c.fetch(ctx, w, size)
	if c.afterFetch != nil {
		c.afterFetch(w)
	}

	if err != nil {
		closed, stale := c.passStatus(gen)
		if stale {
			result.Discarded = true
			return true
		}
		result.Failed = append(result.Failed, w)
		c.failed.Add(1)
		if closed {
			result.Discarded = true
			return true
		}
		c.reportFailure(&FetchError{Window: w, Err: err})
		return false
	}

	if closed, stale := c.commit(gen, w, items); closed || stale {
		// Data from before a Reset, or nobody left to deliver it to.
		result.Discarded = true
		return true
	}
	result.Fetched = append(result.Fetched, w)
	c.fetched.Add(1)
	c.announce(w, size, items, gen)
	return false
}

// fetch calls the fetcher, converting panics into errors.
func (c *Coordinator[T]) fetch(ctx context.Context, w, size int) (items []T, err error) {
	ctx, span := c.tracer.Start(ctx, "window.fetch", trace.WithAttributes(
		attribute.Int("window.index", w),
		attribute.Int("window.size", size),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("%w: %v", ErrFetcherPanic, r)
		}
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			fetchTotal.WithLabelValues("error").Inc()
			return
		}
		span.SetAttributes(attribute.Int("window.items", len(items)))
		fetchTotal.WithLabelValues("ok").Inc()
	}()

	return c.fetcher.FetchWindow(ctx, w, size)
}

// announce emits one ItemReplaced notification per item, clamping indices
// to the logical count when it is known. It stops as soon as the
// coordinator is closed or reset, so no old item follows a Reset
// notification by more than the item already being delivered.
func (c *Coordinator[T]) announce(w, size int, items []T, gen uint64) {
	if c.handlers.ItemReplaced == nil {
		return
	}
	count, known := c.LogicalCount()
	if known && count == 0 {
		return
	}

	base := w * size
	for n, item := range items {
		index := base + n
		if known {
			index = min(index, count-1)
		}
		if closed, stale := c.passStatus(gen); closed || stale {
			return
		}
		c.handlers.ItemReplaced(index, item)
	}
}

// reportFailure hands a fetch failure to the FetchFailed handler.
func (c *Coordinator[T]) reportFailure(err *FetchError) {
	c.logger.Warn("window fetch failed", "window", err.Window, "error", err.Err)
	if c.handlers.FetchFailed != nil {
		c.handlers.FetchFailed(err)
	}
}

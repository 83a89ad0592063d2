package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/interval"
	"github.com/dshills/vlist/internal/source"
	"github.com/dshills/vlist/internal/source/jsonsource"
	"github.com/dshills/vlist/internal/window"
)

func numbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("item-%d", i)
	}
	return out
}

func newTestCollection(t *testing.T, f source.Fetcher[string], opts ...Option) *Collection[string] {
	t.Helper()
	opts = append([]Option{WithWindowSize(4), WithDebounceDelay(5 * time.Millisecond)}, opts...)
	c := New[string](f, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func wait(t *testing.T, c *Collection[string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

type replaced struct {
	index int
	item  string
}

func TestCollection_ItemReplacedInOrder(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(100)))

	var mu sync.Mutex
	var got []replaced
	_, err := c.OnItemReplaced(func(index int, item string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, replaced{index, item})
	})
	require.NoError(t, err)

	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 9}}))
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 12)
	for i, r := range got {
		assert.Equal(t, i, r.index)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.item)
	}

	item, ok := c.Item(7)
	assert.True(t, ok)
	assert.Equal(t, "item-7", item)

	_, ok = c.Item(50)
	assert.False(t, ok, "untracked item should not be cached")
}

func TestCollection_RefreshCountPublishesAndClamps(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(10)))

	var counts []int
	_, err := c.OnCountChanged(func(n int) { counts = append(counts, n) })
	require.NoError(t, err)

	n, err := c.RefreshCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// Same count again: no notification.
	_, err = c.RefreshCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{10}, counts)

	var mu sync.Mutex
	maxIndex := -1
	c.OnItemReplaced(func(index int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		maxIndex = max(maxIndex, index)
	})

	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 50}}))
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 9, maxIndex)
	assert.Zero(t, c.Stats().Window.FetchErrors, "windows past the count must not be fetched")
}

func TestCollection_RefreshCountWithoutCounter(t *testing.T) {
	f := source.FetchFunc[string](func(context.Context, int, int) ([]string, error) {
		return nil, nil
	})
	c := newTestCollection(t, f)

	_, err := c.RefreshCount(context.Background())
	assert.ErrorIs(t, err, source.ErrNoCounter)

	_, known := c.Count()
	assert.False(t, known)
}

func TestCollection_SetLogicalCountRejectsNegative(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(1)))
	assert.ErrorIs(t, c.SetLogicalCount(-3), window.ErrInvalidCount)
}

func TestCollection_FetchFailedNotification(t *testing.T) {
	boom := errors.New("backend down")
	f := source.FetchFunc[string](func(_ context.Context, w, size int) ([]string, error) {
		if w == 1 {
			return nil, boom
		}
		return numbers(size), nil
	})
	c := newTestCollection(t, f)

	var mu sync.Mutex
	var failures []error
	_, err := c.OnFetchFailed(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	})
	require.NoError(t, err)

	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 11}}))
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], boom)

	var fe *window.FetchError
	require.ErrorAs(t, failures[0], &fe)
	assert.Equal(t, 1, fe.Window)

	_, ok := c.Item(0)
	assert.True(t, ok)
	_, ok = c.Item(4)
	assert.False(t, ok)
	_, ok = c.Item(8)
	assert.True(t, ok)
}

func TestCollection_ResetNotifiesAndReloads(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(20)))

	var mu sync.Mutex
	resets, items := 0, 0
	c.OnReset(func() {
		mu.Lock()
		defer mu.Unlock()
		resets++
	})
	c.OnItemReplaced(func(int, string) {
		mu.Lock()
		defer mu.Unlock()
		items++
	})

	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 3}}))
	wait(t, c)
	require.NoError(t, c.Reset())
	wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, resets)
	assert.Equal(t, 8, items)
	_, ok := c.Item(3)
	assert.True(t, ok)
}

func TestCollection_Selection(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(100)))

	var changes [][]interval.Interval
	_, err := c.OnSelectionChanged(func(r []interval.Interval) { changes = append(changes, r) })
	require.NoError(t, err)

	require.NoError(t, c.Select(interval.Interval{First: 10, Last: 19}))
	require.NoError(t, c.Select(interval.Interval{First: 20, Last: 24}))
	require.NoError(t, c.Select(interval.Interval{First: 12, Last: 14})) // no change
	require.NoError(t, c.Deselect(interval.Interval{First: 15, Last: 15}))
	require.NoError(t, c.Deselect(interval.Interval{First: 90, Last: 95})) // no change

	want := []interval.Interval{{First: 10, Last: 14}, {First: 16, Last: 24}}
	assert.Equal(t, want, c.SelectedRanges())
	assert.True(t, c.IsSelected(16))
	assert.False(t, c.IsSelected(15))
	assert.Equal(t, 14, c.SelectedCount())
	assert.Len(t, changes, 3)

	selected, err := c.Toggle(15)
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, []interval.Interval{{First: 10, Last: 24}}, c.SelectedRanges())

	c.ClearSelection()
	c.ClearSelection()
	assert.Empty(t, c.SelectedRanges())
	assert.Len(t, changes, 5)

	err = c.Select(interval.Interval{First: 5, Last: 2})
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestCollection_ReportRejectsMalformedRanges(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(10)))

	err := c.ReportTrackedRanges([]interval.Interval{{First: -1, Last: 3}})
	var re *window.RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, re.Position)
	assert.Empty(t, c.Tracked())
}

func TestCollection_SharedBusIsolatesCollections(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	a := newTestCollection(t, source.NewSlice(numbers(10)), WithBus(bus))
	b := newTestCollection(t, source.NewSlice(numbers(10)), WithBus(bus))

	var aCounts, bCounts []int
	a.OnCountChanged(func(n int) { aCounts = append(aCounts, n) })
	b.OnCountChanged(func(n int) { bCounts = append(bCounts, n) })

	require.NoError(t, a.SetLogicalCount(3))
	require.NoError(t, b.SetLogicalCount(7))

	assert.Equal(t, []int{3}, aCounts)
	assert.Equal(t, []int{7}, bCounts)
	assert.NotEqual(t, a.ID(), b.ID())

	// Closing a collection leaves a shared bus open.
	require.NoError(t, a.Close())
	_, err := b.OnReset(func() {})
	assert.NoError(t, err)
}

func TestCollection_CloseSilencesNotifications(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f := source.FetchFunc[string](func(_ context.Context, _, size int) ([]string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		return numbers(size), nil
	})
	c := newTestCollection(t, f)

	calls := 0
	c.OnItemReplaced(func(int, string) { calls++ })

	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 3}}))
	<-started
	require.NoError(t, c.Close())
	close(gate)
	wait(t, c)

	assert.Zero(t, calls)
	assert.ErrorIs(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 1}}), window.ErrClosed)
	assert.NoError(t, c.Close())
}

func TestCollection_UnsubscribeAndNilHandler(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(10)))

	_, err := c.OnReset(nil)
	assert.ErrorIs(t, err, event.ErrNilHandler)

	calls := 0
	sub, err := c.OnCountChanged(func(int) { calls++ })
	require.NoError(t, err)
	require.NoError(t, c.Unsubscribe(sub))

	require.NoError(t, c.SetLogicalCount(5))
	assert.Zero(t, calls)
}

func TestCollection_UserFilterCombinesWithSource(t *testing.T) {
	c := newTestCollection(t, source.NewSlice(numbers(10)))

	var got []int
	onlyLarge := func(e any) bool {
		ev, ok := e.(event.Event[CountChanged])
		return ok && ev.Payload.Count > 100
	}
	_, err := c.OnCountChanged(func(n int) { got = append(got, n) }, event.WithFilter(onlyLarge))
	require.NoError(t, err)

	require.NoError(t, c.SetLogicalCount(5))
	require.NoError(t, c.SetLogicalCount(500))
	assert.Equal(t, []int{500}, got)
}

func TestCollection_ResetReloadsFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a","b","c"]`), 0o644))

	src, err := jsonsource.Load(path)
	require.NoError(t, err)
	c := New[source.Record](source.NewRateLimited[source.Record](src, 1000, 10),
		WithWindowSize(4), WithDebounceDelay(5*time.Millisecond))
	t.Cleanup(func() { c.Close() })

	var mu sync.Mutex
	var counts []int
	var failures []error
	_, err = c.OnCountChanged(func(n int) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, n)
	})
	require.NoError(t, err)
	_, err = c.OnFetchFailed(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	})
	require.NoError(t, err)

	_, err = c.RefreshCount(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.ReportTrackedRanges([]interval.Interval{{First: 0, Last: 9}}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))

	rec, ok := c.Item(0)
	require.True(t, ok)
	assert.Equal(t, "a", rec.Text)

	require.NoError(t, os.WriteFile(path, []byte(`["x","y","z","w","v"]`), 0o644))
	require.NoError(t, c.Reset())
	require.NoError(t, c.Wait(ctx))

	rec, ok = c.Item(0)
	require.True(t, ok)
	assert.Equal(t, "x", rec.Text)
	rec, ok = c.Item(4)
	require.True(t, ok)
	assert.Equal(t, "v", rec.Text)
	n, known := c.Count()
	assert.True(t, known)
	assert.Equal(t, 5, n)

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
	err = c.Reset()
	assert.ErrorIs(t, err, jsonsource.ErrInvalidJSON)
	rec, ok = c.Item(0)
	require.True(t, ok, "a failed reload keeps the cache")
	assert.Equal(t, "x", rec.Text)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3, 5}, counts)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], jsonsource.ErrInvalidJSON)
}

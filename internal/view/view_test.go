package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vlist/internal/collection"
	"github.com/dshills/vlist/internal/interval"
	"github.com/dshills/vlist/internal/source"
)

func itemText(i int) string { return fmt.Sprintf("item %d", i) }

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

func newCollection(t *testing.T, fetcher source.Fetcher[int], windowSize int) *collection.Collection[int] {
	t.Helper()
	coll := collection.New[int](fetcher,
		collection.WithWindowSize(windowSize),
		collection.WithDebounceDelay(time.Millisecond),
	)
	t.Cleanup(func() { _ = coll.Close() })
	return coll
}

// newTestList builds a 5-row list over n integers.
func newTestList(t *testing.T, n int) (*List[int], tcell.SimulationScreen, *collection.Collection[int]) {
	t.Helper()
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	coll := newCollection(t, source.NewSlice(items), 10)
	_, err := coll.RefreshCount(context.Background())
	require.NoError(t, err)

	screen := newScreen(t, 40, 6)
	l, err := New(screen, coll, itemText, WithPrefetch(0))
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l, screen, coll
}

// settle waits for fetching to finish, applies queued interrupts and
// redraws.
func settle(t *testing.T, l *List[int], screen tcell.Screen, coll *collection.Collection[int]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, coll.Wait(ctx))
	for screen.HasPendingEvent() {
		l.HandleEvent(screen.PollEvent())
	}
	l.Draw()
}

func rowText(screen tcell.Screen, y int) string {
	w, _ := screen.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		mainc, combc, _, _ := screen.GetContent(x, y) //nolint:staticcheck // GetContent is the correct API
		b.WriteRune(mainc)
		for _, r := range combc {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " \x00")
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestList_DrawsLoadedRows(t *testing.T) {
	l, screen, coll := newTestList(t, 100)
	settle(t, l, screen, coll)

	assert.Contains(t, rowText(screen, 0), "item 0")
	assert.Contains(t, rowText(screen, 4), "item 4")
	assert.Contains(t, rowText(screen, 5), "1/100")
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 0, Last: 4}}))
}

func TestList_PlaceholderForUnloadedRows(t *testing.T) {
	boom := errors.New("boom")
	fetcher := source.FetchFunc[int](func(_ context.Context, window, size int) ([]int, error) {
		if window == 1 {
			return nil, boom
		}
		out := make([]int, size)
		for i := range out {
			out[i] = window*size + i
		}
		return out, nil
	})
	coll := newCollection(t, fetcher, 4)
	screen := newScreen(t, 60, 6)
	l, err := New(screen, coll, itemText, WithPrefetch(0))
	require.NoError(t, err)
	t.Cleanup(l.Close)

	settle(t, l, screen, coll)

	assert.Contains(t, rowText(screen, 3), "item 3")
	assert.Contains(t, rowText(screen, 4), Placeholder)
	assert.Contains(t, rowText(screen, 5), "error:")
	assert.Contains(t, rowText(screen, 5), "/?")
}

func TestList_NavigationReportsTrackedRanges(t *testing.T) {
	l, screen, coll := newTestList(t, 100)

	for range 7 {
		require.False(t, l.HandleEvent(key(tcell.KeyDown)))
	}
	assert.Equal(t, 7, l.Viewport().Cursor())
	assert.Equal(t, 3, l.Viewport().Top())
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 3, Last: 7}}), "tracked %v", coll.Tracked())

	l.HandleEvent(key(tcell.KeyEnd))
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 95, Last: 99}}), "tracked %v", coll.Tracked())

	settle(t, l, screen, coll)
	assert.Contains(t, rowText(screen, 4), "item 99")
	assert.Contains(t, rowText(screen, 5), "100/100")

	l.HandleEvent(key(tcell.KeyPgUp))
	assert.Equal(t, 94, l.Viewport().Cursor())
	l.HandleEvent(runeKey('k'))
	assert.Equal(t, 93, l.Viewport().Cursor())

	l.HandleEvent(key(tcell.KeyHome))
	assert.Equal(t, 0, l.Viewport().Cursor())
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 0, Last: 4}}))
}

func TestList_SelectionKeys(t *testing.T) {
	l, screen, coll := newTestList(t, 100)

	l.HandleEvent(runeKey(' '))
	assert.True(t, coll.IsSelected(0))

	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(runeKey('v'))
	assert.Contains(t, rowText(screen, 5), "range from 2")

	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(runeKey('v'))
	assert.Equal(t, []interval.Interval{{First: 0, Last: 0}, {First: 2, Last: 4}}, coll.SelectedRanges())
	assert.Equal(t, 4, coll.SelectedCount())

	settle(t, l, screen, coll)
	assert.True(t, strings.HasPrefix(rowText(screen, 2), "* "), "row 2: %q", rowText(screen, 2))
	assert.Contains(t, rowText(screen, 5), "selected 4")

	l.HandleEvent(runeKey('c'))
	assert.Zero(t, coll.SelectedCount())
}

func TestList_EscapeCancelsRangeSelection(t *testing.T) {
	l, _, coll := newTestList(t, 100)

	l.HandleEvent(runeKey('v'))
	l.HandleEvent(key(tcell.KeyEscape))
	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(runeKey('v'))
	l.HandleEvent(key(tcell.KeyDown))
	l.HandleEvent(runeKey('v'))

	assert.Equal(t, []interval.Interval{{First: 1, Last: 2}}, coll.SelectedRanges())
}

func TestList_ResetKeyRefetches(t *testing.T) {
	var calls atomic.Int32
	fetcher := source.FetchFunc[int](func(_ context.Context, window, size int) ([]int, error) {
		calls.Add(1)
		out := make([]int, size)
		for i := range out {
			out[i] = window*size + i
		}
		return out, nil
	})
	coll := newCollection(t, fetcher, 10)
	screen := newScreen(t, 40, 6)
	l, err := New(screen, coll, itemText, WithPrefetch(0))
	require.NoError(t, err)
	t.Cleanup(l.Close)

	settle(t, l, screen, coll)
	before := calls.Load()
	require.Positive(t, before)

	l.HandleEvent(runeKey('r'))
	settle(t, l, screen, coll)
	assert.Greater(t, calls.Load(), before)
	assert.Contains(t, rowText(screen, 0), "item 0")
}

func TestList_QuitKeys(t *testing.T) {
	l, _, _ := newTestList(t, 10)

	assert.False(t, l.HandleEvent(key(tcell.KeyDown)))
	assert.True(t, l.HandleEvent(runeKey('q')))
	assert.True(t, l.HandleEvent(key(tcell.KeyCtrlC)))
}

func TestList_ResizeChangesTrackedRows(t *testing.T) {
	l, screen, coll := newTestList(t, 100)

	screen.SetSize(40, 11)
	l.HandleEvent(tcell.NewEventResize(40, 11))
	assert.Equal(t, 10, l.Viewport().Height())
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 0, Last: 9}}))
}

func TestList_SetPrefetch(t *testing.T) {
	l, _, coll := newTestList(t, 100)

	l.SetPrefetch(10)
	assert.True(t, coll.Tracked().Equal(interval.Set{{First: 0, Last: 14}}))
}

func TestList_RunQuitsOnKey(t *testing.T) {
	l, screen, _ := newTestList(t, 100)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return strings.Contains(rowText(screen, 0), "item 0")
	}, 2*time.Second, 10*time.Millisecond)

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after q")
	}
}

func TestList_RunStopsOnCancel(t *testing.T) {
	l, _, _ := newTestList(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

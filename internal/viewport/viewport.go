// Package viewport tracks which rows of a virtual list are on screen and
// derives the index ranges to report as tracked.
package viewport

import (
	"sync"

	"github.com/dshills/vlist/internal/interval"
)

// TotalUnknown is the row total before the item count is known.
const TotalUnknown = -1

// Viewport is the visible portion of a list plus a cursor row.
type Viewport struct {
	mu sync.RWMutex

	// First visible row
	top int

	// Size in rows
	height int

	// Row count, or TotalUnknown
	total int

	// Cursor row, kept inside the visible rows
	cursor int

	// Keep the cursor this many rows from the edges when scrolling
	margin int

	// Rows tracked beyond each visible edge
	prefetch int
}

// New creates a viewport with the given height. Height is clamped to a
// minimum of 1.
func New(height, prefetch int) *Viewport {
	return &Viewport{
		height:   max(height, 1),
		total:    TotalUnknown,
		prefetch: max(prefetch, 0),
	}
}

// Top returns the first visible row.
func (v *Viewport) Top() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.top
}

// Height returns the number of visible rows.
func (v *Viewport) Height() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.height
}

// Total returns the row count, or TotalUnknown.
func (v *Viewport) Total() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.total
}

// Cursor returns the cursor row.
func (v *Viewport) Cursor() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cursor
}

// Prefetch returns the prefetch margin.
func (v *Viewport) Prefetch() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.prefetch
}

// SetPrefetch sets the number of rows tracked beyond each visible edge.
func (v *Viewport) SetPrefetch(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prefetch = max(n, 0)
}

// SetMargin sets the cursor scroll margin.
func (v *Viewport) SetMargin(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.margin = max(n, 0)
	v.followCursor()
}

// Resize changes the number of visible rows.
func (v *Viewport) Resize(height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.height = max(height, 1)
	v.clamp()
	v.followCursor()
}

// SetTotal sets the row count and clamps the position to it.
func (v *Viewport) SetTotal(total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if total < 0 {
		total = TotalUnknown
	}
	v.total = total
	v.clamp()
	v.setCursor(v.cursor)
}

// ScrollBy moves the visible rows by delta, dragging the cursor along when
// it would leave the screen.
func (v *Viewport) ScrollBy(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top += delta
	v.clamp()
	v.cursor = min(max(v.cursor, v.top), v.bottom())
}

// ScrollTo makes row the first visible row.
func (v *Viewport) ScrollTo(row int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top = row
	v.clamp()
	v.cursor = min(max(v.cursor, v.top), v.bottom())
}

// MoveCursor moves the cursor by delta rows and scrolls to keep it visible.
func (v *Viewport) MoveCursor(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setCursor(v.cursor + delta)
}

// SetCursor places the cursor on row and scrolls to keep it visible.
func (v *Viewport) SetCursor(row int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setCursor(row)
}

// EnsureVisible scrolls the minimum amount needed to show row, dragging
// the cursor along like ScrollBy.
func (v *Viewport) EnsureVisible(row int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case row < v.top:
		v.top = row
	case row > v.top+v.height-1:
		v.top = row - v.height + 1
	default:
		return
	}
	v.clamp()
	v.cursor = min(max(v.cursor, v.top), v.bottom())
}

// PageDown moves the cursor one screen down.
func (v *Viewport) PageDown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top += v.height
	v.setCursor(v.cursor + v.height)
}

// PageUp moves the cursor one screen up.
func (v *Viewport) PageUp() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top -= v.height
	v.setCursor(v.cursor - v.height)
}

// Home moves the cursor to the first row.
func (v *Viewport) Home() {
	v.SetCursor(0)
}

// End moves the cursor to the last row. It does nothing while the total
// is unknown.
func (v *Viewport) End() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.total == TotalUnknown {
		return
	}
	v.setCursor(v.total - 1)
}

// Visible returns the visible rows. ok is false when the list is empty.
func (v *Viewport) Visible() (iv interval.Interval, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.total == 0 {
		return interval.Interval{}, false
	}
	return interval.Interval{First: v.top, Last: v.bottom()}, true
}

// IsVisible reports whether row is on screen.
func (v *Viewport) IsVisible(row int) bool {
	iv, ok := v.Visible()
	return ok && iv.Contains(row)
}

// TrackedRanges returns the visible rows widened by the prefetch margin on
// both sides and clamped to the list. It is empty for an empty list.
func (v *Viewport) TrackedRanges() []interval.Interval {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.total == 0 {
		return []interval.Interval{}
	}
	first := max(v.top-v.prefetch, 0)
	last := v.top + v.height - 1 + v.prefetch
	if v.total != TotalUnknown {
		last = min(last, v.total-1)
	}
	return []interval.Interval{{First: first, Last: last}}
}

// bottom returns the last visible row.
func (v *Viewport) bottom() int {
	bottom := v.top + v.height - 1
	if v.total > 0 {
		bottom = min(bottom, v.total-1)
	}
	return bottom
}

// clamp keeps top within [0, total-height].
func (v *Viewport) clamp() {
	if v.total != TotalUnknown {
		v.top = min(v.top, max(v.total-v.height, 0))
	}
	v.top = max(v.top, 0)
}

// setCursor clamps row to the list and scrolls so that it stays at least
// margin rows from the screen edges where possible.
func (v *Viewport) setCursor(row int) {
	if v.total != TotalUnknown {
		row = min(row, max(v.total-1, 0))
	}
	v.cursor = max(row, 0)
	v.followCursor()
}

// followCursor scrolls the minimum amount to honour the cursor margin.
func (v *Viewport) followCursor() {
	margin := min(v.margin, (v.height-1)/2)
	if v.cursor-margin < v.top {
		v.top = v.cursor - margin
	}
	if v.cursor+margin > v.top+v.height-1 {
		v.top = v.cursor + margin - v.height + 1
	}
	v.clamp()
}

// Package selection tracks selected item indices as a union of intervals.
package selection

import (
	"sync"

	"github.com/dshills/vlist/internal/interval"
)

// Tracker manages the selected indices of one collection.
// Selections are stored in canonical interval form, so selecting a million
// contiguous rows costs one interval rather than a million flags.
type Tracker struct {
	mu sync.RWMutex

	// Selected runs in canonical form
	set interval.Set
}

// NewTracker creates an empty selection tracker.
func NewTracker() *Tracker {
	return &Tracker{
		set: interval.Set{},
	}
}

// Select adds iv to the selection. Selecting an already selected range is a
// no-op. It reports whether the selection changed.
func (t *Tracker) Select(iv interval.Interval) (bool, error) {
	if err := iv.Validate(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := interval.Merge(t.set, iv)
	if next.Equal(t.set) {
		return false, nil
	}
	t.set = next
	return true, nil
}

// Deselect removes iv from the selection. Removing indices that were never
// selected is a no-op. It reports whether the selection changed.
func (t *Tracker) Deselect(iv interval.Interval) (bool, error) {
	if err := iv.Validate(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := interval.Subtract(t.set, iv)
	if next.Equal(t.set) {
		return false, nil
	}
	t.set = next
	return true, nil
}

// Toggle flips the selection state of a single index.
func (t *Tracker) Toggle(index int) (selected bool, err error) {
	p := interval.Point(index)
	if err := p.Validate(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.set.Contains(index) {
		t.set = interval.Subtract(t.set, p)
		return false, nil
	}
	t.set = interval.Merge(t.set, p)
	return true, nil
}

// IsSelected returns true if index is selected.
func (t *Tracker) IsSelected(index int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.set.Contains(index)
}

// Ranges returns a snapshot of the selected runs.
// Later changes to the tracker do not affect the returned slice.
func (t *Tracker) Ranges() []interval.Interval {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]interval.Interval, len(t.set))
	copy(result, t.set)
	return result
}

// Count returns the total number of selected indices.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.set.Total()
}

// IsEmpty returns true if nothing is selected.
func (t *Tracker) IsEmpty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.set) == 0
}

// Clear removes all selections. It reports whether anything was selected.
func (t *Tracker) Clear() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	had := len(t.set) > 0
	t.set = interval.Set{}
	return had
}

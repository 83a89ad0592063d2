// Package interval provides closed integer index ranges and the canonical
// interval-set algebra used for tracked ranges and selections.
//
// A Set is always kept in canonical form: sorted ascending by First, with no
// two intervals overlapping or touching. Merge, Subtract and Normalize all
// return canonical sets and never modify their inputs.
package interval

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInterval is returned for intervals with a negative bound or
// with Last before First.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is an inclusive range of non-negative indices [First, Last].
type Interval struct {
	First int
	Last  int
}

// New creates a validated interval.
func New(first, last int) (Interval, error) {
	iv := Interval{First: first, Last: last}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Point returns the single-index interval [i, i].
func Point(i int) Interval {
	return Interval{First: i, Last: i}
}

// Validate reports whether the interval is well formed.
func (iv Interval) Validate() error {
	if iv.First < 0 || iv.Last < 0 {
		return fmt.Errorf("%w: negative bound in %s", ErrInvalidInterval, iv)
	}
	if iv.Last < iv.First {
		return fmt.Errorf("%w: last before first in %s", ErrInvalidInterval, iv)
	}
	return nil
}

// Len returns the number of indices covered, saturating at math.MaxInt
// for [0, math.MaxInt].
func (iv Interval) Len() int {
	n := iv.Last - iv.First
	if n == math.MaxInt {
		return n
	}
	return n + 1
}

// Contains returns true if i lies within the interval.
func (iv Interval) Contains(i int) bool {
	return i >= iv.First && i <= iv.Last
}

// Overlaps returns true if the two intervals share at least one index.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.First <= other.Last && other.First <= iv.Last
}

// Adjacent returns true if the intervals touch without overlapping.
// Both bounds are non-negative, so the differences cannot overflow.
func (iv Interval) Adjacent(other Interval) bool {
	return other.First-iv.Last == 1 || iv.First-other.Last == 1
}

// Mergeable returns true if the intervals overlap or touch.
func (iv Interval) Mergeable(other Interval) bool {
	return other.First-iv.Last <= 1 && iv.First-other.Last <= 1
}

// Union returns the smallest interval covering both.
// The result only equals the set union when the intervals are mergeable.
func (iv Interval) Union(other Interval) Interval {
	return Interval{
		First: min(iv.First, other.First),
		Last:  max(iv.Last, other.Last),
	}
}

// Intersect returns the shared part of the two intervals.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	if !iv.Overlaps(other) {
		return Interval{}, false
	}
	return Interval{
		First: max(iv.First, other.First),
		Last:  min(iv.Last, other.Last),
	}, true
}

// String formats the interval as [first,last].
func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d]", iv.First, iv.Last)
}

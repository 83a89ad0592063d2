package interval

import (
	"math"
	"sort"
	"strings"
)

// Set is an ordered sequence of intervals in canonical form.
// The zero value is an empty set.
type Set []Interval

// Merge inserts iv into s, combining it with every interval it overlaps or
// touches. s must be canonical; the result is canonical. A single pass is
// enough because s is already sorted and disjoint.
func Merge(s Set, iv Interval) Set {
	out := make(Set, 0, len(s)+1)
	merged := iv

	i := 0
	// Intervals ending more than one index before iv are untouched.
	for ; i < len(s) && merged.First-s[i].Last > 1; i++ {
		out = append(out, s[i])
	}
	// Absorb everything that overlaps or touches the growing interval.
	for ; i < len(s) && s[i].First-merged.Last <= 1; i++ {
		merged = merged.Union(s[i])
	}
	out = append(out, merged)
	out = append(out, s[i:]...)
	return out
}

// Subtract removes iv from s. Intervals fully covered are dropped, intervals
// partially covered are truncated, and an interval strictly containing iv is
// split in two. No empty interval is ever produced.
func Subtract(s Set, iv Interval) Set {
	out := make(Set, 0, len(s)+1)
	for _, e := range s {
		if !e.Overlaps(iv) {
			out = append(out, e)
			continue
		}
		// iv.First > e.First >= 0, so iv.First-1 cannot underflow.
		if iv.First > e.First {
			out = append(out, Interval{First: e.First, Last: iv.First - 1})
		}
		// iv.Last < e.Last, so iv.Last+1 cannot overflow.
		if iv.Last < e.Last {
			out = append(out, Interval{First: iv.Last + 1, Last: e.Last})
		}
	}
	return out
}

// Normalize converts an arbitrary list of intervals into canonical form.
// Intervals that fail Validate are ignored. The input is not modified.
func Normalize(raw []Interval) Set {
	sorted := make([]Interval, 0, len(raw))
	for _, iv := range raw {
		if iv.Validate() == nil {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return Set{}
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].First != sorted[j].First {
			return sorted[i].First < sorted[j].First
		}
		return sorted[i].Last < sorted[j].Last
	})

	out := make(Set, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.First-cur.Last <= 1 {
			cur = cur.Union(iv)
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	return append(out, cur)
}

// Contains returns true if some interval in the set contains i.
func (s Set) Contains(i int) bool {
	k := sort.Search(len(s), func(k int) bool { return s[k].Last >= i })
	return k < len(s) && s[k].First <= i
}

// Intersects returns true if iv shares at least one index with the set.
func (s Set) Intersects(iv Interval) bool {
	k := sort.Search(len(s), func(k int) bool { return s[k].Last >= iv.First })
	return k < len(s) && s[k].First <= iv.Last
}

// IsCanonical reports whether the set is sorted, valid, and has no
// overlapping or touching neighbours.
func (s Set) IsCanonical() bool {
	for i, iv := range s {
		if iv.Validate() != nil {
			return false
		}
		if i > 0 && iv.First-s[i-1].Last <= 1 {
			return false
		}
	}
	return true
}

// Total returns the number of indices covered by the set.
func (s Set) Total() int {
	n := 0
	for _, iv := range s {
		l := iv.Len()
		if l > math.MaxInt-n {
			return math.MaxInt
		}
		n += l
	}
	return n
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal returns true if both sets hold the same intervals.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String formats the set as a space separated list of intervals.
func (s Set) String() string {
	parts := make([]string, len(s))
	for i, iv := range s {
		parts[i] = iv.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

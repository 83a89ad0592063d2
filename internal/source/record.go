package source

import (
	"sort"
	"strings"
)

// Record is the row type produced by the file and script sources.
type Record struct {
	// Index is the logical position of the record in its source.
	Index int

	// Text is the primary display text.
	Text string

	// Fields holds the remaining scalar attributes as strings.
	Fields map[string]string
}

// Lookup is a read-only reference table, such as category id to name.
// It is passed explicitly to whatever formats records; there is no shared
// global instance.
type Lookup[K comparable, V any] struct {
	entries map[K]V
}

// NewLookup creates a lookup holding a copy of entries.
func NewLookup[K comparable, V any](entries map[K]V) Lookup[K, V] {
	m := make(map[K]V, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Lookup[K, V]{entries: m}
}

// Get returns the value for key.
func (l Lookup[K, V]) Get(key K) (V, bool) {
	v, ok := l.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (l Lookup[K, V]) Len() int {
	return len(l.entries)
}

// Formatter renders records as single display lines.
type Formatter struct {
	// Categories maps the value of CategoryField to a display name.
	Categories Lookup[string, string]

	// CategoryField names the field resolved through Categories.
	CategoryField string
}

// Format returns the display line for r. Fields are appended in key order
// as key=value pairs, with the category field replaced by its name.
func (f Formatter) Format(r Record) string {
	var b strings.Builder
	b.WriteString(r.Text)

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := r.Fields[k]
		if k == f.CategoryField {
			if name, ok := f.Categories.Get(v); ok {
				v = name
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

package collection

import (
	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/interval"
)

// Topics published by a collection.
const (
	TopicItemReplaced     event.Topic = "collection.item.replaced"
	TopicCountChanged     event.Topic = "collection.count.changed"
	TopicReset            event.Topic = "collection.reset"
	TopicFetchFailed      event.Topic = "collection.fetch.failed"
	TopicSelectionChanged event.Topic = "collection.selection.changed"
)

// ItemReplaced is published once per item of every newly loaded window.
type ItemReplaced[T any] struct {
	Index int
	Item  T
}

// CountChanged is published when the logical count changes.
type CountChanged struct {
	Count int
}

// Reset is published after the cache has been dropped.
type Reset struct{}

// FetchFailed is published when a window could not be loaded.
// Err is a *window.FetchError.
type FetchFailed struct {
	Err error
}

// SelectionChanged is published after Select, Deselect, Toggle or
// ClearSelection changed the selection.
type SelectionChanged struct {
	Ranges []interval.Interval
}

package collection

import (
	"context"

	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/interval"
)

// OnItemReplaced calls fn for every item that becomes available. Within one
// fetch pass indices arrive in ascending order.
func (c *Collection[T]) OnItemReplaced(fn func(index int, item T), opts ...event.SubscriptionOption) (*event.Subscription, error) {
	if fn == nil {
		return nil, event.ErrNilHandler
	}
	return subscribe(c, TopicItemReplaced, func(p ItemReplaced[T]) { fn(p.Index, p.Item) }, opts)
}

// OnCountChanged calls fn with the new logical count.
func (c *Collection[T]) OnCountChanged(fn func(count int), opts ...event.SubscriptionOption) (*event.Subscription, error) {
	if fn == nil {
		return nil, event.ErrNilHandler
	}
	return subscribe(c, TopicCountChanged, func(p CountChanged) { fn(p.Count) }, opts)
}

// OnReset calls fn after the cache has been dropped.
func (c *Collection[T]) OnReset(fn func(), opts ...event.SubscriptionOption) (*event.Subscription, error) {
	if fn == nil {
		return nil, event.ErrNilHandler
	}
	return subscribe(c, TopicReset, func(Reset) { fn() }, opts)
}

// OnFetchFailed calls fn with a *window.FetchError for every window that
// could not be loaded.
func (c *Collection[T]) OnFetchFailed(fn func(err error), opts ...event.SubscriptionOption) (*event.Subscription, error) {
	if fn == nil {
		return nil, event.ErrNilHandler
	}
	return subscribe(c, TopicFetchFailed, func(p FetchFailed) { fn(p.Err) }, opts)
}

// OnSelectionChanged calls fn with the new selected ranges.
func (c *Collection[T]) OnSelectionChanged(fn func(ranges []interval.Interval), opts ...event.SubscriptionOption) (*event.Subscription, error) {
	if fn == nil {
		return nil, event.ErrNilHandler
	}
	return subscribe(c, TopicSelectionChanged, func(p SelectionChanged) { fn(p.Ranges) }, opts)
}

// Unsubscribe removes a subscription created by one of the On* methods.
func (c *Collection[T]) Unsubscribe(sub *event.Subscription) error {
	return c.bus.Unsubscribe(sub)
}

// subscribe registers a typed handler restricted to this collection's
// events. A caller-supplied filter is combined with the source filter.
func subscribe[T, P any](c *Collection[T], topic event.Topic, fn func(P), opts []event.SubscriptionOption) (*event.Subscription, error) {
	var cfg event.SubscriptionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	userFilter := cfg.Filter
	fromSelf := event.FilterBySource(c.id)
	opts = append(opts, event.WithFilter(func(e any) bool {
		return fromSelf(e) && (userFilter == nil || userFilter(e))
	}))
	return event.SubscribeTyped(c.bus, topic, func(_ context.Context, e event.Event[P]) error {
		fn(e.Payload)
		return nil
	}, opts...)
}

// Package event provides the synchronous publish/subscribe bus used by
// collections to notify their consumers.
//
// Events use hierarchical topics with dot notation:
//
//	collection.item.replaced     - A cached item became available
//	collection.count.changed     - The logical item count changed
//	collection.reset             - The cache was dropped
//	collection.fetch.failed      - A window fetch returned an error
//	collection.selection.changed - The selected ranges changed
//
// Subscriptions may use wildcard patterns:
//
//	collection.*     - matches collection.reset (single segment)
//	collection.**    - matches every collection topic
//
// # Delivery
//
// Handlers run in the publisher's goroutine, in priority order (lower
// values first) and then in subscription order. Publish returns only after
// every matching handler has run, so events published from one goroutine
// are observed in publication order.
//
// A handler panic is recovered, counted, and handed to the bus panic
// handler; the remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	defer bus.Close()
//
//	sub, err := event.SubscribeTyped(bus, "collection.count.changed",
//	    func(ctx context.Context, e event.Event[int]) error {
//	        fmt.Println("count:", e.Payload)
//	        return nil
//	    })
//
//	bus.Publish(ctx, event.NewEvent[int]("collection.count.changed", 42, "demo"))
//	bus.Unsubscribe(sub)
package event

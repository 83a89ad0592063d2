package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bus delivers events synchronously to matching subscriptions.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	seq    uint64
	closed bool

	logger       *slog.Logger
	panicHandler PanicHandler

	// Stats
	eventsPublished  atomic.Uint64
	eventsDelivered  atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
	totalDeliveryNs  atomic.Int64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(l *slog.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPanicHandler sets the function called when a handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.panicHandler = h
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events whose topic matches pattern.
func (b *Bus) Subscribe(pattern Topic, handler Handler, opts ...SubscriptionOption) (*Subscription, error) {
	if !pattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	config := SubscriptionConfig{Priority: PriorityNormal}
	for _, opt := range opts {
		opt(&config)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.seq++
	sub := &Subscription{
		id:      uuid.NewString(),
		topic:   pattern,
		handler: handler,
		config:  config,
		seq:     b.seq,
	}
	sub.active.Store(true)

	// Copy on write so Publish can iterate a snapshot without the lock.
	subs := make([]*Subscription, 0, len(b.subs)+1)
	subs = append(subs, b.subs...)
	subs = append(subs, sub)
	slices.SortStableFunc(subs, func(a, c *Subscription) int {
		if a.config.Priority != c.config.Priority {
			return int(a.config.Priority) - int(c.config.Priority)
		}
		return int(a.seq) - int(c.seq)
	})
	b.subs = subs
	return sub, nil
}

// SubscribeFunc registers a handler function.
func (b *Bus) SubscribeFunc(pattern Topic, fn HandlerFunc, opts ...SubscriptionOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn, opts...)
}

// SubscribeTyped registers a handler that only receives Event[T] values.
// Events of other payload types on the same topic are skipped.
func SubscribeTyped[T any](b *Bus, pattern Topic, fn func(ctx context.Context, e Event[T]) error, opts ...SubscriptionOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, HandlerFunc(func(ctx context.Context, event any) error {
		e, ok := event.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, e)
	}), opts...)
}

// Unsubscribe cancels sub and removes it from the bus.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.Index(b.subs, sub)
	if idx < 0 {
		return ErrSubscriptionNotFound
	}
	b.subs = slices.Delete(slices.Clone(b.subs), idx, idx+1)
	return nil
}

// Publish delivers event to every matching active subscription and returns
// once all handlers have run. Handler errors and panics are counted and
// logged but do not stop delivery to later handlers.
func (b *Bus) Publish(ctx context.Context, event any) error {
	tp, ok := event.(TopicProvider)
	if !ok {
		return ErrInvalidEvent
	}
	eventTopic := tp.EventTopic()
	if !eventTopic.IsValid() || eventTopic.IsWildcard() {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, eventTopic)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := b.subs
	b.mu.RUnlock()

	b.eventsPublished.Add(1)

	pruned := false
	for _, sub := range subs {
		if !eventTopic.Matches(sub.topic) || !sub.shouldDeliver(event) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sub.config.Once {
			// Claim the single delivery before running the handler.
			if !sub.active.CompareAndSwap(true, false) {
				continue
			}
			pruned = true
		}

		if err := b.dispatch(ctx, sub, eventTopic, event); err != nil {
			continue
		}
		sub.delivered.Add(1)
		b.eventsDelivered.Add(1)
	}

	if pruned {
		b.prune()
	}
	return nil
}

// dispatch runs one handler with panic recovery.
func (b *Bus) dispatch(ctx context.Context, sub *Subscription, eventTopic Topic, event any) (err error) {
	start := time.Now()
	b.handlersExecuted.Add(1)

	defer func() {
		b.totalDeliveryNs.Add(time.Since(start).Nanoseconds())
		if r := recover(); r != nil {
			pe := &PanicError{
				SubscriptionID: sub.id,
				Topic:          eventTopic,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
			b.handlerPanics.Add(1)
			b.logger.Error("event handler panicked",
				"topic", string(eventTopic),
				"subscription", sub.id,
				"panic", fmt.Sprint(r),
			)
			if b.panicHandler != nil {
				func() {
					defer func() { _ = recover() }()
					b.panicHandler(pe)
				}()
			}
			err = pe
		}
	}()

	if herr := sub.handler.Handle(ctx, event); herr != nil {
		b.handlerErrors.Add(1)
		err = &HandlerError{SubscriptionID: sub.id, Topic: eventTopic, Err: herr}
		b.logger.Warn("event handler failed", "topic", string(eventTopic), "error", herr)
	}
	return err
}

// prune drops cancelled subscriptions.
func (b *Bus) prune() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(slices.Clone(b.subs), func(s *Subscription) bool {
		return !s.IsActive()
	})
}

// SubscriptionCount returns the number of registered subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close cancels all subscriptions. Later Publish and Subscribe calls
// return ErrBusClosed. Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		s.Cancel()
	}
	b.subs = nil
	return nil
}

// Stats contains event bus statistics.
type Stats struct {
	EventsPublished  uint64
	EventsDelivered  uint64
	HandlersExecuted uint64
	HandlerErrors    uint64
	HandlerPanics    uint64
	Subscriptions    int
	AvgDeliveryTime  time.Duration
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	executed := b.handlersExecuted.Load()
	var avg time.Duration
	if executed > 0 {
		avg = time.Duration(b.totalDeliveryNs.Load() / int64(executed))
	}
	return Stats{
		EventsPublished:  b.eventsPublished.Load(),
		EventsDelivered:  b.eventsDelivered.Load(),
		HandlersExecuted: executed,
		HandlerErrors:    b.handlerErrors.Load(),
		HandlerPanics:    b.handlerPanics.Load(),
		Subscriptions:    b.SubscriptionCount(),
		AvgDeliveryTime:  avg,
	}
}

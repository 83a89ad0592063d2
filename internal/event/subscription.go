package event

import "sync/atomic"

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Priority determines execution order (lower values execute first).
	Priority Priority

	// Filter is an optional predicate. Events are delivered only if it
	// returns true.
	Filter FilterFunc

	// Once cancels the subscription after its first delivery.
	Once bool
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithOnce sets the subscription to auto-cancel after the first event.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

// Subscription is a registered handler for a topic pattern.
type Subscription struct {
	id      string
	topic   Topic
	handler Handler
	config  SubscriptionConfig
	seq     uint64

	active    atomic.Bool
	delivered atomic.Uint64
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic pattern.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Priority returns the subscription priority.
func (s *Subscription) Priority() Priority {
	return s.config.Priority
}

// IsActive returns true if the subscription can receive events.
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// Delivered returns how many events were handled successfully.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Cancel stops delivery. Use Bus.Unsubscribe to also remove it.
func (s *Subscription) Cancel() {
	s.active.Store(false)
}

// shouldDeliver reports whether event passes state and filter checks.
func (s *Subscription) shouldDeliver(event any) bool {
	if !s.IsActive() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(event) {
		return false
	}
	return true
}

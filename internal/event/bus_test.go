package event

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"collection.reset", "collection.reset", true},
		{"collection.reset", "collection.*", true},
		{"collection.item.replaced", "collection.*", false},
		{"collection.item.replaced", "collection.**", true},
		{"collection", "collection.**", true},
		{"collection.item.replaced", "*.item.*", true},
		{"collection.count.changed", "collection.item.*", false},
		{"collection.reset", "collection.reset.extra", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			if got := tt.topic.Matches(tt.pattern); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopicIsValid(t *testing.T) {
	tests := map[Topic]bool{
		"":                 false,
		"a":                true,
		"a.b":              true,
		".a":               false,
		"a.":               false,
		"a..b":             false,
		"collection.reset": true,
	}
	for topic, want := range tests {
		if got := topic.IsValid(); got != want {
			t.Errorf("Topic(%q).IsValid() = %v, want %v", topic, got, want)
		}
	}
}

func TestBus_PublishDeliversInPriorityOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var order []string
	record := func(name string) HandlerFunc {
		return func(context.Context, any) error {
			order = append(order, name)
			return nil
		}
	}

	bus.SubscribeFunc("collection.reset", record("normal-1"))
	bus.SubscribeFunc("collection.reset", record("low"), WithPriority(PriorityLow))
	bus.SubscribeFunc("collection.*", record("critical"), WithPriority(PriorityCritical))
	bus.SubscribeFunc("collection.reset", record("normal-2"))

	if err := bus.Publish(context.Background(), NewEvent("collection.reset", struct{}{}, "test")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{"critical", "normal-1", "normal-2", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_SubscribeTyped(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []int
	_, err := SubscribeTyped(bus, "collection.count.changed", func(_ context.Context, e Event[int]) error {
		got = append(got, e.Payload)
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeTyped() error = %v", err)
	}

	ctx := context.Background()
	bus.Publish(ctx, NewEvent("collection.count.changed", 7, "test"))
	bus.Publish(ctx, NewEvent("collection.count.changed", "not an int", "test"))
	bus.Publish(ctx, NewEvent("collection.count.changed", 9, "test"))

	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Errorf("got %v, want [7 9]", got)
	}
}

func TestBus_OnceAndFilter(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	onceCalls, filtered := 0, 0
	bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		onceCalls++
		return nil
	}, WithOnce())
	bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		filtered++
		return nil
	}, WithFilter(FilterBySource("wanted")))

	ctx := context.Background()
	bus.Publish(ctx, NewEvent("collection.reset", 0, "other"))
	bus.Publish(ctx, NewEvent("collection.reset", 0, "wanted"))

	if onceCalls != 1 {
		t.Errorf("once handler called %d times, want 1", onceCalls)
	}
	if filtered != 1 {
		t.Errorf("filtered handler called %d times, want 1", filtered)
	}
	if n := bus.SubscriptionCount(); n != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1 after once handler fired", n)
	}
}

func TestBus_PanicIsRecovered(t *testing.T) {
	var caught *PanicError
	bus := NewBus(WithPanicHandler(func(err *PanicError) { caught = err }))
	defer bus.Close()

	after := false
	bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		panic("boom")
	}, WithPriority(PriorityHigh))
	bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		after = true
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent("collection.reset", 0, "test")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !after {
		t.Error("handler after the panicking one was not called")
	}
	if caught == nil || !errors.Is(caught, ErrHandlerPanic) || caught.Value != "boom" {
		t.Errorf("panic handler got %v", caught)
	}
	if s := bus.Stats(); s.HandlerPanics != 1 || s.EventsDelivered != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBus_HandlerErrorIsCounted(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		return errors.New("consumer failed")
	})
	bus.Publish(context.Background(), NewEvent("collection.reset", 0, "test"))

	if s := bus.Stats(); s.HandlerErrors != 1 || s.EventsDelivered != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	calls := 0
	sub, _ := bus.SubscribeFunc("collection.reset", func(context.Context, any) error {
		calls++
		return nil
	})

	if err := bus.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := bus.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second Unsubscribe() error = %v, want ErrSubscriptionNotFound", err)
	}

	bus.Publish(context.Background(), NewEvent("collection.reset", 0, "test"))
	if calls != 0 {
		t.Errorf("handler called %d times after Unsubscribe", calls)
	}
	if sub.IsActive() {
		t.Error("subscription still active after Unsubscribe")
	}
}

func TestBus_Errors(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	if _, err := bus.SubscribeFunc("", func(context.Context, any) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if _, err := bus.Subscribe("a.b", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler error = %v, want ErrNilHandler", err)
	}
	if err := bus.Publish(ctx, "no topic"); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(string) error = %v, want ErrInvalidEvent", err)
	}
	if err := bus.Publish(ctx, NewEvent("a.*", 0, "test")); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(wildcard) error = %v, want ErrInvalidTopic", err)
	}

	bus.Close()
	if err := bus.Publish(ctx, NewEvent("a.b", 0, "test")); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish after Close error = %v, want ErrBusClosed", err)
	}
	if _, err := bus.SubscribeFunc("a.b", func(context.Context, any) error { return nil }); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Subscribe after Close error = %v, want ErrBusClosed", err)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	total := 0
	bus.SubscribeFunc("collection.**", func(context.Context, any) error {
		mu.Lock()
		total++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				bus.Publish(context.Background(), NewEvent("collection.item.replaced", 1, "test"))
			}
		}()
	}
	wg.Wait()

	if total != 400 {
		t.Errorf("total = %d, want 400", total)
	}
}

func TestNewEventMetadata(t *testing.T) {
	e := NewEvent("collection.reset", 1, "src")
	if e.Metadata.ID == "" || e.Metadata.Timestamp.IsZero() {
		t.Errorf("metadata not populated: %+v", e.Metadata)
	}
	other := NewEvent("collection.reset", 1, "src")
	if e.Metadata.ID == other.Metadata.ID {
		t.Error("event IDs should be unique")
	}
	if e.EventMetadata().Source != "src" {
		t.Errorf("Source = %q, want src", e.EventMetadata().Source)
	}
}

package bus

import "testing"

func TestPublishFansOut(t *testing.T) {
	b := New()

	var first, second []Event
	b.Subscribe(func(e Event) { first = append(first, e) })
	b.Subscribe(func(e Event) { second = append(second, e) })

	b.Publish(SessionUpserted{ID: "s1"})
	b.Publish(ProjectDeleted{ID: "p1"})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both subscribers to see 2 events, got %d and %d", len(first), len(second))
	}
	if ev, ok := first[0].(SessionUpserted); !ok || ev.ID != "s1" {
		t.Errorf("unexpected first event: %+v", first[0])
	}
	if ev, ok := first[1].(ProjectDeleted); !ok || ev.ID != "p1" {
		t.Errorf("unexpected second event: %+v", first[1])
	}
}

func TestPublishRunsInRegistrationOrder(t *testing.T) {
	b := New()

	var order []int
	for i := 0; i < 8; i++ {
		n := i
		b.Subscribe(func(Event) { order = append(order, n) })
	}

	b.Publish(SessionUpserted{ID: "s1"})

	for i, n := range order {
		if n != i {
			t.Fatalf("expected handlers in registration order, got %v", order)
		}
	}
	if len(order) != 8 {
		t.Fatalf("expected 8 deliveries, got %d", len(order))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	var count int
	unsubscribe := b.Subscribe(func(Event) { count++ })

	b.Publish(SettingsChanged{UserID: "default"})
	unsubscribe()
	b.Publish(SettingsChanged{UserID: "default"})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}

	// Unsubscribing twice is harmless.
	unsubscribe()
}

func TestPublishWithNoSubscribers(t *testing.T) {
	b := New()
	// Must not panic or block.
	b.Publish(QueueDrained{Processed: 3})
}

func TestSubscriberCanPublish(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe(func(e Event) {
		got = append(got, e)
		if _, ok := e.(SessionUpserted); ok {
			// Reentrant publish from a handler must not deadlock.
			b.Publish(StateChanged{State: "syncing"})
		}
	})

	b.Publish(SessionUpserted{ID: "s1"})

	if len(got) != 2 {
		t.Fatalf("expected reentrant event delivered, got %d events", len(got))
	}
}

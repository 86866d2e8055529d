package memorybus

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish("job.created", []byte(`{"id":"j1"}`))

	select {
	case evt := <-ch:
		if evt.Topic != "job.created" {
			t.Fatalf("topic: got %q", evt.Topic)
		}
		if string(evt.Payload) != `{"id":"j1"}` {
			t.Fatalf("payload: got %s", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()

	// Le canal est fermé, publier ne doit pas paniquer.
	b.Publish("job.created", nil)

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Bien au-delà de la capacité du canal: les events surnuméraires
		// sont droppés, jamais bloquants.
		for i := 0; i < 1000; i++ {
			b.Publish("job.progress", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on slow subscriber")
	}
}

package events_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/events"
	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := events.NewBus()
	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	permit := &models.Permit{ID: 1, Number: "PTW-1"}
	bus.Emit(events.Event{Kind: events.Inserted, Permit: permit})

	for i, ch := range []<-chan events.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Kind != events.Inserted || e.Permit.ID != 1 {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()

	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after cancel")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", bus.SubscriberCount())
	}

	// cancel is idempotent
	cancel()

	// emitting after the only subscriber left must not panic
	bus.Emit(events.Event{Kind: events.Changed})
}

func TestBusEmitNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := events.NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// more events than the subscriber buffer holds; nobody is reading
		for i := 0; i < 1000; i++ {
			bus.Emit(events.Event{Kind: events.Changed})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}

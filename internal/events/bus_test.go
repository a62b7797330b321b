package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(EventQueueUpdate, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	bus.Publish(EventQueueUpdate, "creator-1", map[string]any{"queue_position": 3})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if received[0].Type != EventQueueUpdate {
		t.Errorf("type: got %s", received[0].Type)
	}
	if received[0].TargetID != "creator-1" {
		t.Errorf("target: got %s", received[0].TargetID)
	}
	if received[0].Data["queue_position"] != 3 {
		t.Errorf("data: got %v", received[0].Data["queue_position"])
	}
	if received[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var updates, started atomic.Int64
	bus.Subscribe(EventQueueUpdate, func(Event) { updates.Add(1) })
	bus.Subscribe(EventProcessingStarted, func(Event) { started.Add(1) })

	bus.Publish(EventProcessingStarted, "c", nil)

	waitFor(t, func() bool { return started.Load() == 1 })
	if updates.Load() != 0 {
		t.Errorf("queue_update subscriber received %d events", updates.Load())
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var count atomic.Int64
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventProcessingCompleted, func(Event) { count.Add(1) })
	}

	bus.Publish(EventProcessingCompleted, "c", nil)
	waitFor(t, func() bool { return count.Load() == 3 })
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var count atomic.Int64
	unsub := bus.Subscribe(EventQueueUpdate, func(Event) { count.Add(1) })

	bus.Publish(EventQueueUpdate, "c", nil)
	waitFor(t, func() bool { return count.Load() == 1 })

	unsub()
	bus.Publish(EventQueueUpdate, "c", nil)

	time.Sleep(50 * time.Millisecond)
	if count.Load() != 1 {
		t.Errorf("received %d events after unsubscribe", count.Load())
	}
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var healthy atomic.Int64
	bus.Subscribe(EventQueueUpdate, func(Event) { panic("bad consumer") })
	bus.Subscribe(EventQueueUpdate, func(Event) { healthy.Add(1) })

	bus.Publish(EventQueueUpdate, "c", nil)
	bus.Publish(EventQueueUpdate, "c", nil)

	// The healthy subscriber keeps receiving despite its sibling panicking
	waitFor(t, func() bool { return healthy.Load() == 2 })
}

func TestBus_DropOnFullBuffer(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	block := make(chan struct{})
	var delivered atomic.Int64
	bus.Subscribe(EventQueueUpdate, func(Event) {
		<-block
		delivered.Add(1)
	})

	// First event occupies the consumer, second fills the buffer,
	// the rest are dropped without blocking Publish.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(EventQueueUpdate, "c", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	close(block)
	time.Sleep(100 * time.Millisecond)
	if n := delivered.Load(); n > 2 {
		t.Errorf("expected at most 2 delivered events, got %d", n)
	}
}

package eventbus

import (
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(10)
	var mu sync.Mutex
	var got Event
	b.Subscribe(ProcessingStarted, func(e Event) {
		mu.Lock()
		got = e
		mu.Unlock()
	})
	b.Publish(Event{Type: ProcessingStarted, ChatID: "c1", TraceID: "t1"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.ChatID == "c1"
	})
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New(10)
	var count int
	var mu sync.Mutex
	cancel := b.Subscribe(ToolDenied, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	b.Publish(Event{Type: ToolDenied})
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 1 })
	cancel()
	b.Publish(Event{Type: ToolDenied})
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected no further delivery after cancel, got count=%d", count)
	}
}

func TestHandlerPanicDoesNotPropagate(t *testing.T) {
	b := New(10)
	b.Subscribe(ProcessingFailed, func(e Event) { panic("boom") })
	b.Publish(Event{Type: ProcessingFailed})
	waitFor(t, func() bool { return b.HandlerPanics() == 1 })
}

func TestPublishIsNonBlockingOnFullQueue(t *testing.T) {
	b := New(10)
	block := make(chan struct{})
	b.Subscribe(ModelGenerating, func(e Event) { <-block })
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: ModelGenerating})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}
	close(block)
}

func TestRingBufferRetainsRecentEvents(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: RoutingDecision, ChatID: string(rune('a' + i))})
	}
	recent := b.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", len(recent))
	}
	if recent[len(recent)-1].ChatID != "e" {
		t.Fatalf("expected most recent last, got %+v", recent)
	}
}

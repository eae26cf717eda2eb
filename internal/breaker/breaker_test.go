package breaker

import (
	"sync"
	"testing"
	"time"
)

func TestClosedTripsToOpenAtThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenDuration: time.Minute})
	for i := 0; i < 2; i++ {
		allowed, probe := b.Allow()
		if !allowed || probe {
			t.Fatalf("expected plain allow, got allowed=%v probe=%v", allowed, probe)
		}
		b.RecordFailure(false)
	}
	if b.State() != Closed {
		t.Fatalf("expected still CLOSED after 2 failures, got %s", b.State())
	}
	allowed, _ := b.Allow()
	if !allowed {
		t.Fatal("expected allow before 3rd failure")
	}
	b.RecordFailure(false)
	if b.State() != Open {
		t.Fatalf("expected OPEN after 3rd consecutive failure, got %s", b.State())
	}
}

func TestOpenRejectsUntilDuration(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 20 * time.Millisecond})
	allowed, _ := b.Allow()
	if !allowed {
		t.Fatal("expected initial allow")
	}
	b.RecordFailure(false)
	if b.State() != Open {
		t.Fatal("expected OPEN")
	}
	if allowed, _ := b.Allow(); allowed {
		t.Fatal("expected OPEN to reject immediately")
	}
	time.Sleep(30 * time.Millisecond)
	allowed, probe := b.Allow()
	if !allowed || !probe {
		t.Fatalf("expected single admitted probe after openDuration, got allowed=%v probe=%v", allowed, probe)
	}
}

func TestHalfOpenAdmitsOnlyOneConcurrentProbe(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond})
	b.Allow()
	b.RecordFailure(false)
	time.Sleep(15 * time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	probes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, probe := b.Allow(); allowed && probe {
				mu.Lock()
				probes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if probes != 1 {
		t.Fatalf("expected exactly 1 admitted probe, got %d", probes)
	}
}

func TestProbeSuccessClosesCircuit(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond})
	b.Allow()
	b.RecordFailure(false)
	time.Sleep(15 * time.Millisecond)
	_, probe := b.Allow()
	if !probe {
		t.Fatal("expected probe")
	}
	b.RecordSuccess(true)
	if b.State() != Closed {
		t.Fatalf("expected CLOSED after successful probe, got %s", b.State())
	}
}

func TestProbeFailureReopensAndResetsTimer(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond})
	b.Allow()
	b.RecordFailure(false)
	time.Sleep(15 * time.Millisecond)
	_, probe := b.Allow()
	if !probe {
		t.Fatal("expected probe")
	}
	b.RecordFailure(true)
	if b.State() != Open {
		t.Fatalf("expected OPEN after failed probe, got %s", b.State())
	}
	if allowed, _ := b.Allow(); allowed {
		t.Fatal("expected immediate re-open to reject")
	}
}

func TestRegistryLazilyCreatesPerBackend(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	a := r.Get("backend-a")
	b := r.Get("backend-a")
	if a != b {
		t.Fatal("expected same breaker instance for same backendId")
	}
	c := r.Get("backend-b")
	if a == c {
		t.Fatal("expected distinct breakers per backendId")
	}
}

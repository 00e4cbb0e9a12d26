package hublifetime

import (
	"context"
	"testing"
	"time"
)

func TestAckTrackerTriggerCompletesWait(t *testing.T) {
	tr := NewAckTracker(time.Second)
	id := tr.CreateAck()

	done := make(chan struct{})
	go func() {
		tr.Wait(context.Background(), id)
		close(done)
	}()

	tr.TriggerAck(id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after TriggerAck")
	}
}

func TestAckTrackerTimeoutCompletesSuccessfully(t *testing.T) {
	tr := NewAckTracker(10 * time.Millisecond)
	id := tr.CreateAck()

	start := time.Now()
	tr.Wait(context.Background(), id)
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("Wait returned after %v, expected to wait out the timeout", elapsed)
	}
}

func TestAckTrackerTriggerUnknownIDIgnored(t *testing.T) {
	tr := NewAckTracker(time.Second)
	tr.TriggerAck(999) // must not panic
}

func TestAckTrackerTriggerIdempotent(t *testing.T) {
	tr := NewAckTracker(time.Second)
	id := tr.CreateAck()
	tr.TriggerAck(id)
	tr.TriggerAck(id) // second trigger must not panic or block

	tr.Wait(context.Background(), id)
}

func TestAckTrackerDisposeCompletesOutstanding(t *testing.T) {
	tr := NewAckTracker(time.Minute)
	id := tr.CreateAck()

	done := make(chan struct{})
	go func() {
		tr.Wait(context.Background(), id)
		close(done)
	}()

	tr.Dispose()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Dispose")
	}
}

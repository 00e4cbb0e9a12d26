package hublifetime

import (
	"context"
	"testing"
	"time"
)

func newTestManager(t *testing.T, bus *fakeBus, serverID string) *DistributedLifetimeManager {
	t.Helper()
	m := NewDistributedLifetimeManager("chat", serverID, bus, 100*time.Millisecond, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return m
}

func TestDistributedInvokeConnectionShortCircuitsLocally(t *testing.T) {
	bus := newFakeBus()
	m := newTestManager(t, bus, "s1")
	ctx := context.Background()
	a := newFakeConnection("A", "")
	_ = m.OnConnected(ctx, a)

	if err := m.InvokeConnection(ctx, "A", "Ping", nil); err != nil {
		t.Fatalf("InvokeConnection() error = %v", err)
	}
	if len(a.Writes()) != 1 {
		t.Fatalf("writes = %d, want 1", len(a.Writes()))
	}
}

func TestDistributedInvokeAllFansOutAcrossServers(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	s2 := newTestManager(t, bus, "s2")
	ctx := context.Background()

	a := newFakeConnection("A", "")
	b := newFakeConnection("B", "")
	_ = s1.OnConnected(ctx, a)
	_ = s2.OnConnected(ctx, b)

	if err := s1.InvokeAll(ctx, "Echo", []any{"hi"}); err != nil {
		t.Fatalf("InvokeAll() error = %v", err)
	}

	if len(a.Writes()) != 1 || len(b.Writes()) != 1 {
		t.Fatalf("a writes=%d b writes=%d, want 1 each", len(a.Writes()), len(b.Writes()))
	}
}

// TestDistributedCrossServerGroupMutation mirrors scenario S3: S1 hosts A,
// S2 hosts B. AddGroup("B", "g") issued from S1 must round-trip through the
// control protocol to S2, which owns B.
func TestDistributedCrossServerGroupMutation(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	s2 := newTestManager(t, bus, "s2")
	ctx := context.Background()

	a := newFakeConnection("A", "")
	b := newFakeConnection("B", "")
	_ = s1.OnConnected(ctx, a)
	_ = s2.OnConnected(ctx, b)

	if err := s1.AddGroup(ctx, "B", "g"); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}

	if err := s1.InvokeGroup(ctx, "g", "Ping", nil); err != nil {
		t.Fatalf("InvokeGroup() error = %v", err)
	}

	if len(b.Writes()) != 1 {
		t.Fatalf("B writes = %d, want 1", len(b.Writes()))
	}
	if len(a.Writes()) != 0 {
		t.Fatalf("A writes = %d, want 0 (not a group member)", len(a.Writes()))
	}
}

// TestDistributedGroupExceptExcludesLocalMember mirrors scenario S4.
func TestDistributedGroupExceptExcludesLocalMember(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	s2 := newTestManager(t, bus, "s2")
	ctx := context.Background()

	a := newFakeConnection("A", "")
	_ = s1.OnConnected(ctx, a)
	_ = s1.AddGroup(ctx, "A", "g")

	if err := s2.InvokeGroupExcept(ctx, "g", "Ping", nil, []string{"A"}); err != nil {
		t.Fatalf("InvokeGroupExcept() error = %v", err)
	}

	if len(a.Writes()) != 0 {
		t.Fatalf("A writes = %d, want 0 (excluded)", len(a.Writes()))
	}
}

// TestDistributedInvokeUserAcrossServers mirrors scenario S5: two local
// connections on different servers sharing one user id both receive a copy.
func TestDistributedInvokeUserAcrossServers(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	s2 := newTestManager(t, bus, "s2")
	ctx := context.Background()

	a := newFakeConnection("A", "u1")
	b := newFakeConnection("B", "u1")
	_ = s1.OnConnected(ctx, a)
	_ = s2.OnConnected(ctx, b)

	if err := s1.InvokeUser(ctx, "u1", "Ping", nil); err != nil {
		t.Fatalf("InvokeUser() error = %v", err)
	}

	if len(a.Writes()) != 1 || len(b.Writes()) != 1 {
		t.Fatalf("a writes=%d b writes=%d, want 1 each", len(a.Writes()), len(b.Writes()))
	}
}

// TestDistributedRemoveGroupUnknownConnectionTimesOutSuccessfully mirrors
// scenario S6: no server hosts the target connection, so the ack never
// arrives, but the operation still completes without an error.
func TestDistributedRemoveGroupUnknownConnectionTimesOutSuccessfully(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	ctx := context.Background()

	start := time.Now()
	if err := s1.RemoveGroup(ctx, "Z", "g"); err != nil {
		t.Fatalf("RemoveGroup() error = %v, want nil (ack timeout completes successfully)", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("RemoveGroup() returned after %v, want it to wait out the ack timeout", elapsed)
	}
}

func TestDistributedOnDisconnectedUnsubscribesAndClearsGroups(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	ctx := context.Background()

	a := newFakeConnection("A", "u1")
	_ = s1.OnConnected(ctx, a)
	_ = s1.AddGroup(ctx, "A", "g")

	if err := s1.OnDisconnected(ctx, a); err != nil {
		t.Fatalf("OnDisconnected() error = %v", err)
	}

	if members := s1.bucketFor("g").members; len(members) != 0 {
		t.Fatalf("group bucket still has %d members after disconnect", len(members))
	}

	bus.mu.Lock()
	_, stillSubscribed := bus.subscribers[s1.topicConnection("A")]
	bus.mu.Unlock()
	if stillSubscribed {
		t.Fatal("connection topic still subscribed after OnDisconnected")
	}
}

func TestDistributedRejectsEmptyIdentifiers(t *testing.T) {
	bus := newFakeBus()
	s1 := newTestManager(t, bus, "s1")
	ctx := context.Background()

	if err := s1.InvokeConnection(ctx, "", "m", nil); err != ErrInvalidArgument {
		t.Errorf("InvokeConnection(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := s1.AddGroup(ctx, "a", ""); err != ErrInvalidArgument {
		t.Errorf("AddGroup(a, \"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := s1.OnConnected(ctx, nil); err != ErrInvalidArgument {
		t.Errorf("OnConnected(nil) error = %v, want ErrInvalidArgument", err)
	}
}

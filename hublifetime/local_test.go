package hublifetime

import (
	"context"
	"testing"
)

func TestLocalInvokeAllDeliversToEveryConnection(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a, b, c := newFakeConnection("A", ""), newFakeConnection("B", ""), newFakeConnection("C", "")
	for _, conn := range []*fakeConnection{a, b, c} {
		if err := m.OnConnected(ctx, conn); err != nil {
			t.Fatalf("OnConnected(%s) error = %v", conn.id, err)
		}
	}

	if err := m.InvokeAll(ctx, "Echo", []any{"hi"}); err != nil {
		t.Fatalf("InvokeAll() error = %v", err)
	}

	for _, conn := range []*fakeConnection{a, b, c} {
		writes := conn.Writes()
		if len(writes) != 1 {
			t.Fatalf("%s received %d writes, want 1", conn.id, len(writes))
		}
		if writes[0].Target != "Echo" || !writes[0].NonBlocking {
			t.Errorf("%s write = %+v, want target Echo, nonBlocking true", conn.id, writes[0])
		}
	}
}

func TestLocalInvokeAllExceptSkipsExcluded(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a, b, c := newFakeConnection("A", ""), newFakeConnection("B", ""), newFakeConnection("C", "")
	for _, conn := range []*fakeConnection{a, b, c} {
		_ = m.OnConnected(ctx, conn)
	}

	if err := m.InvokeAllExcept(ctx, "Echo", []any{"hi"}, []string{"B"}); err != nil {
		t.Fatalf("InvokeAllExcept() error = %v", err)
	}

	if len(b.Writes()) != 0 {
		t.Fatal("B received a write despite being excluded")
	}
	if len(a.Writes()) != 1 || len(c.Writes()) != 1 {
		t.Fatalf("A writes=%d C writes=%d, want 1 each", len(a.Writes()), len(c.Writes()))
	}
}

func TestLocalGroupMembershipLifecycle(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a := newFakeConnection("A", "")
	_ = m.OnConnected(ctx, a)

	if err := m.AddGroup(ctx, "A", "Chat"); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	if err := m.InvokeGroup(ctx, "chat", "Ping", nil); err != nil { // case-insensitive lookup
		t.Fatalf("InvokeGroup() error = %v", err)
	}
	if len(a.Writes()) != 1 {
		t.Fatalf("writes = %d, want 1 after joining group", len(a.Writes()))
	}

	if err := m.RemoveGroup(ctx, "A", "chat"); err != nil {
		t.Fatalf("RemoveGroup() error = %v", err)
	}
	if err := m.InvokeGroup(ctx, "Chat", "Ping", nil); err != nil {
		t.Fatalf("InvokeGroup() error = %v", err)
	}
	if len(a.Writes()) != 1 {
		t.Fatalf("writes = %d, want still 1 after leaving group", len(a.Writes()))
	}
}

func TestLocalAddGroupTwiceIsIdempotent(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a := newFakeConnection("A", "")
	_ = m.OnConnected(ctx, a)

	_ = m.AddGroup(ctx, "A", "g")
	_ = m.AddGroup(ctx, "A", "g")
	_ = m.InvokeGroup(ctx, "g", "Ping", nil)

	if len(a.Writes()) != 1 {
		t.Fatalf("writes = %d, want exactly 1 (duplicate AddGroup must not double-deliver)", len(a.Writes()))
	}
}

func TestLocalInvokeUserExactMatch(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a := newFakeConnection("A", "Alice")
	_ = m.OnConnected(ctx, a)

	_ = m.InvokeUser(ctx, "alice", "Ping", nil) // different case, must not match
	if len(a.Writes()) != 0 {
		t.Fatal("InvokeUser matched on a case-insensitive user id")
	}

	_ = m.InvokeUser(ctx, "Alice", "Ping", nil)
	if len(a.Writes()) != 1 {
		t.Fatalf("writes = %d, want 1 after exact-case match", len(a.Writes()))
	}
}

func TestLocalOnDisconnectedStopsDelivery(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()
	a := newFakeConnection("A", "")
	_ = m.OnConnected(ctx, a)
	_ = m.AddGroup(ctx, "A", "g")

	if err := m.OnDisconnected(ctx, a); err != nil {
		t.Fatalf("OnDisconnected() error = %v", err)
	}

	_ = m.InvokeAll(ctx, "Echo", nil)
	_ = m.InvokeGroup(ctx, "g", "Ping", nil)
	if len(a.Writes()) != 0 {
		t.Fatalf("writes = %d after disconnect, want 0", len(a.Writes()))
	}
}

func TestLocalInvokeConnectionUnknownIDIsNoOp(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	if err := m.InvokeConnection(context.Background(), "ghost", "Ping", nil); err != nil {
		t.Fatalf("InvokeConnection() error = %v, want nil for unknown id", err)
	}
}

func TestLocalOperationsRejectEmptyIdentifiers(t *testing.T) {
	m := NewLocalLifetimeManager(nil)
	ctx := context.Background()

	if err := m.InvokeConnection(ctx, "", "m", nil); err != ErrInvalidArgument {
		t.Errorf("InvokeConnection(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := m.InvokeGroup(ctx, "", "m", nil); err != ErrInvalidArgument {
		t.Errorf("InvokeGroup(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := m.InvokeUser(ctx, "", "m", nil); err != ErrInvalidArgument {
		t.Errorf("InvokeUser(\"\") error = %v, want ErrInvalidArgument", err)
	}
	if err := m.AddGroup(ctx, "", "g"); err != ErrInvalidArgument {
		t.Errorf("AddGroup(\"\", g) error = %v, want ErrInvalidArgument", err)
	}
	if err := m.OnConnected(ctx, nil); err != ErrInvalidArgument {
		t.Errorf("OnConnected(nil) error = %v, want ErrInvalidArgument", err)
	}
}

package hublifetime

import "testing"

func TestGroupRegistryAddLookupCaseInsensitive(t *testing.T) {
	g := NewGroupRegistry()
	a := newFakeConnection("a", "")
	g.Add(a, "Chat")

	members := g.Lookup("chat")
	if len(members) != 1 || members[0] != a {
		t.Fatalf("Lookup(chat) = %v, want [%v]", members, a)
	}
}

func TestGroupRegistryRemoveDiscardsEmptyBucket(t *testing.T) {
	g := NewGroupRegistry()
	a := newFakeConnection("a", "")
	g.Add(a, "g")
	g.Remove("a", "g")

	if members := g.Lookup("g"); len(members) != 0 {
		t.Fatalf("Lookup(g) after Remove = %v, want empty", members)
	}
	if _, ok := g.groups["g"]; ok {
		t.Fatal("empty bucket for g still present after Remove, want it discarded")
	}
}

func TestGroupRegistryRemoveDisconnected(t *testing.T) {
	g := NewGroupRegistry()
	a := newFakeConnection("a", "")
	g.Add(a, "g1")
	g.Add(a, "g2")

	g.RemoveDisconnected("a")

	if members := g.Lookup("g1"); len(members) != 0 {
		t.Fatalf("Lookup(g1) = %v, want empty", members)
	}
	if members := g.Lookup("g2"); len(members) != 0 {
		t.Fatalf("Lookup(g2) = %v, want empty", members)
	}
}

package hublifetime

import "testing"

func TestFeatureBagGroupMembershipCaseInsensitive(t *testing.T) {
	f := NewFeatureBag()
	if !f.AddGroup("Chat") {
		t.Fatal("AddGroup(Chat) = false on first add, want true")
	}
	if f.AddGroup("chat") {
		t.Fatal("AddGroup(chat) = true on re-entry, want false (already a member)")
	}
	if !f.RemoveGroup("CHAT") {
		t.Fatal("RemoveGroup(CHAT) = false, want true")
	}
	if f.RemoveGroup("chat") {
		t.Fatal("RemoveGroup(chat) = true on second removal, want false")
	}
}

func TestFeatureBagSubscriptions(t *testing.T) {
	f := NewFeatureBag()
	if !f.AddSubscription("t1") {
		t.Fatal("AddSubscription(t1) = false, want true")
	}
	if f.AddSubscription("t1") {
		t.Fatal("AddSubscription(t1) second call = true, want false")
	}
	subs := f.Subscriptions()
	if len(subs) != 1 || subs[0] != "t1" {
		t.Fatalf("Subscriptions() = %v, want [t1]", subs)
	}
	if !f.RemoveSubscription("t1") {
		t.Fatal("RemoveSubscription(t1) = false, want true")
	}
}

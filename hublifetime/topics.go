package hublifetime

import "strings"

// Topic naming is entirely derived from the hub prefix; no other state
// participates. Kept as plain methods on the manager so tests can assert
// topic shapes without constructing a bus.

func (m *DistributedLifetimeManager) topicAll() string {
	return m.hub
}

func (m *DistributedLifetimeManager) topicAllExcept() string {
	return m.hub + ".AllExcept"
}

func (m *DistributedLifetimeManager) topicConnection(connectionID string) string {
	return m.hub + "." + connectionID
}

func (m *DistributedLifetimeManager) topicGroup(groupName string) string {
	return m.hub + ".group." + strings.ToLower(groupName)
}

func (m *DistributedLifetimeManager) topicUser(userID string) string {
	return m.hub + ".user." + userID
}

func (m *DistributedLifetimeManager) topicControlGroup() string {
	return m.hub + ".internal.group"
}

func (m *DistributedLifetimeManager) topicAckInbox(serverID string) string {
	return m.hub + ".internal." + serverID
}

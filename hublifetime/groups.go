package hublifetime

import (
	"strings"
	"sync"
)

// GroupRegistry is the local-variant mapping of group name to the set of
// connections hosted on this server that belong to it. Group names are
// compared case-insensitively.
type GroupRegistry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Connection // lower(groupName) -> connectionID -> Connection
}

// NewGroupRegistry returns an empty group registry.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[string]map[string]Connection)}
}

// Add inserts c into groupName's bucket, creating the bucket if absent.
func (g *GroupRegistry) Add(c Connection, groupName string) {
	key := strings.ToLower(groupName)
	g.mu.Lock()
	defer g.mu.Unlock()
	bucket, ok := g.groups[key]
	if !ok {
		bucket = make(map[string]Connection)
		g.groups[key] = bucket
	}
	bucket[c.ConnectionID()] = c
}

// Remove drops connectionID from groupName's bucket. An empty bucket is
// discarded.
func (g *GroupRegistry) Remove(connectionID, groupName string) {
	key := strings.ToLower(groupName)
	g.mu.Lock()
	defer g.mu.Unlock()
	bucket, ok := g.groups[key]
	if !ok {
		return
	}
	delete(bucket, connectionID)
	if len(bucket) == 0 {
		delete(g.groups, key)
	}
}

// RemoveDisconnected removes connectionID from every group it belongs to.
func (g *GroupRegistry) RemoveDisconnected(connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, bucket := range g.groups {
		if _, ok := bucket[connectionID]; ok {
			delete(bucket, connectionID)
			if len(bucket) == 0 {
				delete(g.groups, key)
			}
		}
	}
}

// Lookup returns a snapshot of connections currently in groupName.
func (g *GroupRegistry) Lookup(groupName string) []Connection {
	key := strings.ToLower(groupName)
	g.mu.RLock()
	defer g.mu.RUnlock()
	bucket := g.groups[key]
	out := make([]Connection, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, c)
	}
	return out
}

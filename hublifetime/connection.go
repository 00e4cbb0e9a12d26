// Package hublifetime routes invocations from server-side hub code to sets
// of connected clients across a fleet of cooperating servers. It exposes two
// interchangeable LifetimeManager implementations: a single-process local
// manager and a bus-backed distributed manager.
package hublifetime

import "context"

// Connection is the transport-supplied contract for one live client
// session. The write sink is assumed to serialize concurrent writes to the
// same connection itself; LifetimeManager never assumes otherwise.
type Connection interface {
	// ConnectionID is stable and unique fleet-wide for the life of the
	// session.
	ConnectionID() string
	// UserID is the authenticated identity behind the connection, or ""
	// if the connection is anonymous.
	UserID() string
	// Features returns the per-connection bag the distributed manager
	// uses to track subscriptions and group membership. Local managers
	// may ignore it.
	Features() *FeatureBag
	// Write delivers one invocation to the client. Errors are logged and
	// swallowed by the manager during fan-out; they never abort delivery
	// to other recipients.
	Write(ctx context.Context, msg *InvocationMessage) error
}

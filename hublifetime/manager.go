package hublifetime

import (
	"context"

	"go.opentelemetry.io/otel"
)

// tracer opens a span per public LifetimeManager operation, the way the
// teacher's service layer opens one span per method on its own
// package-level tracer.
var tracer = otel.Tracer("hublifetime")

// LifetimeManager is the composition root's public contract: it owns
// connection and group bookkeeping and implements fan-out to every
// connection, group, user, or single connection in the fleet. Both the
// local and distributed variants satisfy it.
//
// All operations return once local delivery and/or broker publish has been
// issued, not once remote delivery is observed. A nil connectionID or
// groupName fails synchronously with ErrInvalidArgument.
type LifetimeManager interface {
	OnConnected(ctx context.Context, c Connection) error
	OnDisconnected(ctx context.Context, c Connection) error

	InvokeAll(ctx context.Context, method string, args []any) error
	InvokeAllExcept(ctx context.Context, method string, args []any, excludedIDs []string) error
	InvokeConnection(ctx context.Context, connectionID, method string, args []any) error
	InvokeGroup(ctx context.Context, groupName, method string, args []any) error
	InvokeGroupExcept(ctx context.Context, groupName, method string, args []any, excludedIDs []string) error
	InvokeUser(ctx context.Context, userID, method string, args []any) error

	AddGroup(ctx context.Context, connectionID, groupName string) error
	RemoveGroup(ctx context.Context, connectionID, groupName string) error
}

func writeTo(ctx context.Context, log logSink, c Connection, msg *InvocationMessage) {
	if err := c.Write(ctx, msg); err != nil {
		log.ErrorContext(ctx, "hublifetime: connection write failed", "connection_id", c.ConnectionID(), "err", err)
	}
}

// logSink is the subset of *slog.Logger that writeTo needs. The manager
// constructors themselves take a *slog.Logger.
type logSink interface {
	ErrorContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
}

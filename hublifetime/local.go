package hublifetime

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LocalLifetimeManager is the single-process LifetimeManager: it keeps
// connection and group membership entirely in memory and never touches a
// bus. Every invoke walks the connection list (or consults the group
// registry) exactly once.
type LocalLifetimeManager struct {
	connections *ConnectionRegistry
	groups      *GroupRegistry
	ids         *InvocationIdSource
	log         *slog.Logger
}

// NewLocalLifetimeManager returns a ready-to-use local manager.
func NewLocalLifetimeManager(log *slog.Logger) *LocalLifetimeManager {
	if log == nil {
		log = slog.Default()
	}
	return &LocalLifetimeManager{
		connections: NewConnectionRegistry(),
		groups:      NewGroupRegistry(),
		ids:         NewInvocationIdSource(),
		log:         log,
	}
}

func (m *LocalLifetimeManager) OnConnected(ctx context.Context, c Connection) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.OnConnected")
	defer span.End()
	if c == nil {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("connection_id", c.ConnectionID()), attribute.String("user_id", c.UserID()))
	m.connections.Add(c)
	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (m *LocalLifetimeManager) OnDisconnected(ctx context.Context, c Connection) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.OnDisconnected")
	defer span.End()
	if c == nil {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("connection_id", c.ConnectionID()), attribute.String("user_id", c.UserID()))
	m.connections.Remove(c)
	m.groups.RemoveDisconnected(c.ConnectionID())
	span.SetStatus(codes.Ok, "disconnected")
	return nil
}

func (m *LocalLifetimeManager) newInvocation(method string, args []any) *InvocationMessage {
	return &InvocationMessage{
		InvocationID: m.ids.Next(),
		Target:       method,
		Arguments:    args,
		NonBlocking:  true,
	}
}

func (m *LocalLifetimeManager) InvokeAll(ctx context.Context, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.InvokeAll", trace.WithAttributes(attribute.String("method", method)))
	defer span.End()
	msg := m.newInvocation(method, args)
	for _, c := range m.connections.Snapshot() {
		writeTo(ctx, m.log, c, msg)
	}
	span.SetStatus(codes.Ok, "invoked")
	return nil
}

func (m *LocalLifetimeManager) InvokeAllExcept(ctx context.Context, method string, args []any, excludedIDs []string) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.InvokeAllExcept", trace.WithAttributes(attribute.String("method", method)))
	defer span.End()
	msg := m.newInvocation(method, args)
	excluded := toSet(excludedIDs)
	for _, c := range m.connections.Snapshot() {
		if _, skip := excluded[c.ConnectionID()]; skip {
			continue
		}
		writeTo(ctx, m.log, c, msg)
	}
	span.SetStatus(codes.Ok, "invoked")
	return nil
}

func (m *LocalLifetimeManager) InvokeConnection(ctx context.Context, connectionID, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.InvokeConnection", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("method", method),
	))
	defer span.End()
	if connectionID == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	c, ok := m.connections.Lookup(connectionID)
	if !ok {
		span.SetStatus(codes.Ok, "no such connection")
		return nil
	}
	writeTo(ctx, m.log, c, m.newInvocation(method, args))
	span.SetStatus(codes.Ok, "invoked")
	return nil
}

func (m *LocalLifetimeManager) InvokeGroup(ctx context.Context, groupName, method string, args []any) error {
	return m.InvokeGroupExcept(ctx, groupName, method, args, nil)
}

func (m *LocalLifetimeManager) InvokeGroupExcept(ctx context.Context, groupName, method string, args []any, excludedIDs []string) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.InvokeGroupExcept", trace.WithAttributes(
		attribute.String("group_name", groupName),
		attribute.String("method", method),
	))
	defer span.End()
	if groupName == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	msg := m.newInvocation(method, args)
	excluded := toSet(excludedIDs)
	for _, c := range m.groups.Lookup(groupName) {
		if _, skip := excluded[c.ConnectionID()]; skip {
			continue
		}
		writeTo(ctx, m.log, c, msg)
	}
	span.SetStatus(codes.Ok, "invoked")
	return nil
}

func (m *LocalLifetimeManager) InvokeUser(ctx context.Context, userID, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.InvokeUser", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("method", method),
	))
	defer span.End()
	if userID == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	msg := m.newInvocation(method, args)
	for _, c := range m.connections.Snapshot() {
		if c.UserID() == userID {
			writeTo(ctx, m.log, c, msg)
		}
	}
	span.SetStatus(codes.Ok, "invoked")
	return nil
}

// AddGroup is a no-op if connectionID is not currently registered on this
// server — the local variant never reaches across the fleet.
func (m *LocalLifetimeManager) AddGroup(ctx context.Context, connectionID, groupName string) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.AddGroup", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("group_name", groupName),
	))
	defer span.End()
	if connectionID == "" || groupName == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	c, ok := m.connections.Lookup(connectionID)
	if !ok {
		span.SetStatus(codes.Ok, "no such connection")
		return nil
	}
	m.groups.Add(c, groupName)
	span.SetStatus(codes.Ok, "added")
	return nil
}

func (m *LocalLifetimeManager) RemoveGroup(ctx context.Context, connectionID, groupName string) error {
	ctx, span := tracer.Start(ctx, "LocalLifetimeManager.RemoveGroup", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("group_name", groupName),
	))
	defer span.End()
	if connectionID == "" || groupName == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	if _, ok := m.connections.Lookup(connectionID); !ok {
		span.SetStatus(codes.Ok, "no such connection")
		return nil
	}
	m.groups.Remove(connectionID, groupName)
	span.SetStatus(codes.Ok, "removed")
	return nil
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

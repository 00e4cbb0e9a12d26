package hublifetime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// groupBucket is the distributed variant's per-group membership set,
// scoped to the connections this server hosts. Its own lock guards both
// the member set and the subscribe/unsubscribe transition; lock order
// relative to a connection's feature bag is always feature before bucket.
type groupBucket struct {
	mu      sync.Mutex
	members map[string]Connection
}

// DistributedLifetimeManager is the bus-backed LifetimeManager: invocations
// that target a locally-hosted connection are short-circuited, everything
// else is published on the hub's topics and fanned out by whichever
// server's subscription callback picks it up, including this one.
type DistributedLifetimeManager struct {
	hub      string
	serverID string
	bus      Bus
	codec    *WireCodec
	log      *slog.Logger

	connections *ConnectionRegistry
	ids         *InvocationIdSource
	acks        *AckTracker

	bucketsMu sync.Mutex
	buckets   map[string]*groupBucket

	userMu   sync.Mutex
	userRefs map[string]int
}

// NewDistributedLifetimeManager returns a manager that has not yet
// subscribed to anything; call Start before registering connections.
func NewDistributedLifetimeManager(hub, serverID string, bus Bus, ackTimeout time.Duration, log *slog.Logger) *DistributedLifetimeManager {
	if log == nil {
		log = slog.Default()
	}
	return &DistributedLifetimeManager{
		hub:         hub,
		serverID:    serverID,
		bus:         bus,
		codec:       NewWireCodec(),
		log:         log,
		connections: NewConnectionRegistry(),
		ids:         NewInvocationIdSource(),
		acks:        NewAckTracker(ackTimeout),
		buckets:     make(map[string]*groupBucket),
		userRefs:    make(map[string]int),
	}
}

// Start subscribes to the topics every server listens to regardless of
// which connections it hosts: broadcast, broadcast-with-exclusions, the
// shared group control inbox, and this server's private ack inbox.
func (m *DistributedLifetimeManager) Start(ctx context.Context) error {
	subs := []struct {
		topic   string
		handler BusHandler
	}{
		{m.topicAll(), m.handleBroadcast},
		{m.topicAllExcept(), m.handleBroadcastExcept},
		{m.topicControlGroup(), m.handleControlGroup},
		{m.topicAckInbox(m.serverID), m.handleAckInbox},
	}
	for _, s := range subs {
		if err := m.bus.Subscribe(ctx, s.topic, s.handler); err != nil {
			return fmt.Errorf("%w: subscribe %s: %v", ErrBusUnavailable, s.topic, err)
		}
	}
	return nil
}

// Close tears down every subscription and completes any outstanding ack
// futures.
func (m *DistributedLifetimeManager) Close(ctx context.Context) error {
	m.acks.Dispose()
	if err := m.bus.UnsubscribeAll(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	return nil
}

func (m *DistributedLifetimeManager) newInvocation(method string, args []any) *InvocationMessage {
	return &InvocationMessage{
		InvocationID: m.ids.Next(),
		Target:       method,
		Arguments:    args,
		NonBlocking:  true,
	}
}

func (m *DistributedLifetimeManager) OnConnected(ctx context.Context, c Connection) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.OnConnected")
	defer span.End()
	if c == nil {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("connection_id", c.ConnectionID()),
		attribute.String("user_id", c.UserID()),
		attribute.String("topic", m.topicConnection(c.ConnectionID())),
	)
	m.connections.Add(c)
	if err := m.bus.Subscribe(ctx, m.topicConnection(c.ConnectionID()), m.handleConnectionTopic(c.ConnectionID())); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return err
	}
	c.Features().AddSubscription(m.topicConnection(c.ConnectionID()))
	if userID := c.UserID(); userID != "" {
		if err := m.addUserRef(ctx, userID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user subscribe failed")
			return err
		}
		c.Features().AddSubscription(m.topicUser(userID))
	}
	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (m *DistributedLifetimeManager) OnDisconnected(ctx context.Context, c Connection) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.OnDisconnected")
	defer span.End()
	if c == nil {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("connection_id", c.ConnectionID()),
		attribute.String("user_id", c.UserID()),
		attribute.String("topic", m.topicConnection(c.ConnectionID())),
	)
	m.connections.Remove(c)
	for _, groupName := range c.Features().Groups() {
		m.removeGroupCore(ctx, c, groupName)
	}
	if err := m.bus.Unsubscribe(ctx, m.topicConnection(c.ConnectionID())); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "hublifetime: connection unsubscribe failed", "connection_id", c.ConnectionID(), "err", err)
	}
	c.Features().RemoveSubscription(m.topicConnection(c.ConnectionID()))
	if userID := c.UserID(); userID != "" {
		m.releaseUserRef(ctx, userID)
		c.Features().RemoveSubscription(m.topicUser(userID))
	}
	span.SetStatus(codes.Ok, "disconnected")
	return nil
}

// addUserRef subscribes to the user topic on the 0->1 transition of local
// connections sharing userID, and no-ops otherwise; multiple local
// connections for the same user must not race to double-subscribe or
// unsubscribe a shared topic out from under each other.
func (m *DistributedLifetimeManager) addUserRef(ctx context.Context, userID string) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()
	if m.userRefs[userID] > 0 {
		m.userRefs[userID]++
		return nil
	}
	if err := m.bus.Subscribe(ctx, m.topicUser(userID), m.handleUserTopic(userID)); err != nil {
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	m.userRefs[userID] = 1
	return nil
}

func (m *DistributedLifetimeManager) releaseUserRef(ctx context.Context, userID string) {
	m.userMu.Lock()
	defer m.userMu.Unlock()
	n, ok := m.userRefs[userID]
	if !ok {
		return
	}
	n--
	if n <= 0 {
		delete(m.userRefs, userID)
		if err := m.bus.Unsubscribe(ctx, m.topicUser(userID)); err != nil {
			m.log.ErrorContext(ctx, "hublifetime: user unsubscribe failed", "user_id", userID, "err", err)
		}
		return
	}
	m.userRefs[userID] = n
}

func (m *DistributedLifetimeManager) InvokeAll(ctx context.Context, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.InvokeAll", trace.WithAttributes(
		attribute.String("method", method),
		attribute.String("topic", m.topicAll()),
	))
	defer span.End()
	payload, err := m.codec.EncodeInvocation(m.newInvocation(method, args))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, m.topicAll(), payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (m *DistributedLifetimeManager) InvokeAllExcept(ctx context.Context, method string, args []any, excludedIDs []string) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.InvokeAllExcept", trace.WithAttributes(
		attribute.String("method", method),
		attribute.String("topic", m.topicAllExcept()),
	))
	defer span.End()
	msg := &ExcludingInvocationMessage{InvocationMessage: *m.newInvocation(method, args), ExcludedIDs: excludedIDs}
	payload, err := m.codec.EncodeExcluding(msg)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, m.topicAllExcept(), payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (m *DistributedLifetimeManager) InvokeConnection(ctx context.Context, connectionID, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.InvokeConnection", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("method", method),
	))
	defer span.End()
	if connectionID == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	msg := m.newInvocation(method, args)
	if c, ok := m.connections.Lookup(connectionID); ok {
		writeTo(ctx, m.log, c, msg)
		span.SetStatus(codes.Ok, "delivered locally")
		return nil
	}
	topic := m.topicConnection(connectionID)
	span.SetAttributes(attribute.String("topic", topic))
	payload, err := m.codec.EncodeInvocation(msg)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, topic, payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (m *DistributedLifetimeManager) InvokeGroup(ctx context.Context, groupName, method string, args []any) error {
	return m.InvokeGroupExcept(ctx, groupName, method, args, nil)
}

func (m *DistributedLifetimeManager) InvokeGroupExcept(ctx context.Context, groupName, method string, args []any, excludedIDs []string) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.InvokeGroupExcept", trace.WithAttributes(
		attribute.String("group_name", groupName),
		attribute.String("method", method),
	))
	defer span.End()
	if groupName == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	topic := m.topicGroup(groupName)
	span.SetAttributes(attribute.String("topic", topic))
	msg := &ExcludingInvocationMessage{InvocationMessage: *m.newInvocation(method, args), ExcludedIDs: excludedIDs}
	payload, err := m.codec.EncodeExcluding(msg)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, topic, payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (m *DistributedLifetimeManager) InvokeUser(ctx context.Context, userID, method string, args []any) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.InvokeUser", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("method", method),
	))
	defer span.End()
	if userID == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	topic := m.topicUser(userID)
	span.SetAttributes(attribute.String("topic", topic))
	payload, err := m.codec.EncodeInvocation(m.newInvocation(method, args))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, topic, payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

// AddGroup applies the mutation directly if connectionID is hosted here;
// otherwise it round-trips through the control protocol and awaits the
// remote server's ack, completing successfully on timeout regardless of
// whether any server actually owns connectionID.
func (m *DistributedLifetimeManager) AddGroup(ctx context.Context, connectionID, groupName string) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.AddGroup", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("group_name", groupName),
	))
	defer span.End()
	return m.mutateGroup(ctx, span, ControlAdd, connectionID, groupName)
}

func (m *DistributedLifetimeManager) RemoveGroup(ctx context.Context, connectionID, groupName string) error {
	ctx, span := tracer.Start(ctx, "DistributedLifetimeManager.RemoveGroup", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("group_name", groupName),
	))
	defer span.End()
	return m.mutateGroup(ctx, span, ControlRemove, connectionID, groupName)
}

func (m *DistributedLifetimeManager) mutateGroup(ctx context.Context, span trace.Span, action ControlAction, connectionID, groupName string) error {
	if connectionID == "" || groupName == "" {
		err := ErrInvalidArgument
		span.RecordError(err)
		return err
	}
	if c, ok := m.connections.Lookup(connectionID); ok {
		if action == ControlAdd {
			m.addGroupCore(ctx, c, groupName)
		} else {
			m.removeGroupCore(ctx, c, groupName)
		}
		span.SetStatus(codes.Ok, "applied locally")
		return nil
	}
	span.SetAttributes(attribute.String("topic", m.topicControlGroup()))
	correlationID := m.acks.CreateAck()
	payload, err := m.codec.EncodeControl(&ControlMessage{
		Action:        action,
		CorrelationID: correlationID,
		ConnectionID:  connectionID,
		GroupName:     groupName,
		OriginServer:  m.serverID,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		span.RecordError(err)
		return err
	}
	if err := m.bus.Publish(ctx, m.topicControlGroup(), payload); err != nil {
		err = fmt.Errorf("%w: %v", ErrBusUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "control publish failed")
		return err
	}
	m.acks.Wait(ctx, correlationID)
	span.SetStatus(codes.Ok, "acked or timed out")
	return nil
}

func (m *DistributedLifetimeManager) bucketFor(groupName string) *groupBucket {
	key := strings.ToLower(groupName)
	m.bucketsMu.Lock()
	defer m.bucketsMu.Unlock()
	b, ok := m.buckets[key]
	if !ok {
		b = &groupBucket{members: make(map[string]Connection)}
		m.buckets[key] = b
	}
	return b
}

func (m *DistributedLifetimeManager) pruneBucket(groupName string, bucket *groupBucket) {
	key := strings.ToLower(groupName)
	m.bucketsMu.Lock()
	defer m.bucketsMu.Unlock()
	if cur, ok := m.buckets[key]; ok && cur == bucket && len(bucket.members) == 0 {
		delete(m.buckets, key)
	}
}

// addGroupCore inserts connection into groupName's bucket, subscribing to
// the group topic on the 0->1 transition. Lock order is always the
// connection's feature bag before the bucket.
func (m *DistributedLifetimeManager) addGroupCore(ctx context.Context, c Connection, groupName string) {
	if !c.Features().AddGroup(groupName) {
		return
	}
	bucket := m.bucketFor(groupName)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	subscribe := len(bucket.members) == 0
	bucket.members[c.ConnectionID()] = c
	if subscribe {
		if err := m.bus.Subscribe(ctx, m.topicGroup(groupName), m.handleGroupTopic(groupName)); err != nil {
			m.log.ErrorContext(ctx, "hublifetime: group subscribe failed", "group", groupName, "err", err)
		}
	}
}

// removeGroupCore drops connection from groupName's bucket, unsubscribing
// and pruning the bucket on the 1->0 transition. Called both from the
// public RemoveGroup and from OnDisconnected, where it must never generate
// cross-server control traffic for a connection that is already leaving.
func (m *DistributedLifetimeManager) removeGroupCore(ctx context.Context, c Connection, groupName string) {
	if !c.Features().RemoveGroup(groupName) {
		return
	}
	key := strings.ToLower(groupName)
	m.bucketsMu.Lock()
	bucket, ok := m.buckets[key]
	m.bucketsMu.Unlock()
	if !ok {
		return
	}
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	delete(bucket.members, c.ConnectionID())
	if len(bucket.members) == 0 {
		if err := m.bus.Unsubscribe(ctx, m.topicGroup(groupName)); err != nil {
			m.log.ErrorContext(ctx, "hublifetime: group unsubscribe failed", "group", groupName, "err", err)
		}
		m.pruneBucket(groupName, bucket)
	}
}

func (m *DistributedLifetimeManager) handleBroadcast(topic string, payload []byte) {
	ctx := context.Background()
	msg, err := m.codec.DecodeInvocation(payload)
	if err != nil {
		m.log.ErrorContext(ctx, "hublifetime: broadcast decode failed", "topic", topic, "err", err)
		return
	}
	for _, c := range m.connections.Snapshot() {
		writeTo(ctx, m.log, c, msg)
	}
}

func (m *DistributedLifetimeManager) handleBroadcastExcept(topic string, payload []byte) {
	ctx := context.Background()
	msg, err := m.codec.DecodeExcluding(payload)
	if err != nil {
		m.log.ErrorContext(ctx, "hublifetime: broadcast-except decode failed", "topic", topic, "err", err)
		return
	}
	excluded := toSet(msg.ExcludedIDs)
	for _, c := range m.connections.Snapshot() {
		if _, skip := excluded[c.ConnectionID()]; skip {
			continue
		}
		writeTo(ctx, m.log, c, &msg.InvocationMessage)
	}
}

func (m *DistributedLifetimeManager) handleConnectionTopic(connectionID string) BusHandler {
	return func(topic string, payload []byte) {
		ctx := context.Background()
		c, ok := m.connections.Lookup(connectionID)
		if !ok {
			return
		}
		msg, err := m.codec.DecodeInvocation(payload)
		if err != nil {
			m.log.ErrorContext(ctx, "hublifetime: connection decode failed", "topic", topic, "err", err)
			return
		}
		writeTo(ctx, m.log, c, msg)
	}
}

func (m *DistributedLifetimeManager) handleUserTopic(userID string) BusHandler {
	return func(topic string, payload []byte) {
		ctx := context.Background()
		msg, err := m.codec.DecodeInvocation(payload)
		if err != nil {
			m.log.ErrorContext(ctx, "hublifetime: user decode failed", "topic", topic, "err", err)
			return
		}
		for _, c := range m.connections.Snapshot() {
			if c.UserID() == userID {
				writeTo(ctx, m.log, c, msg)
			}
		}
	}
}

func (m *DistributedLifetimeManager) handleGroupTopic(groupName string) BusHandler {
	return func(topic string, payload []byte) {
		ctx := context.Background()
		msg, err := m.codec.DecodeExcluding(payload)
		if err != nil {
			m.log.ErrorContext(ctx, "hublifetime: group decode failed", "topic", topic, "err", err)
			return
		}
		excluded := toSet(msg.ExcludedIDs)
		bucket := m.bucketFor(groupName)
		bucket.mu.Lock()
		members := make([]Connection, 0, len(bucket.members))
		for _, c := range bucket.members {
			members = append(members, c)
		}
		bucket.mu.Unlock()
		for _, c := range members {
			if _, skip := excluded[c.ConnectionID()]; skip {
				continue
			}
			writeTo(ctx, m.log, c, &msg.InvocationMessage)
		}
	}
}

// handleControlGroup applies an Add/Remove mutation when connectionID
// resolves locally, then acks the originating server. A connection that
// resolves on no server at all simply leaves the originator's ack to time
// out; that is by design, not a bug.
func (m *DistributedLifetimeManager) handleControlGroup(topic string, payload []byte) {
	ctx := context.Background()
	ctrl, err := m.codec.DecodeControl(payload)
	if err != nil {
		m.log.ErrorContext(ctx, "hublifetime: control decode failed", "topic", topic, "err", err)
		return
	}
	c, ok := m.connections.Lookup(ctrl.ConnectionID)
	if !ok {
		return
	}
	switch ctrl.Action {
	case ControlAdd:
		m.addGroupCore(ctx, c, ctrl.GroupName)
	case ControlRemove:
		m.removeGroupCore(ctx, c, ctrl.GroupName)
	default:
		return
	}
	ack, err := m.codec.EncodeControl(&ControlMessage{
		Action:        ControlAck,
		CorrelationID: ctrl.CorrelationID,
		OriginServer:  m.serverID,
	})
	if err != nil {
		m.log.ErrorContext(ctx, "hublifetime: ack encode failed", "err", err)
		return
	}
	if err := m.bus.Publish(ctx, m.topicAckInbox(ctrl.OriginServer), ack); err != nil {
		m.log.ErrorContext(ctx, "hublifetime: ack publish failed", "origin_server", ctrl.OriginServer, "err", err)
	}
}

func (m *DistributedLifetimeManager) handleAckInbox(topic string, payload []byte) {
	ctx := context.Background()
	ctrl, err := m.codec.DecodeControl(payload)
	if err != nil {
		m.log.ErrorContext(ctx, "hublifetime: ack decode failed", "topic", topic, "err", err)
		return
	}
	if ctrl.Action == ControlAck {
		m.acks.TriggerAck(ctrl.CorrelationID)
	}
}

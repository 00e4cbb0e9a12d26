package hublifetime

import "context"

// ClientProxy is a narrow handle bound to one fan-out target — all
// connections, one connection, one group, or one user — that lets calling
// code say Send instead of naming which LifetimeManager operation applies.
type ClientProxy interface {
	Send(ctx context.Context, method string, args ...any) error
}

// HubClients is a convenience façade over LifetimeManager's flat
// operations, grouped the way application code addresses recipients: the
// whole hub, the caller, one connection, one group, or one user. It adds
// no behavior of its own — every method is a thin call into the
// LifetimeManager it wraps.
type HubClients interface {
	All() ClientProxy
	AllExcept(excludedIDs ...string) ClientProxy
	Caller(connectionID string) ClientProxy
	Client(connectionID string) ClientProxy
	Group(groupName string) ClientProxy
	GroupExcept(groupName string, excludedIDs ...string) ClientProxy
	User(userID string) ClientProxy
}

// NewHubClients wraps manager in the HubClients façade.
func NewHubClients(manager LifetimeManager) HubClients {
	return &hubClients{manager: manager}
}

type hubClients struct {
	manager LifetimeManager
}

func (h *hubClients) All() ClientProxy {
	return &allProxy{manager: h.manager}
}

func (h *hubClients) AllExcept(excludedIDs ...string) ClientProxy {
	return &allExceptProxy{manager: h.manager, excludedIDs: excludedIDs}
}

// Caller addresses the connection that invoked the current hub method.
// This layer has no notion of "the current invocation" — that belongs to
// the hub-dispatch collaborator spec §1 treats as external — so Caller is
// just Client under the name application code reaches for inside a hub
// method body.
func (h *hubClients) Caller(connectionID string) ClientProxy {
	return h.Client(connectionID)
}

func (h *hubClients) Client(connectionID string) ClientProxy {
	return &connectionProxy{manager: h.manager, connectionID: connectionID}
}

func (h *hubClients) Group(groupName string) ClientProxy {
	return &groupProxy{manager: h.manager, groupName: groupName}
}

func (h *hubClients) GroupExcept(groupName string, excludedIDs ...string) ClientProxy {
	return &groupExceptProxy{manager: h.manager, groupName: groupName, excludedIDs: excludedIDs}
}

func (h *hubClients) User(userID string) ClientProxy {
	return &userProxy{manager: h.manager, userID: userID}
}

type allProxy struct{ manager LifetimeManager }

func (p *allProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeAll(ctx, method, args)
}

type allExceptProxy struct {
	manager     LifetimeManager
	excludedIDs []string
}

func (p *allExceptProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeAllExcept(ctx, method, args, p.excludedIDs)
}

type connectionProxy struct {
	manager      LifetimeManager
	connectionID string
}

func (p *connectionProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeConnection(ctx, p.connectionID, method, args)
}

type groupProxy struct {
	manager   LifetimeManager
	groupName string
}

func (p *groupProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeGroup(ctx, p.groupName, method, args)
}

type groupExceptProxy struct {
	manager     LifetimeManager
	groupName   string
	excludedIDs []string
}

func (p *groupExceptProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeGroupExcept(ctx, p.groupName, method, args, p.excludedIDs)
}

type userProxy struct {
	manager LifetimeManager
	userID  string
}

func (p *userProxy) Send(ctx context.Context, method string, args ...any) error {
	return p.manager.InvokeUser(ctx, p.userID, method, args)
}

// GroupManager is the group-mutation half of the façade, mirroring
// AddGroup/RemoveGroup under names application code reads more naturally
// at call sites that only ever touch groups.
type GroupManager interface {
	AddToGroup(ctx context.Context, connectionID, groupName string) error
	RemoveFromGroup(ctx context.Context, connectionID, groupName string) error
}

// NewGroupManager wraps manager in the GroupManager façade.
func NewGroupManager(manager LifetimeManager) GroupManager {
	return &groupManager{manager: manager}
}

type groupManager struct {
	manager LifetimeManager
}

func (g *groupManager) AddToGroup(ctx context.Context, connectionID, groupName string) error {
	return g.manager.AddGroup(ctx, connectionID, groupName)
}

func (g *groupManager) RemoveFromGroup(ctx context.Context, connectionID, groupName string) error {
	return g.manager.RemoveGroup(ctx, connectionID, groupName)
}

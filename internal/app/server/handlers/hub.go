package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/A8-Moke/SignalR/hublifetime"
	"github.com/A8-Moke/SignalR/pkg/logging"
)

// invokeRequest is the body every invoke endpoint accepts: the client
// method to call and its positional arguments.
type invokeRequest struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// HubHandler exposes server-initiated invocations over HTTP, standing in
// for application hub code that would otherwise call HubClients directly
// in-process. It is the one place this demo server plays the role of the
// "hub programming model" the lifetime manager treats as an external
// collaborator.
type HubHandler struct {
	clients hublifetime.HubClients
	groups  hublifetime.GroupManager
}

func NewHubHandler(clients hublifetime.HubClients, groups hublifetime.GroupManager) *HubHandler {
	return &HubHandler{clients: clients, groups: groups}
}

func (h *HubHandler) InvokeAll(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.clients.All().Send(r.Context(), req.Method, req.Args...))
}

func (h *HubHandler) InvokeConnection(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.clients.Client(r.PathValue("id")).Send(r.Context(), req.Method, req.Args...))
}

func (h *HubHandler) InvokeGroup(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.clients.Group(r.PathValue("group")).Send(r.Context(), req.Method, req.Args...))
}

func (h *HubHandler) InvokeUser(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.clients.User(r.PathValue("id")).Send(r.Context(), req.Method, req.Args...))
}

func (h *HubHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectionID string `json:"connection_id"`
	}
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.groups.AddToGroup(r.Context(), req.ConnectionID, r.PathValue("group")))
}

func (h *HubHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectionID string `json:"connection_id"`
	}
	if !decodeInvoke(w, r, &req) {
		return
	}
	h.respond(w, r, h.groups.RemoveFromGroup(r.Context(), req.ConnectionID, r.PathValue("group")))
}

func decodeInvoke(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *HubHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		log := logging.FromContext(r.Context())
		log.ErrorContext(r.Context(), "hub handler - invoke failed", logging.Err(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

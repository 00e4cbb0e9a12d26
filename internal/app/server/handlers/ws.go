package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/A8-Moke/SignalR/hublifetime"
	wsadapter "github.com/A8-Moke/SignalR/internal/plugins/ws"
	"github.com/A8-Moke/SignalR/pkg/logging"
	"github.com/A8-Moke/SignalR/pkg/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientCommand is the minimal client->server control protocol this demo
// server understands. Method dispatch into application hub code is
// explicitly out of scope; join/leave is the one operation a client needs
// to drive group membership without a server-side trigger.
type clientCommand struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WSHandler struct {
	manager hublifetime.LifetimeManager
}

func NewWSHandler(manager hublifetime.LifetimeManager) *WSHandler {
	return &WSHandler{manager: manager}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)

	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", logging.Err(err))
		cancel()
		return
	}

	connectionID := uuid.NewString()
	wsConn := wsadapter.New(ctx, conn, connectionID, userID)

	if err := h.manager.OnConnected(ctx, wsConn); err != nil {
		log.ErrorContext(ctx, "ws handler - on connected failed", slog.String("connection_id", connectionID), logging.Err(err))
		wsConn.Close()
		cancel()
		return
	}
	log.InfoContext(ctx, "ws handler - connection established", logging.ConnectionID(connectionID), logging.UserID(userID))

	defer func() {
		_ = h.manager.OnDisconnected(context.Background(), wsConn)
		cancel()
	}()

	wsConn.ReadLoop(func(data []byte) {
		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.ErrorContext(ctx, "ws handler - bad client command", logging.Err(err))
			return
		}
		switch cmd.Action {
		case "join":
			if err := h.manager.AddGroup(ctx, connectionID, cmd.Group); err != nil {
				log.ErrorContext(ctx, "ws handler - add group failed", logging.GroupName(cmd.Group), logging.Err(err))
			}
		case "leave":
			if err := h.manager.RemoveGroup(ctx, connectionID, cmd.Group); err != nil {
				log.ErrorContext(ctx, "ws handler - remove group failed", logging.GroupName(cmd.Group), logging.Err(err))
			}
		}
	})
}

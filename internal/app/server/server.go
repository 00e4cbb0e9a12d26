package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/A8-Moke/SignalR/hublifetime"
	"github.com/A8-Moke/SignalR/internal/app/server/handlers"
	"github.com/A8-Moke/SignalR/internal/platform/authn"
	"github.com/A8-Moke/SignalR/pkg/middleware"
)

type Server struct {
	mux         *http.ServeMux
	addr        string
	log         *slog.Logger
	authHandler *handlers.AuthHandler
	wsHandler   *handlers.WSHandler
	hubHandler  *handlers.HubHandler
	tokenSvc    *authn.TokenService
}

func NewServer(
	log *slog.Logger,
	addr string,
	manager hublifetime.LifetimeManager,
	tokenSvc *authn.TokenService,
) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		addr:        addr,
		log:         log,
		authHandler: handlers.NewAuthHandler(tokenSvc),
		wsHandler:   handlers.NewWSHandler(manager),
		hubHandler:  handlers.NewHubHandler(hublifetime.NewHubClients(manager), hublifetime.NewGroupManager(manager)),
		tokenSvc:    tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	s.mux.HandleFunc("POST /auth/token", s.authHandler.IssueToken)
	s.mux.Handle("/ws", auth(http.HandlerFunc(s.wsHandler.Handler)))

	s.mux.HandleFunc("POST /hub/all", s.hubHandler.InvokeAll)
	s.mux.HandleFunc("POST /hub/connections/{id}", s.hubHandler.InvokeConnection)
	s.mux.HandleFunc("POST /hub/groups/{group}", s.hubHandler.InvokeGroup)
	s.mux.HandleFunc("POST /hub/groups/{group}/join", s.hubHandler.JoinGroup)
	s.mux.HandleFunc("POST /hub/groups/{group}/leave", s.hubHandler.LeaveGroup)
	s.mux.HandleFunc("POST /hub/users/{id}", s.hubHandler.InvokeUser)
}

func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware("hublifetime")(middleware.RequestLogger(s.log)(s.mux))
}

func (s *Server) Start() error {
	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.log.Info("server starting", slog.String("addr", s.addr))
	return httpServer.ListenAndServe()
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/A8-Moke/SignalR/hublifetime"
	"github.com/A8-Moke/SignalR/internal/app/server"
	"github.com/A8-Moke/SignalR/internal/config"
	"github.com/A8-Moke/SignalR/internal/platform/authn"
	"github.com/A8-Moke/SignalR/internal/platform/telemetry"
	"github.com/A8-Moke/SignalR/internal/plugins/redisbus"
	"github.com/A8-Moke/SignalR/pkg/logging"

	"github.com/google/uuid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	log := logging.NewLogger(*cfg.Logger)
	log.Info("starting application", logging.Hub(cfg.Hub.Name))

	otelShutdown, err := telemetry.Init(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", logging.Err(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error("telemetry shutdown failed", logging.Err(err))
			}
		}()
	}

	rdb, err := redisbus.NewRedisClient(ctx, *cfg.Bus)
	if err != nil {
		log.Error("bus connection failed", slog.String("url", cfg.Bus.URL), logging.Err(err))
		return
	}
	defer rdb.Close()
	log.Info("bus connected")

	bus := redisbus.New(rdb)

	serverID := cfg.Hub.ServerID
	if serverID == "" {
		serverID = uuid.NewString()
	}

	manager := hublifetime.NewDistributedLifetimeManager(cfg.Hub.Name, serverID, bus, cfg.Ack.Timeout, log)
	if err := manager.Start(ctx); err != nil {
		log.Error("lifetime manager start failed", logging.Err(err))
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := manager.Close(shutdownCtx); err != nil {
			log.Error("lifetime manager shutdown failed", logging.Err(err))
		}
	}()

	tokenSvc := authn.NewTokenService(cfg.SecretToken)
	srv := server.NewServer(log, cfg.Service.Addr, manager, tokenSvc)
	if err := srv.Start(); err != nil {
		log.Error("server exited", logging.Err(err))
	}
}

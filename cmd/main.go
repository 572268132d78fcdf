package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/app/registry"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/app/server"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/config"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/contracts"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/services"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/platform/logger"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/platform/telemetry"
	redisPlugin "github.com/schwenzfeuer/wunschkiste-sub000/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting relay")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Presence is strictly optional: without Redis the relay still fans out,
	// only the stats surface loses its online list.
	var presence contracts.PresenceStore
	if cfg.Redis.URL != "" {
		var rdb *goredis.Client
		if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
			log.Warn("redis connection failed, presence disabled", "url", cfg.Redis.URL, "err", err)
		} else {
			log.Info("redis connected")
			presence = redisPlugin.NewRedisPresenceStore(rdb)
			defer rdb.Close()
		}
	}

	// Core
	rooms := registry.NewRegistry()
	relaySvc := services.NewRelayService(log, rooms, presence)

	// Server
	srv := server.NewServer(log, *cfg, relaySvc)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped with error", "err", err)
	}
}

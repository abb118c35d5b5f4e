package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/bet-feed/cache"
	httpapi "github.com/shenwilly/ubi-games/internal/bet-feed/http"
	"github.com/shenwilly/ubi-games/internal/bet-feed/repo"
	"github.com/shenwilly/ubi-games/internal/bet-feed/ws"
	sharedcache "github.com/shenwilly/ubi-games/internal/shared/cache"
	"github.com/shenwilly/ubi-games/internal/shared/config"
	"github.com/shenwilly/ubi-games/internal/shared/db"
	"github.com/shenwilly/ubi-games/internal/shared/logger"
	"github.com/shenwilly/ubi-games/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Hub WebSocket alimentado pelo Pub/Sub do Redis (preenchido pelo indexer)
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, redisClient, hub)

	api := &httpapi.API{
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    cache.New(redisClient),
	}

	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	mux.HandleFunc("/ws", hub.HandleWS)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	addr := ":" + cfg.HTTPPort
	log.Info("bet-feed-service listening", zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

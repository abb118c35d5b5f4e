package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/bet-indexer/cache"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/consumer"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/pubsub"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/repo"
	sharedcache "github.com/shenwilly/ubi-games/internal/shared/cache"
	"github.com/shenwilly/ubi-games/internal/shared/config"
	"github.com/shenwilly/ubi-games/internal/shared/db"
	"github.com/shenwilly/ubi-games/internal/shared/kafka"
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

	// Inicializa dependências: Postgres e Redis
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

	// Um único consumer group cobre os dois tópicos de eventos de aposta
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "bet-indexer",
		cfg.TopicBetCreated, cfg.TopicBetFinalized)
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus do pipeline de projeção
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_idx_messages_consumed_total", Help: "mensagens consumidas"})
	projected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_idx_projected_total", Help: "upserts aplicados por tópico"}, []string{"topic"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_idx_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, projected, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlq,
		Repo:        repo.NewPostgres(pg),
		Cache:       cache.NewRedisCache(redisClient, 60*time.Second),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient),

		OnConsumed:  func() { consumed.Inc() },
		OnProjected: func(topic string) { projected.WithLabelValues(topic).Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bet-indexer-worker started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("bet-indexer-worker stopped")
}

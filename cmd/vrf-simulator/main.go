package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/shared/config"
	"github.com/shenwilly/ubi-games/internal/shared/kafka"
	"github.com/shenwilly/ubi-games/internal/shared/logger"
	"github.com/shenwilly/ubi-games/internal/shared/metrics"
	"github.com/shenwilly/ubi-games/internal/vrf-simulator/client"
	"github.com/shenwilly/ubi-games/internal/vrf-simulator/consumer"
	"github.com/shenwilly/ubi-games/internal/vrf-simulator/randomizer"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessRequested, "vrf-simulator")
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequestedDLQ)
	defer dlq.Close()

	// Métricas Prometheus do loop de fulfillment
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "vrf_sim_requests_consumed_total", Help: "pedidos de aleatoriedade consumidos"})
	fulfilled := prometheus.NewCounter(prometheus.CounterOpts{Name: "vrf_sim_fulfillments_total", Help: "callbacks de fulfillment entregues"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vrf_sim_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, fulfilled, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		DLQ:        dlq,
		Randomizer: randomizer.New(cfg.VRFServerSeed),
		Client:     client.New(cfg.UbirollURL, cfg.VRFCallbackToken),

		OnConsumed:  func() { consumed.Inc() },
		OnFulfilled: func() { fulfilled.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// sem dependências locais além do Kafka: health é só liveness
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return nil
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("vrf-simulator started", zap.String("ubiroll_url", cfg.UbirollURL))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("vrf-simulator stopped")
}

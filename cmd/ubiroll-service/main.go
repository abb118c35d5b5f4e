package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/engine"
	"github.com/shenwilly/ubi-games/internal/oracle"
	"github.com/shenwilly/ubi-games/internal/shared/config"
	"github.com/shenwilly/ubi-games/internal/shared/db"
	"github.com/shenwilly/ubi-games/internal/shared/kafka"
	"github.com/shenwilly/ubi-games/internal/shared/logger"
	"github.com/shenwilly/ubi-games/internal/shared/metrics"
	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/token"
	httpapi "github.com/shenwilly/ubi-games/internal/ubiroll-service/http"
	"github.com/shenwilly/ubi-games/internal/ubiroll-service/producer"
	"github.com/shenwilly/ubi-games/internal/vault"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Postgres + migrations (o serviço é o dono do schema)
	if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected, schema up to date")

	// Kafka writers (um por tópico de saída)
	createdWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetCreated)
	finalizedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetFinalized)
	randomnessWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequested)
	defer createdWriter.Close()
	defer finalizedWriter.Close()
	defer randomnessWriter.Close()

	// Core: ledger de tokens, vault, oracle e engine compartilham o mesmo banco
	tokens := token.NewLedger()
	v := vault.New(cfg.OwnerIdentity, tokens)
	o := oracle.New(cfg.OwnerIdentity, tokens)
	eng := engine.New(cfg.OwnerIdentity, cfg.EngineIdentity, pg, v, o, tokens)

	// O fulfillment do oracle entrega o random word direto para a engine,
	// na mesma transação
	o.BindConsumer(cfg.EngineIdentity, eng)

	// Registros de boot: autoriza a engine no vault e no oracle
	err = store.WithTx(context.Background(), pg, func(q store.Queryable) error {
		if err := v.SetRegisteredGame(context.Background(), q, cfg.OwnerIdentity, cfg.EngineIdentity, true); err != nil {
			return err
		}
		return o.SetRegistered(context.Background(), q, cfg.OwnerIdentity, cfg.EngineIdentity, true)
	})
	if err != nil {
		log.Fatal("boot registration", zap.Error(err))
	}

	publ := producer.NewKafkaPublisher(createdWriter, finalizedWriter, randomnessWriter)
	api := httpapi.NewServer(log, pg, eng, v, o, tokens, publ,
		cfg.OwnerIdentity, cfg.VRFServiceIdentity, cfg.AdminToken, cfg.VRFCallbackToken)

	// Gauge de apostas abertas, amostrado periodicamente
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for range t.C {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n, err := eng.OpenBetCount(ctx)
			cancel()
			if err != nil {
				log.Warn("open bet count", zap.Error(err))
				continue
			}
			httpapi.OpenBetsGauge.Set(float64(n))
		}
	}()

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	addr := ":" + cfg.HTTPPort
	log.Info("ubiroll-service listening", zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: api.Router()}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/bet-indexer/cache"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/pubsub"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/repo"
	"github.com/shenwilly/ubi-games/pkg/contracts/events"
	"github.com/shenwilly/ubi-games/pkg/contracts/topics"
)

// Processor consome eventos de aposta do Kafka, mantém a projeção no banco,
// atualiza o cache Redis e repassa o estado merged para o canal de broadcast.
// O mesmo reader assina bet_created e bet_finalized; a ordem entre os dois
// tópicos não é garantida e os upserts do repo são escritos para tolerar isso.
type Processor struct {
	Log         *zap.Logger
	Reader      *kafka.Reader
	DLQ         *kafka.Writer
	Repo        *repo.Postgres
	Cache       *cache.RedisCache
	Broadcaster *pubsub.RedisBroadcaster

	OnConsumed  func()       // métricas (counter++)
	OnProjected func(string) // métricas por tópico
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e projeção
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		betID, err := p.project(ctx, m)
		if err != nil {
			p.Log.Warn("projection failed",
				zap.String("topic", m.Topic), zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_upsert")
			}
			p.deadLetter(ctx, m)
			continue
		}
		if p.OnProjected != nil {
			p.OnProjected(m.Topic)
		}

		p.refresh(ctx, betID)
	}
}

// project decodifica a mensagem conforme o tópico e aplica o upsert
func (p *Processor) project(ctx context.Context, m kafka.Message) (int64, error) {
	switch m.Topic {
	case topics.BetCreated:
		var ev events.BetCreated
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return 0, err
		}
		return ev.BetID, p.Repo.UpsertCreated(ctx, ev)

	case topics.BetFinalized:
		var ev events.BetFinalized
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return 0, err
		}
		return ev.BetID, p.Repo.UpsertFinalized(ctx, ev)
	}
	return 0, nil
}

// refresh relê a linha merged, atualiza o cache e publica no broadcast.
// Falhas aqui não interrompem o consumo: a projeção no banco já foi gravada.
func (p *Processor) refresh(ctx context.Context, betID int64) {
	if betID == 0 {
		return
	}

	row, err := p.Repo.Get(ctx, betID)
	if err != nil {
		p.Log.Warn("projection read-back failed",
			zap.Int64("bet_id", betID), zap.Error(err))
		if p.OnError != nil {
			p.OnError("read_back")
		}
		return
	}

	if err := p.Cache.SetCurrent(ctx, row); err != nil {
		p.Log.Warn("redis set failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("cache")
		}
		// não bloqueia o broadcast se falhar o cache
	}

	payload, err := json.Marshal(pubsub.WSUpdate{
		BetID:   row.BetID,
		Player:  row.Player,
		Payload: row,
	})
	if err != nil {
		return
	}
	if err := p.Broadcaster.Publish(ctx, pubsub.ChannelBetBroadcast, payload); err != nil {
		p.Log.Warn("broadcast publish failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("broadcast")
		}
	}
}

// deadLetter envia a mensagem original para a DLQ de eventos de aposta
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "origin-topic", Value: []byte(m.Topic)},
		},
	})
	if err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("dlq")
		}
	}
}

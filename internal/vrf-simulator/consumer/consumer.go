package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	shkafka "github.com/shenwilly/ubi-games/internal/shared/kafka"
	"github.com/shenwilly/ubi-games/internal/vrf-simulator/client"
	"github.com/shenwilly/ubi-games/internal/vrf-simulator/randomizer"
	"github.com/shenwilly/ubi-games/pkg/contracts/events"
)

// Processor consome pedidos de aleatoriedade e responde com o callback de
// fulfillment. Faz o papel do coordenador VRF externo: a latência entre o
// consumo e o callback é exatamente a assincronia do fluxo real.
type Processor struct {
	Log        *zap.Logger
	Reader     *kafka.Reader
	DLQ        *kafka.Writer
	Randomizer *randomizer.Randomizer
	Client     *client.Client

	OnConsumed  func()       // métricas (counter++)
	OnFulfilled func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e fulfillment
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var req events.RandomnessRequested
		if err := json.Unmarshal(m.Value, &req); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			if p.DLQ != nil {
				_ = shkafka.WriteJSON(ctx, p.DLQ, string(m.Key), m.Value)
			}
			continue
		}

		if err := p.processOne(ctx, req); err != nil {
			p.Log.Error("fulfill failed", zap.String("request_id", req.RequestID), zap.Error(err))
			if p.OnError != nil {
				p.OnError("fulfill")
			}
			if p.DLQ != nil {
				_ = shkafka.WriteJSON(ctx, p.DLQ, req.RequestID, m.Value)
			}
		} else if p.OnFulfilled != nil {
			p.OnFulfilled()
		}
	}
}

// processOne deriva a palavra e entrega o callback, com retry simples antes
// de desistir e mandar o pedido para a DLQ
func (p *Processor) processOne(ctx context.Context, req events.RandomnessRequested) error {
	word := p.Randomizer.Word(req.RequestID)

	err := p.Client.Fulfill(ctx, req.RequestID, word)
	if err == nil {
		return nil
	}

	const retries = 3
	for i := 0; i < retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		if err = p.Client.Fulfill(ctx, req.RequestID, word); err == nil {
			return nil
		}
	}
	return err
}

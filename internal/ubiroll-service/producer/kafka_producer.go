package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shenwilly/ubi-games/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de ciclo de vida após o commit de cada
// operação. A publicação é best-effort: o estado do core é a fonte de verdade
// e o indexer tolera replay.
type KafkaPublisher struct {
	BetCreatedWriter   *kafka.Writer
	BetFinalizedWriter *kafka.Writer
	RandomnessWriter   *kafka.Writer
}

func NewKafkaPublisher(created, finalized, randomness *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{
		BetCreatedWriter:   created,
		BetFinalizedWriter: finalized,
		RandomnessWriter:   randomness,
	}
}

func (p *KafkaPublisher) PublishBetCreated(ctx context.Context, e events.BetCreated) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.BetCreatedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.BetID, 10)),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishBetFinalized(ctx context.Context, e events.BetFinalized) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.BetFinalizedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.BetID, 10)),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishRandomnessRequested(ctx context.Context, e events.RandomnessRequested) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.RandomnessWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RequestID),
		Value: b,
	})
}

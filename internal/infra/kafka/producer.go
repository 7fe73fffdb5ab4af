// Package kafka wraps the downstream settlement topic producer.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishSettlement pushes one closed round. The message key is the pair so
// per-pair ordering is preserved across partitions.
func (p *Producer) PublishSettlement(ctx context.Context, res domain.SettlementResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(res.Pair.String()),
		Value: payload,
	})
	if err != nil {
		// broker errors are transient; the outbox publisher retries them
		return domain.NewNetworkError("kafka publish", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

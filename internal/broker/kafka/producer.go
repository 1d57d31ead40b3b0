package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"image-variants/internal/config"
	"image-variants/internal/domain"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
	Close() error
}

// ProducerClient publishes image events keyed by image id, so every event
// for one image lands on the same partition.
type ProducerClient struct {
	producer sender
	retries  retry.Strategy
}

func NewProducerClient(cfg *config.Config) *ProducerClient {
	return &ProducerClient{
		producer: wbkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic),
		retries:  cfg.DefaultRetryStrategy(),
	}
}

func (p *ProducerClient) Publish(ctx context.Context, event domain.ImageEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.producer.SendWithRetry(ctx, p.retries, []byte(event.ImageID), value); err != nil {
		return fmt.Errorf("failed to send %s event: %w", event.Type, err)
	}
	return nil
}

func (p *ProducerClient) Close() error {
	return p.producer.Close()
}

package repository

import (
	"context"

	"TickChart/internal/domain/models"
	pkgkafka "TickChart/pkg/kafka"
)

type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaEventPublisher writes chart events as JSON keyed by identifier.
type KafkaEventPublisher struct {
	producer messagePublisher
	topic    string
}

func NewKafkaEventPublisher(p *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: p, topic: topic}
}

func (p *KafkaEventPublisher) PublishChartEvent(ctx context.Context, e models.ChartEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Identifier), e)
}

// NopEventPublisher drops events; used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishChartEvent(context.Context, models.ChartEvent) error { return nil }

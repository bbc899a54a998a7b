package repository

import (
	"context"
	"fmt"

	"EquitySchema/internal/domain/models"
	"EquitySchema/internal/domain/repository"
	pkgkafka "EquitySchema/pkg/kafka"
)

// KafkaAuditPublisher mirrors each run audit record onto a Kafka topic so
// downstream consumers can react to completed loads without polling the store.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates a Kafka-backed audit publisher.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) PublishAudit(ctx context.Context, audit *models.RunAudit) error {
	key := []byte(audit.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	if err := p.producer.Publish(ctx, p.topic, key, audit); err != nil {
		return fmt.Errorf("publish audit: %w", err)
	}
	return nil
}

func (p *KafkaAuditPublisher) Close() error {
	return p.producer.Close()
}

// NopAuditPublisher discards audit records. Used when Kafka is disabled.
type NopAuditPublisher struct{}

func (NopAuditPublisher) PublishAudit(ctx context.Context, audit *models.RunAudit) error { return nil }

func (NopAuditPublisher) Close() error { return nil }

var (
	_ repository.AuditPublisher = (*KafkaAuditPublisher)(nil)
	_ repository.AuditPublisher = NopAuditPublisher{}
)

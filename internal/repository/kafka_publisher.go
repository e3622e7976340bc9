package repository

import (
	"context"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	pkgkafka "QullaScan/pkg/kafka"
)

// Topics written by the scanner.
const (
	TopicSymbolUpdated = "scanner.symbol.updated"
	TopicScanCompleted = "scanner.scan.completed"
)

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	symbolTopic  string
	summaryTopic string
}

// NewKafkaPublisher creates a Kafka publisher. Empty topics use the defaults.
func NewKafkaPublisher(producer *pkgkafka.Producer, symbolTopic, summaryTopic string) *KafkaPublisher {
	if symbolTopic == "" {
		symbolTopic = TopicSymbolUpdated
	}
	if summaryTopic == "" {
		summaryTopic = TopicScanCompleted
	}
	return &KafkaPublisher{producer: producer, symbolTopic: symbolTopic, summaryTopic: summaryTopic}
}

// PublishSymbolChange keys by symbol so updates for one symbol stay ordered.
func (p *KafkaPublisher) PublishSymbolChange(ctx context.Context, c models.SymbolChange) error {
	return p.producer.Publish(ctx, p.symbolTopic, []byte(c.Symbol), c)
}

func (p *KafkaPublisher) PublishScanCompleted(ctx context.Context, s models.ScanSummary) error {
	return p.producer.Publish(ctx, p.summaryTopic, nil, s)
}

// PublishChanges sends several changes in one batch.
func (p *KafkaPublisher) PublishChanges(ctx context.Context, changes []models.SymbolChange) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(changes))
	for i, c := range changes {
		msgs[i] = pkgkafka.Message{Key: []byte(c.Symbol), Value: c}
	}
	return p.producer.PublishBatch(ctx, p.symbolTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ repository.EventPublisher = (*KafkaPublisher)(nil)

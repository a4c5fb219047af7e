package repository

import (
	"context"
	"fmt"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
)

const (
	EventCouncilDecision = "council.decision"
	EventRiskDecision    = "risk.decision"
)

// eventPublisher is the slice of pkg/kafka.Producer the publisher needs.
type eventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType string, key []byte, value interface{}) error
	Close() error
}

// KafkaDecisionPublisher streams decisions to one topic keyed by instrument,
// so all events for an instrument land on the same partition in order.
type KafkaDecisionPublisher struct {
	producer eventPublisher
	topic    string
}

var _ domrepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

// NewKafkaDecisionPublisher creates a Kafka-backed decision publisher.
func NewKafkaDecisionPublisher(producer eventPublisher, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) PublishCouncil(ctx context.Context, d *models.CouncilDecision) error {
	if err := p.producer.PublishEvent(ctx, p.topic, EventCouncilDecision, []byte(d.Instrument), d); err != nil {
		return fmt.Errorf("publish council decision: %w", err)
	}
	return nil
}

func (p *KafkaDecisionPublisher) PublishRisk(ctx context.Context, d *models.RiskDecision) error {
	if err := p.producer.PublishEvent(ctx, p.topic, EventRiskDecision, []byte(d.Instrument), d); err != nil {
		return fmt.Errorf("publish risk decision: %w", err)
	}
	return nil
}

func (p *KafkaDecisionPublisher) Close() error { return p.producer.Close() }

// NoopPublisher drops decisions. Used when Kafka is disabled.
type NoopPublisher struct{}

var _ domrepo.DecisionPublisher = NoopPublisher{}

func (NoopPublisher) PublishCouncil(context.Context, *models.CouncilDecision) error { return nil }
func (NoopPublisher) PublishRisk(context.Context, *models.RiskDecision) error       { return nil }
func (NoopPublisher) Close() error                                                  { return nil }

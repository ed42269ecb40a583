package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher hands committed domain events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
	Close() error
}

// NewEvent stamps a fresh id and the current UTC time.
func NewEvent(eventType, key string, payload interface{}) models.DomainEvent {
	return models.DomainEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// TopicFor maps "order.created" to "<prefix>.order".
func TopicFor(prefix, eventType string) string {
	entity := eventType
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		entity = eventType[:i]
	}
	return prefix + "." + entity
}

// Topics lists every topic the service writes to.
func Topics(prefix string) []string {
	return []string{
		TopicFor(prefix, models.EventTableReserved),
		TopicFor(prefix, models.EventOrderCreated),
		TopicFor(prefix, models.EventPaymentProcessed),
		TopicFor(prefix, models.EventMenuItemPriceChange),
	}
}

type Producer struct {
	Writer *kafka.Writer
	prefix string
	log    *logger.Logger
}

func NewProducer(brokers []string, topicPrefix string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, prefix: topicPrefix, log: log}
}

// Publish writes the event keyed by entity id so all events of one entity stay ordered.
func (p *Producer) Publish(ctx context.Context, event models.DomainEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	topic := TopicFor(p.prefix, event.Type)
	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("%s key=%s", event.Type, event.Key))

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "failed").Inc()
		return err
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "sent").Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// LogPublisher records events in the log only. Used when Kafka is disabled.
type LogPublisher struct {
	prefix string
	log    *logger.Logger
}

func NewLogPublisher(topicPrefix string, log *logger.Logger) *LogPublisher {
	return &LogPublisher{prefix: topicPrefix, log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	p.log.LogKafka("SKIP", TopicFor(p.prefix, event.Type), fmt.Sprintf("%s key=%s payload=%s", event.Type, event.Key, payload))
	metrics.EventsPublished.WithLabelValues(event.Type, "logged").Inc()
	return nil
}

func (p *LogPublisher) Close() error { return nil }

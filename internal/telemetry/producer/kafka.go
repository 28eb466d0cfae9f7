// Package producer publishes auth events to Kafka for the event worker.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-service/internal/telemetry"
)

const writeTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements telemetry.EventEmitter using segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

var _ telemetry.EventEmitter = (*KafkaProducer)(nil)

// NewKafkaProducer creates a Kafka producer that writes auth events to the given topic.
// It returns nil when brokers or topic are empty, which disables export. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Topic returns the destination topic.
func (p *KafkaProducer) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Emit serializes the event as JSON and writes it to the Kafka topic, keyed by user so one
// user's events stay ordered within a partition.
func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.AuthEvent) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := kafka.Message{Value: payload, Time: event.CreatedAt}
	if event.UserID != "" {
		msg.Key = []byte(event.UserID)
	}
	return p.writer.WriteMessages(writeCtx, msg)
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

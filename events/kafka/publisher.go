// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	audithook "github.com/xraph/bits/audit_hook"
)

// DefaultTopic receives audit events unless configured otherwise.
const DefaultTopic = "bits.audit"

var _ audithook.Recorder = (*Publisher)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes each audit event as one JSON message keyed by action,
// so events of one kind stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher connects a publisher to brokers. An empty topic uses
// DefaultTopic.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Record implements audithook.Recorder.
func (p *Publisher) Record(ctx context.Context, event *audithook.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", event.Action, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Action),
		Value: data,
		Time:  event.Time,
	})
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

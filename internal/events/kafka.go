package events

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
)

const headerEventType = "event-type"

// KafkaSink writes every event to one topic, keyed by activity so a single
// activity's events keep their order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a synchronous writer for topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}}, nil
}

// Send writes one message.
func (s *KafkaSink) Send(ctx context.Context, eventType string, key, body []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   body,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(eventType)}},
	})
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

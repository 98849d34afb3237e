package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes to durable queues named after the event type through the
// default exchange.
type AMQPSink struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects and declares one durable queue per event type.
func DialAMQP(ctx context.Context, url string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	for _, q := range []string{TypeActivityJoined, TypeActivityLeft} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("amqp declare %s: %w", q, err)
		}
	}
	return &AMQPSink{conn: conn, ch: ch}, nil
}

// Send publishes body as a persistent JSON message.
func (s *AMQPSink) Send(ctx context.Context, eventType string, key, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.PublishWithContext(ctx, "", eventType, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: string(key),
		Body:          body,
	})
}

// Close closes the channel and connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ch.Close()
	return s.conn.Close()
}

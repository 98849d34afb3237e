// Package events publishes seat changes to a message broker for downstream
// consumers such as notifications and reporting.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
)

// Event types, also used as AMQP routing keys.
const (
	TypeActivityJoined = "activity.joined"
	TypeActivityLeft   = "activity.left"
)

// Brokers accepted by Open.
const (
	BrokerNone  = "none"
	BrokerAMQP  = "amqp"
	BrokerKafka = "kafka"
)

// Event is the message body published for every seat change.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	ActivityID     uuid.UUID `json:"activity_id"`
	UserID         uuid.UUID `json:"user_id"`
	OccupiedSeats  int       `json:"occupied_seats"`
	AvailableSeats int       `json:"available_seats"`
	Available      bool      `json:"available"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Sink delivers an encoded event. key groups events that must stay ordered.
type Sink interface {
	Send(ctx context.Context, eventType string, key, body []byte) error
	Close() error
}

// Publisher turns seat changes into broker events.
type Publisher struct {
	sink   Sink
	logger *zap.Logger
}

// NewPublisher creates a Publisher writing to sink.
func NewPublisher(sink Sink, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{sink: sink, logger: logger}
}

// NewEvent builds the event for a seat change.
func NewEvent(change models.SeatChange) Event {
	t := TypeActivityJoined
	if change.Kind == models.SeatLeft {
		t = TypeActivityLeft
	}
	return Event{
		ID:             uuid.New(),
		Type:           t,
		ActivityID:     change.ActivityID,
		UserID:         change.UserID,
		OccupiedSeats:  change.OccupiedSeats,
		AvailableSeats: change.AvailableSeats,
		Available:      change.Available,
		OccurredAt:     change.At.UTC(),
	}
}

// SeatsChanged publishes the change.
func (p *Publisher) SeatsChanged(ctx context.Context, change models.SeatChange) error {
	evt := NewEvent(change)
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.sink.Send(ctx, evt.Type, []byte(evt.ActivityID.String()), body); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", evt.Type), zap.String("activity_id", evt.ActivityID.String()))
	return nil
}

// Close closes the underlying sink.
func (p *Publisher) Close() error {
	return p.sink.Close()
}

// Open connects to the configured broker. It returns a nil Publisher for
// BrokerNone or an empty broker.
func Open(ctx context.Context, broker, amqpURL string, kafkaBrokers []string, topic string, logger *zap.Logger) (*Publisher, error) {
	var (
		sink Sink
		err  error
	)
	switch broker {
	case "", BrokerNone:
		return nil, nil
	case BrokerAMQP:
		sink, err = DialAMQP(ctx, amqpURL)
	case BrokerKafka:
		sink, err = NewKafkaSink(kafkaBrokers, topic)
	default:
		return nil, fmt.Errorf("unknown events broker %q", broker)
	}
	if err != nil {
		return nil, err
	}
	return NewPublisher(sink, logger), nil
}

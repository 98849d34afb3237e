package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	EventSeats        = "seats"
	EventSeatsChanged = "seats_changed"
)

// SeatsPayload is what watchers of an activity receive. It carries no user data.
type SeatsPayload struct {
	ActivityID     uuid.UUID `json:"activity_id"`
	Kind           string    `json:"kind,omitempty"`
	OccupiedSeats  int       `json:"occupied_seats"`
	AvailableSeats int       `json:"available_seats"`
	Available      bool      `json:"available"`
	At             time.Time `json:"at"`
}

// Publisher fans an activity event out to other instances.
type Publisher interface {
	PublishActivityEvent(ctx context.Context, activityID uuid.UUID, event string, payload []byte) error
}

// Subscriber delivers events published by any instance for one activity.
type Subscriber interface {
	SubscribeActivity(activityID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains activity_id -> set of connections and broadcasts messages.
// With Redis configured, events are only published and every instance
// (this one included) broadcasts from its subscription.
//
// mu guards rooms. subMu guards subs and serializes room creation and
// teardown; Broadcast never takes it.
type Hub struct {
	rooms      map[uuid.UUID]map[string]*Client
	subs       map[uuid.UUID]func()
	mu         sync.RWMutex
	subMu      sync.Mutex
	logger     *zap.Logger
	pub        Publisher
	sub        Subscriber
	retryDelay time.Duration
}

const subscribeAttempts = 3

// NewHub creates a new WebSocket hub. pub and sub may both be nil for a
// single-instance deployment.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[uuid.UUID]map[string]*Client),
		subs:       make(map[uuid.UUID]func()),
		logger:     logger,
		pub:        pub,
		sub:        sub,
		retryDelay: 200 * time.Millisecond,
	}
}

// Register adds a client to an activity room. The first client of a room
// subscribes to the activity channel; when that keeps failing the client is
// refused, since it would never see an update.
func (h *Hub) Register(c *Client) error {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.sub != nil {
		if _, ok := h.subs[c.ActivityID]; !ok {
			cancel, err := h.subscribe(c.ActivityID)
			if err != nil {
				return err
			}
			h.subs[c.ActivityID] = cancel
		}
	}

	h.mu.Lock()
	if h.rooms[c.ActivityID] == nil {
		h.rooms[c.ActivityID] = make(map[string]*Client)
	}
	h.rooms[c.ActivityID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client watching activity", zap.String("client_id", c.ID), zap.String("activity_id", c.ActivityID.String()))
	return nil
}

func (h *Hub) subscribe(activityID uuid.UUID) (func(), error) {
	handler := func(event string, payload []byte) {
		h.Broadcast(activityID, event, json.RawMessage(payload))
	}
	var err error
	for attempt := 1; attempt <= subscribeAttempts; attempt++ {
		var cancel func()
		cancel, err = h.sub.SubscribeActivity(activityID, handler)
		if err == nil {
			return cancel, nil
		}
		h.logger.Warn("subscribe activity channel",
			zap.String("activity_id", activityID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < subscribeAttempts {
			time.Sleep(time.Duration(attempt) * h.retryDelay)
		}
	}
	return nil, fmt.Errorf("subscribe activity %s: %w", activityID, err)
}

// Unregister removes a client and closes its send channel. The last client of
// a room cancels the subscription.
func (h *Hub) Unregister(c *Client) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	h.mu.Lock()
	room, ok := h.rooms[c.ActivityID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c.ID)
	close(c.send)
	empty := len(room) == 0
	if empty {
		delete(h.rooms, c.ActivityID)
	}
	h.mu.Unlock()

	if empty {
		if cancel, ok := h.subs[c.ActivityID]; ok {
			cancel()
			delete(h.subs, c.ActivityID)
		}
	}
	h.logger.Debug("client left activity", zap.String("client_id", c.ID), zap.String("activity_id", c.ActivityID.String()))
}

// Broadcast sends a message to local clients watching activityID. Slow
// clients with a full buffer miss the message.
func (h *Hub) Broadcast(activityID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode ws payload", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[activityID] {
		c.deliver(msg)
	}
}

// Prime queues the first message for a client registered as pending, followed
// by anything broadcast to it in the meantime, and switches it to live delivery.
func (h *Hub) Prime(c *Client, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode ws payload", zap.String("event", event), zap.Error(err))
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.ActivityID][c.ID]; !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if data != nil {
		c.enqueue(WSMessage{Event: event, Data: data})
	}
	for _, msg := range c.held {
		c.enqueue(msg)
	}
	c.held = nil
	c.pending = false
}

// Watchers returns the number of local clients watching an activity.
func (h *Hub) Watchers(activityID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[activityID])
}

// SeatsChanged pushes a seat update to everyone watching the activity.
func (h *Hub) SeatsChanged(ctx context.Context, change models.SeatChange) error {
	payload := SeatsPayload{
		ActivityID:     change.ActivityID,
		Kind:           change.Kind,
		OccupiedSeats:  change.OccupiedSeats,
		AvailableSeats: change.AvailableSeats,
		Available:      change.Available,
		At:             change.At,
	}
	if h.pub == nil {
		h.Broadcast(change.ActivityID, EventSeatsChanged, payload)
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.pub.PublishActivityEvent(ctx, change.ActivityID, EventSeatsChanged, data)
}

// Close cancels all Redis subscriptions.
func (h *Hub) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

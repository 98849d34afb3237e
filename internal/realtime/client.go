package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Authenticator resolves the token query parameter to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// ActivityLookup loads the activity a client wants to watch.
type ActivityLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Activity, error)
}

// Client is one WebSocket connection watching an activity. A pending client
// holds broadcasts until the hub primes it with its snapshot.
type Client struct {
	ID         string
	ActivityID uuid.UUID
	UserID     uuid.UUID
	hub        *Hub
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger

	mu      sync.Mutex
	pending bool
	held    []WSMessage
}

// deliver is called with the hub read lock held, so send is still open.
func (c *Client) deliver(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		if len(c.held) < sendBuffer {
			c.held = append(c.held, msg)
		}
		return
	}
	c.enqueue(msg)
}

func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// Handler upgrades GET /ws/activities/:id?token=... connections.
type Handler struct {
	hub        *Hub
	auth       Authenticator
	activities ActivityLookup
	upgrader   websocket.Upgrader
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler creates the WebSocket endpoint. allowedOrigins follows the CORS
// rules: empty or "*" accepts any origin.
func NewHandler(hub *Hub, auth Authenticator, activities ActivityLookup, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	_, allowAll := origins["*"]
	allowAll = allowAll || len(origins) == 0
	return &Handler{
		hub:        hub,
		auth:       auth,
		activities: activities,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if allowAll || origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		now:    time.Now,
		logger: logger,
	}
}

// ServeWs authenticates, checks the activity exists and runs the client loop.
// The first message is a "seats" snapshot stamped with the time it was read.
func (h *Handler) ServeWs(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid activity ID")
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "Authentication required")
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		response.Unauthorized(c, "Invalid credentials")
		return
	}
	// Watch before reading, so a change committed after the read still reaches the client.
	client := &Client{
		ID:         uuid.New().String(),
		ActivityID: activityID,
		UserID:     user.ID,
		hub:        h.hub,
		send:       make(chan WSMessage, sendBuffer),
		logger:     h.logger,
		pending:    true,
	}
	if err := h.hub.Register(client); err != nil {
		h.logger.Error("watch activity", zap.String("activity_id", activityID.String()), zap.Error(err))
		response.Unavailable(c, "Live updates unavailable")
		return
	}

	readAt := h.now()
	activity, err := h.activities.Get(c.Request.Context(), activityID)
	if err != nil {
		h.hub.Unregister(client)
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "Activity not found")
			return
		}
		h.logger.Error("load activity for ws", zap.Error(err))
		response.Internal(c, "Internal server error")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Unregister(client)
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client.conn = conn

	h.hub.Prime(client, EventSeats, SeatsPayload{
		ActivityID:     activity.ID,
		OccupiedSeats:  activity.OccupiedSeats,
		AvailableSeats: activity.AvailableSeats,
		Available:      activity.IsAvailable(readAt),
		At:             readAt,
	})
	go client.writePump()
	client.readPump()
}

// readPump only keeps the connection alive; clients have nothing to say.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package activities

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/middleware"
	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/request"
	"github.com/activity-hub/backend/pkg/response"
)

// CategoryLookup resolves category IDs sent with an activity.
type CategoryLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// MediaLookup resolves the media ID sent with an activity.
type MediaLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// activityRequest is the body for POST and PUT /activities. Pointers tell an
// absent field from a zero value.
type activityRequest struct {
	Name           *string      `json:"name"`
	Location       *string      `json:"location"`
	StartAt        *time.Time   `json:"startAt"`
	EndAt          *time.Time   `json:"endAt"`
	AvailableSeats *int         `json:"availableSeats"`
	Categories     *[]uuid.UUID `json:"categories"`
	Media          *uuid.UUID   `json:"media"`
}

func (r *activityRequest) missing() string {
	switch {
	case r.Name == nil:
		return "name"
	case r.Location == nil:
		return "location"
	case r.StartAt == nil:
		return "startAt"
	case r.EndAt == nil:
		return "endAt"
	case r.AvailableSeats == nil:
		return "availableSeats"
	case r.Categories == nil:
		return "categories"
	}
	return ""
}

// Handler serves the activity endpoints.
type Handler struct {
	svc        *Service
	categories CategoryLookup
	media      MediaLookup
	loc        *time.Location
	logger     *zap.Logger
}

// NewHandler creates an activities handler. loc is the zone used for the day filter.
func NewHandler(svc *Service, categories CategoryLookup, media MediaLookup, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, categories: categories, media: media, loc: loc, logger: logger}
}

// Search handles GET /activities?name=&day=&availableOnly=.
func (h *Handler) Search(c *gin.Context) {
	var f Filter
	f.Name = c.Query("name")
	if v := c.Query("day"); v != "" {
		day, err := ParseDay(v, h.loc)
		if err != nil {
			response.BadRequest(c, "Query parameter `day` must be formatted as YYYY-MM-DD")
			return
		}
		f.Day = &day
	}
	if v := c.Query("availableOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "Query parameter `availableOnly` must be a boolean")
			return
		}
		f.AvailableOnly = b
	}

	list, err := h.svc.Search(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("search activities", zap.Error(err))
		response.Internal(c, "failed to search activities")
		return
	}
	response.OK(c, fmt.Sprintf("Found %d activities", len(list)), list)
}

// Get handles GET /activities/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get activity")
		return
	}
	response.OK(c, "Activity found", a)
}

// Joinable handles GET /activities/:id/joinable. Activities that exist but are
// full or over are reported as not found.
func (h *Handler) Joinable(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.FindJoinable(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "find joinable activity")
		return
	}
	response.OK(c, "Activity found", a)
}

// Create handles POST /activities (admin).
func (h *Handler) Create(c *gin.Context) {
	a, ok := h.bindActivity(c)
	if !ok {
		return
	}
	if err := h.svc.Create(c.Request.Context(), a); err != nil {
		h.fail(c, err, "create activity")
		return
	}
	response.Created(c, "Activity created", gin.H{"id": a.ID})
}

// Update handles PUT /activities/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, ok := h.bindActivity(c)
	if !ok {
		return
	}
	a.ID = id
	if err := h.svc.Update(c.Request.Context(), a); err != nil {
		h.fail(c, err, "update activity")
		return
	}
	response.OK(c, "Activity edited", a)
}

// Delete handles DELETE /activities/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "delete activity")
		return
	}
	response.OK(c, "Activity deleted", nil)
}

// Join handles POST /activities/:id/join for the authenticated user.
func (h *Handler) Join(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	a, err := h.svc.Join(c.Request.Context(), id, userID)
	if err != nil {
		h.fail(c, err, "join activity")
		return
	}
	response.OK(c, "Joined activity", a)
}

// Leave handles DELETE /activities/:id/join for the authenticated user.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	a, err := h.svc.Leave(c.Request.Context(), id, userID)
	if err != nil {
		h.fail(c, err, "leave activity")
		return
	}
	response.OK(c, "Left activity", a)
}

// ListMine handles GET /users/activities.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list user activities", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, fmt.Sprintf("Found %d activities", len(list)), list)
}

func (h *Handler) bindActivity(c *gin.Context) (*models.Activity, bool) {
	var req activityRequest
	if err := request.BindJSON(c, &req); err != nil {
		if errors.Is(err, request.ErrInvalidBody) {
			response.BadRequest(c, err.Error())
		} else {
			response.BadRequest(c, "invalid request: "+err.Error())
		}
		return nil, false
	}
	if field := req.missing(); field != "" {
		response.BadRequest(c, request.MissingField(field))
		return nil, false
	}

	ctx := c.Request.Context()
	a := &models.Activity{
		Name:           *req.Name,
		Location:       *req.Location,
		StartAt:        *req.StartAt,
		EndAt:          *req.EndAt,
		AvailableSeats: *req.AvailableSeats,
		Categories:     make([]models.Category, 0, len(*req.Categories)),
	}
	for _, cid := range *req.Categories {
		cat, err := h.categories.Get(ctx, cid)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				response.NotFound(c, "Category not found with ID: "+cid.String())
			} else {
				h.logger.Error("get category", zap.String("category_id", cid.String()), zap.Error(err))
				response.Internal(c, "failed to load category")
			}
			return nil, false
		}
		a.Categories = append(a.Categories, *cat)
	}
	if req.Media != nil {
		if _, err := h.media.Get(ctx, *req.Media); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				response.NotFound(c, "Media not found with ID: "+req.Media.String())
			} else {
				h.logger.Error("get media", zap.String("media_id", req.Media.String()), zap.Error(err))
				response.Internal(c, "failed to load media")
			}
			return nil, false
		}
		a.MediaID = req.Media
	}
	return a, true
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	var invalid *ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "Activity not found")
	case errors.Is(err, models.ErrAlreadyJoined), errors.Is(err, models.ErrNoSeatsLeft):
		response.BadRequest(c, err.Error())
	case errors.As(err, &invalid):
		response.BadRequest(c, invalid.Message)
	default:
		h.logger.Error(op, zap.String("activity_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return uuid.Nil, false
	}
	return id, true
}

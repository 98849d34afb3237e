package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/request"
	"github.com/activity-hub/backend/pkg/response"
)

// Store is what the handler needs from category persistence.
type Store interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, name string) (*models.Category, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryRequest struct {
	Name *string `json:"name"`
}

// Handler serves /categories.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a categories handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /categories.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		response.Internal(c, "failed to list categories")
		return
	}
	response.OK(c, fmt.Sprintf("Found %d categories", len(list)), list)
}

// Get handles GET /categories/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cat, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get category")
		return
	}
	response.OK(c, "Category found", cat)
}

// Create handles POST /categories (admin).
func (h *Handler) Create(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}
	cat, err := h.store.Create(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err, "create category")
		return
	}
	response.Created(c, "Category created", gin.H{"id": cat.ID})
}

// Update handles PUT /categories/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	name, ok := bindName(c)
	if !ok {
		return
	}
	cat, err := h.store.Rename(c.Request.Context(), id, name)
	if err != nil {
		h.fail(c, err, "update category")
		return
	}
	response.OK(c, "Category edited", cat)
}

// Delete handles DELETE /categories/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "delete category")
		return
	}
	response.OK(c, "Category deleted", nil)
}

func bindName(c *gin.Context) (string, bool) {
	var req categoryRequest
	if err := request.BindJSON(c, &req); err != nil {
		if errors.Is(err, request.ErrInvalidBody) {
			response.BadRequest(c, err.Error())
		} else {
			response.BadRequest(c, "invalid request: "+err.Error())
		}
		return "", false
	}
	if req.Name == nil {
		response.BadRequest(c, request.MissingField("name"))
		return "", false
	}
	name := strings.TrimSpace(*req.Name)
	if name == "" {
		response.BadRequest(c, "Field `name` must not be empty")
		return "", false
	}
	return name, true
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Category not found")
		return
	}
	h.logger.Error(op, zap.String("category_id", c.Param("id")), zap.Error(err))
	response.Internal(c, "failed to "+op)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return uuid.Nil, false
	}
	return id, true
}

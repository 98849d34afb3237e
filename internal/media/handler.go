package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/request"
	"github.com/activity-hub/backend/pkg/response"
	"github.com/activity-hub/backend/pkg/storage"
)

// Store is what the handler needs from media metadata persistence.
type Store interface {
	Create(ctx context.Context, m *models.Media) error
	Get(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// ActivityLookup loads the activity whose media is requested.
type ActivityLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Activity, error)
}

// Handler serves media upload and download.
type Handler struct {
	store      Store
	objects    storage.ObjectStore
	activities ActivityLookup
	logger     *zap.Logger
}

// NewHandler creates a media handler.
func NewHandler(store Store, objects storage.ObjectStore, activities ActivityLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, objects: objects, activities: activities, logger: logger}
}

// Upload handles POST /media (admin, multipart field "media").
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("media")
	if err != nil {
		response.BadRequest(c, request.MissingField("media"))
		return
	}
	if fh.Size > storage.MaxMediaFileSize {
		response.BadRequest(c, fmt.Sprintf("file size exceeds maximum limit of %d MB", storage.MaxMediaFileSize/(1024*1024)))
		return
	}
	src, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read uploaded file")
		return
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		response.BadRequest(c, "cannot read uploaded file")
		return
	}
	head = head[:n]
	contentType, ext, ok := storage.DetectImageType(head)
	if !ok {
		response.BadRequest(c, "invalid file type, allowed: jpeg, png, webp, gif")
		return
	}

	ctx := c.Request.Context()
	id := uuid.New()
	m := &models.Media{
		ID:          id,
		ObjectKey:   storage.MediaKey(id.String(), ext),
		Filename:    filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        fh.Size,
	}
	body := io.MultiReader(bytes.NewReader(head), src)
	if err := h.objects.Put(ctx, m.ObjectKey, contentType, body, fh.Size); err != nil {
		h.logger.Error("store media object", zap.String("key", m.ObjectKey), zap.Error(err))
		response.Internal(c, "failed to store media")
		return
	}
	if err := h.store.Create(ctx, m); err != nil {
		h.logger.Error("create media", zap.String("media_id", id.String()), zap.Error(err))
		if delErr := h.objects.Delete(ctx, m.ObjectKey); delErr != nil {
			h.logger.Warn("remove orphaned object", zap.String("key", m.ObjectKey), zap.Error(delErr))
		}
		response.Internal(c, "failed to store media")
		return
	}
	response.Created(c, "Activity media uploaded", gin.H{"id": id})
}

// ServeActivityMedia handles GET /activities/:id/media and streams the image inline.
func (h *Handler) ServeActivityMedia(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	ctx := c.Request.Context()
	a, err := h.activities.Get(ctx, activityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "Activity not found")
			return
		}
		h.logger.Error("get activity", zap.String("activity_id", activityID.String()), zap.Error(err))
		response.Internal(c, "failed to load activity")
		return
	}
	if a.MediaID == nil {
		response.NotFound(c, "Activity does not have a media")
		return
	}
	m, err := h.store.Get(ctx, *a.MediaID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "Activity does not have a media")
			return
		}
		h.logger.Error("get media", zap.String("media_id", a.MediaID.String()), zap.Error(err))
		response.Internal(c, "failed to load media")
		return
	}
	body, contentType, err := h.objects.Open(ctx, m.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.NotFound(c, "Activity does not have a media")
			return
		}
		h.logger.Error("open media object", zap.String("key", m.ObjectKey), zap.Error(err))
		response.Internal(c, "failed to load media")
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = m.ContentType
	}
	c.DataFromReader(http.StatusOK, m.Size, contentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", filepath.Base(m.ObjectKey)),
	})
}

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/internal/observability"
	"github.com/activity-hub/backend/pkg/queue"
	"github.com/activity-hub/backend/pkg/storage"
)

// Enqueuer schedules cleanup jobs.
type Enqueuer interface {
	EnqueueMediaCleanup(ctx context.Context, payload queue.MediaCleanupPayload) error
}

// Releaser turns "activity no longer uses this media" into a cleanup job.
type Releaser struct {
	queue Enqueuer
}

// NewReleaser creates a Releaser.
func NewReleaser(q Enqueuer) *Releaser {
	return &Releaser{queue: q}
}

// ReleaseMedia enqueues a cleanup job for mediaID.
func (r *Releaser) ReleaseMedia(ctx context.Context, mediaID uuid.UUID) error {
	return r.queue.EnqueueMediaCleanup(ctx, queue.MediaCleanupPayload{MediaID: mediaID})
}

// Remover deletes media rows that no activity references.
type Remover interface {
	DeleteIfUnused(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// Cleaner processes media cleanup jobs.
type Cleaner struct {
	repo    Remover
	objects storage.ObjectStore
	logger  *zap.Logger
}

// NewCleaner creates a cleanup job handler.
func NewCleaner(repo Remover, objects storage.ObjectStore, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{repo: repo, objects: objects, logger: logger}
}

// Process deletes the media named by job when it is unused. The row goes first,
// so a failed object delete leaves a stray blob rather than a dangling row.
func (c *Cleaner) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMediaCleanup {
		return fmt.Errorf("unexpected job type: %s", job.Type)
	}
	var payload queue.MediaCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	m, err := c.repo.DeleteIfUnused(ctx, payload.MediaID)
	if err != nil {
		return err
	}
	if m == nil {
		observability.RecordMediaCleanup("kept")
		c.logger.Debug("media still in use or gone", zap.String("media_id", payload.MediaID.String()))
		return nil
	}
	if err := c.objects.Delete(ctx, m.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		c.logger.Warn("delete media object", zap.String("key", m.ObjectKey), zap.Error(err))
	}
	observability.RecordMediaCleanup("deleted")
	c.logger.Info("media removed", zap.String("media_id", m.ID.String()), zap.String("key", m.ObjectKey))
	return nil
}

package activities

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/activity-hub/backend/internal/models"
)

// MutateFunc changes a locked activity in place. changed=false skips the write.
type MutateFunc func(a *models.Activity) (changed bool, err error)

// Store persists activities. Implementations return models.ErrNotFound for
// unknown IDs.
type Store interface {
	Create(ctx context.Context, a *models.Activity) error
	// Update replaces the editable fields. Occupancy and membership are untouched.
	Update(ctx context.Context, a *models.Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Activity, error)
	Search(ctx context.Context, f Filter, now time.Time) ([]models.Activity, error)
	// FindJoinable returns the activity only if it is available at now.
	FindJoinable(ctx context.Context, id uuid.UUID, now time.Time) (*models.Activity, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Activity, error)
	// Mutate loads the activity with its members under an exclusive lock, runs fn
	// and persists occupancy and membership when fn reports a change. Errors from
	// fn are returned unchanged and nothing is written.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Activity, error)
}

package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/activity-hub/backend/internal/models"
)

// Repository handles media metadata persistence. Blobs live in an ObjectStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a media repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts m, keeping the caller's ID so it matches the object key.
func (r *Repository) Create(ctx context.Context, m *models.Media) error {
	const q = `INSERT INTO media (id, object_key, filename, content_type, size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	if err := r.pool.QueryRow(ctx, q, m.ID, m.ObjectKey, m.Filename, m.ContentType, m.Size).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// Get returns media metadata by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	const q = `SELECT id, object_key, filename, content_type, size, created_at FROM media WHERE id = $1`
	var m models.Media
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.ObjectKey, &m.Filename, &m.ContentType, &m.Size, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// DeleteIfUnused removes the media row when no activity references it and
// returns the removed row. It returns nil, nil when the media is still in use
// or already gone.
func (r *Repository) DeleteIfUnused(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	const q = `DELETE FROM media m
		WHERE m.id = $1 AND NOT EXISTS (SELECT 1 FROM activities a WHERE a.media_id = m.id)
		RETURNING m.id, m.object_key, m.filename, m.content_type, m.size, m.created_at`
	var m models.Media
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.ObjectKey, &m.Filename, &m.ContentType, &m.Size, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete media: %w", err)
	}
	return &m, nil
}

// ListUnused returns up to limit IDs of media created before olderThan that no
// activity references, oldest first.
func (r *Repository) ListUnused(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	const q = `SELECT m.id FROM media m
		WHERE m.created_at < $1 AND NOT EXISTS (SELECT 1 FROM activities a WHERE a.media_id = m.id)
		ORDER BY m.created_at
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list unused media: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unused media: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

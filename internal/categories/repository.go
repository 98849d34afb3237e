package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/activity-hub/backend/internal/models"
)

// Repository handles category persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a category repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all categories ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	list := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Get returns a category by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a category.
func (r *Repository) Create(ctx context.Context, name string) (*models.Category, error) {
	c := models.Category{Name: name}
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id, created_at`, name).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &c, nil
}

// Rename changes a category's name.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Category, error) {
	c := models.Category{ID: id, Name: name}
	err := r.pool.QueryRow(ctx, `UPDATE categories SET name = $2 WHERE id = $1 RETURNING created_at`, id, name).
		Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &c, nil
}

// Delete removes a category; activity links go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/activity-hub/backend/internal/models"
)

// availableSQL is the SQL form of models.Activity.IsAvailable. The placeholder
// receives the caller's now.
const availableSQL = "a.available_seats > a.occupied_seats AND a.end_at > %s"

const activityColumns = `a.id, a.name, a.location, a.start_at, a.end_at,
	a.available_seats, a.occupied_seats, a.media_id, a.created_at, a.updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activities repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.Name, &a.Location, &a.StartAt, &a.EndAt,
		&a.AvailableSeats, &a.OccupiedSeats, &a.MediaID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	a.Categories = []models.Category{}
	return &a, nil
}

func (r *Repository) Create(ctx context.Context, a *models.Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO activities (name, location, start_at, end_at, available_seats, media_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, occupied_seats, created_at, updated_at`
	err = tx.QueryRow(ctx, q, a.Name, a.Location, a.StartAt, a.EndAt, a.AvailableSeats, a.MediaID).
		Scan(&a.ID, &a.OccupiedSeats, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if err := linkCategories(ctx, tx, a.ID, a.CategoryIDs()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Update(ctx context.Context, a *models.Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE activities
		SET name = $2, location = $3, start_at = $4, end_at = $5, available_seats = $6, media_id = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING occupied_seats, created_at, updated_at`
	err = tx.QueryRow(ctx, q, a.ID, a.Name, a.Location, a.StartAt, a.EndAt, a.AvailableSeats, a.MediaID).
		Scan(&a.OccupiedSeats, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("update activity: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM activity_categories WHERE activity_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	if err := linkCategories(ctx, tx, a.ID, a.CategoryIDs()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func linkCategories(ctx context.Context, q querier, activityID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		_, err := q.Exec(ctx, `INSERT INTO activity_categories (activity_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, activityID, id)
		if err != nil {
			return fmt.Errorf("link category %s: %w", id, err)
		}
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities a WHERE a.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, r.pool, []*models.Activity{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// Search builds the WHERE clause from the filters that are set.
func (r *Repository) Search(ctx context.Context, f Filter, now time.Time) ([]models.Activity, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Name != "" {
		conds = append(conds, "a.name LIKE "+arg("%"+escapeLike(f.Name)+"%")+` ESCAPE '\'`)
	}
	if f.Day != nil {
		start, end := DayBounds(*f.Day)
		conds = append(conds, "a.start_at < "+arg(end), "a.end_at >= "+arg(start))
	}
	if f.AvailableOnly {
		conds = append(conds, fmt.Sprintf(availableSQL, arg(now)))
	}

	q := `SELECT ` + activityColumns + ` FROM activities a`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY a.start_at, a.id"
	return r.list(ctx, q, args...)
}

func (r *Repository) FindJoinable(ctx context.Context, id uuid.UUID, now time.Time) (*models.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities a WHERE a.id = $1 AND ` + fmt.Sprintf(availableSQL, "$2")
	a, err := scanActivity(r.pool.QueryRow(ctx, q, id, now))
	if err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, r.pool, []*models.Activity{a}); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	const q = `SELECT ` + activityColumns + ` FROM activities a
		JOIN activity_users au ON au.activity_id = a.id
		WHERE au.user_id = $1
		ORDER BY a.start_at, a.id`
	return r.list(ctx, q, userID)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()
	var ptrs []*models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, r.pool, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.Activity, 0, len(ptrs))
	for _, a := range ptrs {
		out = append(out, *a)
	}
	return out, nil
}

func (r *Repository) attachCategories(ctx context.Context, q querier, list []*models.Activity) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(list))
	byID := make(map[uuid.UUID]*models.Activity, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}
	rows, err := q.Query(ctx, `SELECT ac.activity_id, c.id, c.name, c.created_at
		FROM activity_categories ac
		JOIN categories c ON c.id = ac.category_id
		WHERE ac.activity_id = ANY($1)
		ORDER BY c.name, c.id`, ids)
	if err != nil {
		return fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var activityID uuid.UUID
		var c models.Category
		if err := rows.Scan(&activityID, &c.ID, &c.Name, &c.CreatedAt); err != nil {
			return err
		}
		if a := byID[activityID]; a != nil {
			a.Categories = append(a.Categories, c)
		}
	}
	return rows.Err()
}

// Mutate locks the activity row with SELECT ... FOR UPDATE so concurrent joins
// on the same activity are serialized by the database.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Activity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanActivity(tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities a WHERE a.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	before, err := loadMembers(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	a.SetMembers(before)

	changed, err := fn(a)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := persistMembership(ctx, tx, a, before); err != nil {
			return nil, err
		}
	}
	if err := r.attachCategories(ctx, tx, []*models.Activity{a}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func loadMembers(ctx context.Context, q querier, activityID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT user_id FROM activity_users WHERE activity_id = $1`, activityID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func persistMembership(ctx context.Context, q querier, a *models.Activity, before []uuid.UUID) error {
	err := q.QueryRow(ctx, `UPDATE activities SET occupied_seats = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		a.ID, a.OccupiedSeats).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update occupancy: %w", err)
	}
	was := make(map[uuid.UUID]bool, len(before))
	for _, id := range before {
		was[id] = true
		if !a.HasMember(id) {
			if _, err := q.Exec(ctx, `DELETE FROM activity_users WHERE activity_id = $1 AND user_id = $2`, a.ID, id); err != nil {
				return fmt.Errorf("remove member: %w", err)
			}
		}
	}
	for _, id := range a.Members() {
		if was[id] {
			continue
		}
		if _, err := q.Exec(ctx, `INSERT INTO activity_users (activity_id, user_id) VALUES ($1, $2)`, a.ID, id); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

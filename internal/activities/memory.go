package activities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/activity-hub/backend/internal/models"
)

// MemoryStore is a Store kept in process memory. A single mutex serializes all
// mutations, which gives Mutate the same exclusivity as a row lock.
type MemoryStore struct {
	mu         sync.Mutex
	activities map[uuid.UUID]*models.Activity
	order      []uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{activities: make(map[uuid.UUID]*models.Activity)}
}

func (s *MemoryStore) Create(_ context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.activities[a.ID] = a.Clone()
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.activities[a.ID]
	if !ok {
		return models.ErrNotFound
	}
	next := cur.Clone()
	next.Name = a.Name
	next.Location = a.Location
	next.StartAt = a.StartAt
	next.EndAt = a.EndAt
	next.AvailableSeats = a.AvailableSeats
	next.Categories = append([]models.Category(nil), a.Categories...)
	next.MediaID = a.MediaID
	next.UpdatedAt = time.Now().UTC()
	s.activities[a.ID] = next

	a.OccupiedSeats = next.OccupiedSeats
	a.CreatedAt, a.UpdatedAt = next.CreatedAt, next.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.activities, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Search(_ context.Context, f Filter, now time.Time) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Activity, 0)
	for _, id := range s.order {
		a := s.activities[id]
		if f.Matches(a, now) {
			out = append(out, *a.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) FindJoinable(_ context.Context, id uuid.UUID, now time.Time) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok || !a.IsAvailable(now) {
		return nil, models.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Activity, 0)
	for _, id := range s.order {
		a := s.activities[id]
		if a.HasMember(userID) {
			out = append(out, *a.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Mutate(_ context.Context, id uuid.UUID, fn MutateFunc) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.activities[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	next := cur.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if changed {
		next.UpdatedAt = time.Now().UTC()
		s.activities[id] = next
	}
	return next.Clone(), nil
}

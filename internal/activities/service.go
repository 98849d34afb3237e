package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/internal/observability"
)

// Clock supplies the current time. Every availability decision reads it once.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// SeatListener is told about every join or leave that changed occupancy.
// Errors are logged and never fail the request.
type SeatListener interface {
	SeatsChanged(ctx context.Context, change models.SeatChange) error
}

// MediaReleaser is told when an activity stops referencing a media item.
type MediaReleaser interface {
	ReleaseMedia(ctx context.Context, mediaID uuid.UUID) error
}

// ValidationError is returned for activity input that breaks a field rule.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Service implements the activity use cases on top of a Store.
type Service struct {
	store     Store
	clock     Clock
	listeners []SeatListener
	releaser  MediaReleaser
	logger    *zap.Logger
}

// NewService creates an activity service. A nil clock means SystemClock.
func NewService(store Store, clock Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clock: clock, logger: logger}
}

// AddSeatListener registers l for seat changes.
func (s *Service) AddSeatListener(l SeatListener) {
	s.listeners = append(s.listeners, l)
}

// SetMediaReleaser sets who is told about media that is no longer referenced.
func (s *Service) SetMediaReleaser(r MediaReleaser) {
	s.releaser = r
}

func validate(a *models.Activity) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Location = strings.TrimSpace(a.Location)
	switch {
	case a.Name == "":
		return &ValidationError{Message: "Field `name` must not be empty"}
	case a.Location == "":
		return &ValidationError{Message: "Field `location` must not be empty"}
	case a.AvailableSeats < 0:
		return &ValidationError{Message: "Field `availableSeats` must not be negative"}
	case !a.StartAt.Before(a.EndAt):
		return &ValidationError{Message: "Field `startAt` must be before `endAt`"}
	}
	return nil
}

// Create stores a new activity with no members.
func (s *Service) Create(ctx context.Context, a *models.Activity) error {
	if err := validate(a); err != nil {
		return err
	}
	a.OccupiedSeats = 0
	a.SetMembers(nil)
	if err := s.store.Create(ctx, a); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update replaces the editable fields of an existing activity. Lowering
// AvailableSeats below the current occupancy is accepted; the activity then
// stays unavailable until enough members leave.
func (s *Service) Update(ctx context.Context, a *models.Activity) error {
	if err := validate(a); err != nil {
		return err
	}
	prev, err := s.store.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return err
	}
	if prev.MediaID != nil && (a.MediaID == nil || *a.MediaID != *prev.MediaID) {
		s.releaseMedia(ctx, *prev.MediaID)
	}
	return nil
}

// Delete removes an activity and its memberships.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	prev, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if prev.MediaID != nil {
		s.releaseMedia(ctx, *prev.MediaID)
	}
	return nil
}

// Get returns an activity regardless of availability.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	return s.store.Get(ctx, id)
}

// Search returns the activities matching f.
func (s *Service) Search(ctx context.Context, f Filter) ([]models.Activity, error) {
	return s.store.Search(ctx, f, s.clock.Now())
}

// FindJoinable returns the activity if it can currently be joined, else ErrNotFound.
func (s *Service) FindJoinable(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	return s.store.FindJoinable(ctx, id, s.clock.Now())
}

// ListByUser returns the activities userID holds a seat in.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	return s.store.ListByUser(ctx, userID)
}

// Join reserves a seat for userID. The check and the write happen under the
// store's lock, so two joins racing for the last seat cannot both succeed.
// The clock is read once the lock is held.
func (s *Service) Join(ctx context.Context, activityID, userID uuid.UUID) (*models.Activity, error) {
	var now time.Time
	a, err := s.store.Mutate(ctx, activityID, func(a *models.Activity) (bool, error) {
		now = s.clock.Now()
		if err := a.Join(userID, now); err != nil {
			return false, err
		}
		return true, nil
	})
	observability.RecordJoin(joinOutcome(err))
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.NewSeatChange(a, userID, models.SeatJoined, now))
	return a, nil
}

// Leave releases userID's seat. Leaving an activity one is not part of succeeds
// without changes.
func (s *Service) Leave(ctx context.Context, activityID, userID uuid.UUID) (*models.Activity, error) {
	var (
		now      time.Time
		released bool
	)
	a, err := s.store.Mutate(ctx, activityID, func(a *models.Activity) (bool, error) {
		now = s.clock.Now()
		released = a.Leave(userID)
		return released, nil
	})
	if err != nil {
		return nil, err
	}
	if released {
		observability.RecordSeatReleased()
		s.notify(ctx, models.NewSeatChange(a, userID, models.SeatLeft, now))
	}
	return a, nil
}

func (s *Service) notify(ctx context.Context, change models.SeatChange) {
	for _, l := range s.listeners {
		if err := l.SeatsChanged(ctx, change); err != nil {
			s.logger.Warn("seat listener failed",
				zap.String("activity_id", change.ActivityID.String()),
				zap.String("kind", change.Kind),
				zap.Error(err))
		}
	}
}

func (s *Service) releaseMedia(ctx context.Context, mediaID uuid.UUID) {
	if s.releaser == nil {
		return
	}
	if err := s.releaser.ReleaseMedia(ctx, mediaID); err != nil {
		s.logger.Warn("release media failed", zap.String("media_id", mediaID.String()), zap.Error(err))
	}
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeJoined
	case errors.Is(err, models.ErrAlreadyJoined):
		return observability.OutcomeAlreadyJoined
	case errors.Is(err, models.ErrNoSeatsLeft):
		return observability.OutcomeNoSeatsLeft
	case errors.Is(err, models.ErrNotFound):
		return observability.OutcomeNotFound
	default:
		return observability.OutcomeError
	}
}

package activities

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activity-hub/backend/internal/models"
)

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

type recordingListener struct {
	mu      sync.Mutex
	changes []models.SeatChange
	err     error
}

func (l *recordingListener) SeatsChanged(_ context.Context, change models.SeatChange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
	return l.err
}

type recordingReleaser struct {
	released []uuid.UUID
}

func (r *recordingReleaser) ReleaseMedia(_ context.Context, id uuid.UUID) error {
	r.released = append(r.released, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, fixedClock(testNow), nil), store
}

func createActivity(t *testing.T, svc *Service, name string, seats int, start, end time.Time) *models.Activity {
	t.Helper()
	a := &models.Activity{
		Name:           name,
		Location:       "Main hall",
		StartAt:        start,
		EndAt:          end,
		AvailableSeats: seats,
	}
	require.NoError(t, svc.Create(context.Background(), a))
	return a
}

func TestServiceJoinLeave(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := createActivity(t, svc, "Climbing", 2, testNow.Add(time.Hour), testNow.Add(3*time.Hour))
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	got, err := svc.Join(ctx, a.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OccupiedSeats)

	_, err = svc.Join(ctx, a.ID, u1)
	assert.ErrorIs(t, err, models.ErrAlreadyJoined)

	got, err = svc.Join(ctx, a.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.OccupiedSeats)

	_, err = svc.Join(ctx, a.ID, u3)
	assert.ErrorIs(t, err, models.ErrNoSeatsLeft)

	got, err = svc.Leave(ctx, a.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OccupiedSeats)

	got, err = svc.Leave(ctx, a.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OccupiedSeats)

	mine, err := svc.ListByUser(ctx, u2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
}

func TestServiceJoinUnknownActivity(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Join(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Leave(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestServiceJoinEndedActivity(t *testing.T) {
	svc, _ := newTestService(t)
	a := createActivity(t, svc, "Past", 5, testNow.Add(-3*time.Hour), testNow.Add(-time.Hour))
	_, err := svc.Join(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNoSeatsLeft)
}

func TestServiceConcurrentJoinsForLastSeat(t *testing.T) {
	svc, store := newTestService(t)
	a := createActivity(t, svc, "Last seat", 1, testNow.Add(time.Hour), testNow.Add(2*time.Hour))

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Join(context.Background(), a.ID, uuid.New())
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrNoSeatsLeft):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, full)

	stored, err := store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.OccupiedSeats)
	assert.Len(t, stored.Members(), 1)
}

func TestServiceConcurrentDuplicateJoins(t *testing.T) {
	svc, store := newTestService(t)
	a := createActivity(t, svc, "Dup", 10, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Join(context.Background(), a.ID, user)
		}()
	}
	wg.Wait()

	stored, err := store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.OccupiedSeats)
}

func TestSearchAgreesWithFindJoinable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	open := createActivity(t, svc, "Open", 3, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	full := createActivity(t, svc, "Full", 1, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	ended := createActivity(t, svc, "Ended", 3, testNow.Add(-2*time.Hour), testNow.Add(-time.Hour))
	_, err := svc.Join(ctx, full.ID, uuid.New())
	require.NoError(t, err)

	available, err := svc.Search(ctx, Filter{AvailableOnly: true})
	require.NoError(t, err)
	inSearch := make(map[uuid.UUID]bool)
	for _, a := range available {
		inSearch[a.ID] = true
	}

	for _, a := range []*models.Activity{open, full, ended} {
		_, err := svc.FindJoinable(ctx, a.ID)
		joinable := err == nil
		if !joinable {
			assert.ErrorIs(t, err, models.ErrNotFound)
		}
		assert.Equal(t, joinable, inSearch[a.ID], a.Name)
	}
	assert.True(t, inSearch[open.ID])
	assert.Len(t, available, 1)
}

func TestSearchFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	dayStart := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)

	createActivity(t, svc, "Salsa night", 10, dayStart.Add(20*time.Hour), dayStart.Add(23*time.Hour))
	createActivity(t, svc, "Salsa basics", 10, dayStart.Add(48*time.Hour), dayStart.Add(50*time.Hour))
	createActivity(t, svc, "Tango", 10, dayStart.Add(9*time.Hour), dayStart.Add(10*time.Hour))

	list, err := svc.Search(ctx, Filter{Name: "Salsa"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	day := dayStart
	list, err = svc.Search(ctx, Filter{Name: "Salsa", Day: &day})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Salsa night", list[0].Name)

	list, err = svc.Search(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		a    models.Activity
	}{
		{"blank name", models.Activity{Name: " ", Location: "x", StartAt: testNow, EndAt: testNow.Add(time.Hour)}},
		{"blank location", models.Activity{Name: "x", Location: "", StartAt: testNow, EndAt: testNow.Add(time.Hour)}},
		{"negative seats", models.Activity{Name: "x", Location: "y", AvailableSeats: -1, StartAt: testNow, EndAt: testNow.Add(time.Hour)}},
		{"end before start", models.Activity{Name: "x", Location: "y", StartAt: testNow, EndAt: testNow.Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			var invalid *ValidationError
			assert.ErrorAs(t, svc.Create(context.Background(), &a), &invalid)
		})
	}
}

func TestServiceUpdateKeepsOccupancy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := createActivity(t, svc, "Run", 3, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	_, err := svc.Join(ctx, a.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.Join(ctx, a.ID, uuid.New())
	require.NoError(t, err)

	edit := &models.Activity{ID: a.ID, Name: "Run fast", Location: "Park", StartAt: a.StartAt, EndAt: a.EndAt, AvailableSeats: 1}
	require.NoError(t, svc.Update(ctx, edit))

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run fast", got.Name)
	assert.Equal(t, 2, got.OccupiedSeats)
	assert.Equal(t, 1, got.AvailableSeats)
	assert.False(t, got.IsAvailable(testNow))

	_, err = svc.Join(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNoSeatsLeft)
}

func TestServiceNotifiesListeners(t *testing.T) {
	svc, _ := newTestService(t)
	failing := &recordingListener{err: errors.New("broker down")}
	ok := &recordingListener{}
	svc.AddSeatListener(failing)
	svc.AddSeatListener(ok)
	ctx := context.Background()

	a := createActivity(t, svc, "Swim", 1, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	user := uuid.New()

	_, err := svc.Join(ctx, a.ID, user)
	require.NoError(t, err)
	_, err = svc.Join(ctx, a.ID, uuid.New())
	require.ErrorIs(t, err, models.ErrNoSeatsLeft)
	_, err = svc.Leave(ctx, a.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.Leave(ctx, a.ID, user)
	require.NoError(t, err)

	require.Len(t, ok.changes, 2)
	assert.Equal(t, models.SeatJoined, ok.changes[0].Kind)
	assert.False(t, ok.changes[0].Available)
	assert.Equal(t, models.SeatLeft, ok.changes[1].Kind)
	assert.Equal(t, 0, ok.changes[1].OccupiedSeats)
	assert.True(t, ok.changes[1].Available)
	assert.Len(t, failing.changes, 2)
}

func TestServiceReleasesReplacedMedia(t *testing.T) {
	svc, _ := newTestService(t)
	rel := &recordingReleaser{}
	svc.SetMediaReleaser(rel)
	ctx := context.Background()

	oldMedia, newMedia := uuid.New(), uuid.New()
	a := &models.Activity{Name: "Art", Location: "Studio", StartAt: testNow, EndAt: testNow.Add(time.Hour), AvailableSeats: 4, MediaID: &oldMedia}
	require.NoError(t, svc.Create(ctx, a))

	edit := *a
	edit.MediaID = &newMedia
	require.NoError(t, svc.Update(ctx, &edit))
	require.NoError(t, svc.Delete(ctx, a.ID))

	assert.Equal(t, []uuid.UUID{oldMedia, newMedia}, rel.released)

	_, err := svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// lockWaitStore lets time pass before the row lock is granted.
type lockWaitStore struct {
	*MemoryStore
	clock *steppingClock
	wait  time.Duration
}

func (s lockWaitStore) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Activity, error) {
	s.clock.advance(s.wait)
	return s.MemoryStore.Mutate(ctx, id, fn)
}

func TestServiceJoinJudgedAtLockTime(t *testing.T) {
	clock := &steppingClock{now: testNow}
	store := lockWaitStore{MemoryStore: NewMemoryStore(), clock: clock, wait: 2 * time.Minute}
	svc := NewService(store, clock, nil)
	listener := &recordingListener{}
	svc.AddSeatListener(listener)
	ctx := context.Background()

	closing := createActivity(t, svc, "Closing", 5, testNow.Add(-time.Hour), testNow.Add(time.Minute))
	_, err := svc.Join(ctx, closing.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNoSeatsLeft)

	open := createActivity(t, svc, "Open", 5, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	_, err = svc.Join(ctx, open.ID, uuid.New())
	require.NoError(t, err)
	require.Len(t, listener.changes, 1)
	assert.True(t, listener.changes[0].At.Equal(clock.Now()))
}

func TestServiceRandomJoinLeaveKeepsOccupancyInBounds(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	acts := []*models.Activity{
		createActivity(t, svc, "One seat", 1, testNow.Add(time.Hour), testNow.Add(2*time.Hour)),
		createActivity(t, svc, "Three seats", 3, testNow.Add(time.Hour), testNow.Add(2*time.Hour)),
		createActivity(t, svc, "Ended", 4, testNow.Add(-2*time.Hour), testNow.Add(-time.Hour)),
	}
	users := make([]uuid.UUID, 6)
	for i := range users {
		users[i] = uuid.New()
	}
	members := make(map[uuid.UUID]map[uuid.UUID]bool, len(acts))
	for _, a := range acts {
		members[a.ID] = map[uuid.UUID]bool{}
	}

	for step := 0; step < 1000; step++ {
		a := acts[rng.Intn(len(acts))]
		u := users[rng.Intn(len(users))]
		if rng.Intn(2) == 0 {
			_, err := svc.Join(ctx, a.ID, u)
			switch {
			case err == nil:
				require.False(t, members[a.ID][u], "step %d: joined twice", step)
				members[a.ID][u] = true
			case errors.Is(err, models.ErrAlreadyJoined):
				require.True(t, members[a.ID][u], "step %d", step)
			case errors.Is(err, models.ErrNoSeatsLeft):
			default:
				require.NoError(t, err, "step %d", step)
			}
		} else {
			_, err := svc.Leave(ctx, a.ID, u)
			require.NoError(t, err, "step %d", step)
			delete(members[a.ID], u)
		}

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.OccupiedSeats, 0, "step %d", step)
		require.LessOrEqual(t, got.OccupiedSeats, got.AvailableSeats, "step %d", step)
		require.Len(t, got.Members(), got.OccupiedSeats, "step %d", step)
		require.Len(t, members[a.ID], got.OccupiedSeats, "step %d", step)
	}
	ended, err := store.Get(ctx, acts[2].ID)
	require.NoError(t, err)
	assert.Zero(t, ended.OccupiedSeats)
}

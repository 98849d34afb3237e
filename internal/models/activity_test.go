package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newActivity(seats int, endAt time.Time) *Activity {
	return &Activity{
		ID:             uuid.New(),
		Name:           "Yoga",
		Location:       "Hall A",
		StartAt:        endAt.Add(-2 * time.Hour),
		EndAt:          endAt,
		AvailableSeats: seats,
	}
}

func TestIsAvailable(t *testing.T) {
	tests := []struct {
		name      string
		available int
		occupied  int
		endAt     time.Time
		want      bool
	}{
		{"free seats and future end", 2, 1, now.Add(time.Hour), true},
		{"full", 2, 2, now.Add(time.Hour), false},
		{"over-booked after edit", 1, 3, now.Add(time.Hour), false},
		{"ends exactly now", 2, 0, now, false},
		{"ended", 2, 0, now.Add(-time.Minute), false},
		{"zero capacity", 0, 0, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newActivity(tt.available, tt.endAt)
			a.OccupiedSeats = tt.occupied
			assert.Equal(t, tt.want, a.IsAvailable(now))
		})
	}
}

func TestJoinLeaveSequence(t *testing.T) {
	a := newActivity(2, now.Add(time.Hour))
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, a.Join(u1, now))
	assert.Equal(t, 1, a.OccupiedSeats)

	assert.ErrorIs(t, a.Join(u1, now), ErrAlreadyJoined)
	assert.Equal(t, 1, a.OccupiedSeats)

	require.NoError(t, a.Join(u2, now))
	assert.Equal(t, 2, a.OccupiedSeats)

	assert.ErrorIs(t, a.Join(u3, now), ErrNoSeatsLeft)
	assert.Equal(t, 2, a.OccupiedSeats)
	assert.False(t, a.HasMember(u3))

	assert.True(t, a.Leave(u1))
	assert.Equal(t, 1, a.OccupiedSeats)
	assert.False(t, a.HasMember(u1))

	assert.False(t, a.Leave(u1))
	assert.Equal(t, 1, a.OccupiedSeats)
}

func TestJoinEndedActivity(t *testing.T) {
	a := newActivity(10, now.Add(-time.Hour))
	assert.ErrorIs(t, a.Join(uuid.New(), now), ErrNoSeatsLeft)
	assert.Zero(t, a.OccupiedSeats)
}

func TestJoinFullActivityAsMemberReportsAlreadyJoined(t *testing.T) {
	a := newActivity(1, now.Add(time.Hour))
	u := uuid.New()
	require.NoError(t, a.Join(u, now))
	assert.ErrorIs(t, a.Join(u, now), ErrAlreadyJoined)
}

func TestJoinThenLeaveRestoresState(t *testing.T) {
	a := newActivity(3, now.Add(time.Hour))
	a.SetMembers([]uuid.UUID{uuid.New()})
	a.OccupiedSeats = 1
	before := a.Members()

	u := uuid.New()
	require.NoError(t, a.Join(u, now))
	require.True(t, a.Leave(u))

	assert.Equal(t, 1, a.OccupiedSeats)
	assert.Equal(t, before, a.Members())
}

func TestCloneIsIndependent(t *testing.T) {
	a := newActivity(3, now.Add(time.Hour))
	media := uuid.New()
	a.MediaID = &media
	a.Categories = []Category{{ID: uuid.New(), Name: "Sport"}}

	cp := a.Clone()
	require.NoError(t, cp.Join(uuid.New(), now))
	cp.Categories[0].Name = "Music"

	assert.Zero(t, a.OccupiedSeats)
	assert.Empty(t, a.Members())
	assert.Equal(t, "Sport", a.Categories[0].Name)
	assert.Equal(t, media, *cp.MediaID)
}

func TestNewSeatChange(t *testing.T) {
	a := newActivity(1, now.Add(time.Hour))
	u := uuid.New()
	require.NoError(t, a.Join(u, now))

	change := NewSeatChange(a, u, SeatJoined, now)
	assert.Equal(t, a.ID, change.ActivityID)
	assert.Equal(t, 1, change.OccupiedSeats)
	assert.False(t, change.Available)
	assert.Equal(t, SeatJoined, change.Kind)
}

func TestRoleGrants(t *testing.T) {
	assert.True(t, RoleAdmin.Grants(RoleAdmin))
	assert.True(t, RoleAdmin.Grants(RoleUser))
	assert.True(t, RoleUser.Grants(RoleUser))
	assert.False(t, RoleUser.Grants(RoleAdmin))
	assert.False(t, Role("guest").Grants(RoleUser))
	assert.False(t, RoleAdmin.Grants(Role("root")))
}

package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Activity is a bookable event with a fixed number of seats.
type Activity struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Location       string     `json:"location"`
	StartAt        time.Time  `json:"startAt"`
	EndAt          time.Time  `json:"endAt"`
	AvailableSeats int        `json:"availableSeats"`
	OccupiedSeats  int        `json:"occupiedSeats"`
	Categories     []Category `json:"categories"`
	MediaID        *uuid.UUID `json:"media,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// members holds the IDs of users that currently hold a seat.
	members map[uuid.UUID]struct{}
}

// IsAvailable reports whether the activity can still accept a member at now.
// Search and the joinable lookup both rely on this predicate.
func (a *Activity) IsAvailable(now time.Time) bool {
	return a.AvailableSeats > a.OccupiedSeats && a.EndAt.After(now)
}

// HasMember reports whether userID holds a seat.
func (a *Activity) HasMember(userID uuid.UUID) bool {
	_, ok := a.members[userID]
	return ok
}

// Join gives userID a seat. Membership is checked before capacity, so a member
// re-joining a full activity gets ErrAlreadyJoined.
func (a *Activity) Join(userID uuid.UUID, now time.Time) error {
	if a.HasMember(userID) {
		return ErrAlreadyJoined
	}
	if !a.IsAvailable(now) {
		return ErrNoSeatsLeft
	}
	if a.members == nil {
		a.members = make(map[uuid.UUID]struct{})
	}
	a.members[userID] = struct{}{}
	a.OccupiedSeats++
	return nil
}

// Leave releases userID's seat. It returns false and changes nothing when
// userID was not a member.
func (a *Activity) Leave(userID uuid.UUID) bool {
	if !a.HasMember(userID) {
		return false
	}
	delete(a.members, userID)
	a.OccupiedSeats--
	return true
}

// SetMembers replaces the member set. Stores use it when loading an activity;
// OccupiedSeats is left as stored.
func (a *Activity) SetMembers(ids []uuid.UUID) {
	a.members = make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		a.members[id] = struct{}{}
	}
}

// Members returns the member IDs in a stable order.
func (a *Activity) Members() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.members))
	for id := range a.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// CategoryIDs returns the IDs of the attached categories.
func (a *Activity) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Categories))
	for _, c := range a.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Clone returns a deep copy, including the member set.
func (a *Activity) Clone() *Activity {
	cp := *a
	cp.Categories = append([]Category(nil), a.Categories...)
	if a.MediaID != nil {
		id := *a.MediaID
		cp.MediaID = &id
	}
	cp.members = make(map[uuid.UUID]struct{}, len(a.members))
	for id := range a.members {
		cp.members[id] = struct{}{}
	}
	return &cp
}

// SeatChange describes a join or leave that changed an activity's occupancy.
type SeatChange struct {
	ActivityID     uuid.UUID `json:"activity_id"`
	UserID         uuid.UUID `json:"user_id"`
	Kind           string    `json:"kind"`
	OccupiedSeats  int       `json:"occupied_seats"`
	AvailableSeats int       `json:"available_seats"`
	Available      bool      `json:"available"`
	At             time.Time `json:"at"`
}

const (
	SeatJoined = "joined"
	SeatLeft   = "left"
)

// NewSeatChange snapshots a after a successful join or leave.
func NewSeatChange(a *Activity, userID uuid.UUID, kind string, now time.Time) SeatChange {
	return SeatChange{
		ActivityID:     a.ID,
		UserID:         userID,
		Kind:           kind,
		OccupiedSeats:  a.OccupiedSeats,
		AvailableSeats: a.AvailableSeats,
		Available:      a.IsAvailable(now),
		At:             now,
	}
}

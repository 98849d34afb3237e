package activities

import (
	"strings"
	"time"

	"github.com/activity-hub/backend/internal/models"
)

// DayLayout is the accepted format of the day query parameter.
const DayLayout = "2006-01-02"

// Filter narrows a search. Zero-value fields impose no constraint; the rest are ANDed.
type Filter struct {
	// Name matches activities whose name contains it (case-sensitive).
	Name string
	// Day matches activities overlapping that calendar day in Day's location.
	Day *time.Time
	// AvailableOnly keeps activities that are not full and have not ended.
	AvailableOnly bool
}

// ParseDay parses a YYYY-MM-DD value as midnight in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, value, loc)
}

// DayBounds returns [start, end) of the calendar day containing day, in day's
// location. end is start plus one calendar day, so DST days are 23 or 25 hours.
func DayBounds(day time.Time) (start, end time.Time) {
	y, m, d := day.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// OverlapsDay reports whether a runs at some point during the day containing day.
// An activity ending exactly at the day's start still counts.
func OverlapsDay(a *models.Activity, day time.Time) bool {
	start, end := DayBounds(day)
	return a.StartAt.Before(end) && !a.EndAt.Before(start)
}

// Matches reports whether a satisfies every filter that is set.
func (f Filter) Matches(a *models.Activity, now time.Time) bool {
	if f.Name != "" && !strings.Contains(a.Name, f.Name) {
		return false
	}
	if f.Day != nil && !OverlapsDay(a, *f.Day) {
		return false
	}
	if f.AvailableOnly && !a.IsAvailable(now) {
		return false
	}
	return true
}

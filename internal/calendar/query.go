package calendar

import (
	"cmp"
	"errors"
	"slices"
	"time"
)

const (
	// lookBehindDays and lookAheadDays widen the fetch window around the target week
	// so long absences that start early or end late are still returned.
	lookBehindDays = 14
	lookAheadDays  = 21

	// DefaultLimit caps the number of events returned by one fetch.
	DefaultLimit = 150
)

// DefaultFields are the only event fields the planner needs.
var DefaultFields = []string{"subject", "organizer", "start", "end", "attendees"}

// ErrFetch is returned when the calendar service answers a query with a
// non-success response.
var ErrFetch = errors.New("calendar fetch failed")

// Query describes one calendar fetch.
type Query struct {
	// Address is the mailbox that owns the out-of-office calendar.
	Address string

	// Start and End bound the calendar view.
	Start time.Time
	End   time.Time

	// Limit is the maximum number of events to return.
	Limit int

	// Fields selects which event fields are returned.
	Fields []string
}

// NewQuery returns the query for the week starting at monday: two weeks
// before it to three weeks after it, capped at DefaultLimit events.
func NewQuery(monday time.Time, address string) Query {
	fields := make([]string, len(DefaultFields))
	copy(fields, DefaultFields)

	return Query{
		Address: address,
		Start:   monday.AddDate(0, 0, -lookBehindDays),
		End:     monday.AddDate(0, 0, lookAheadDays),
		Limit:   DefaultLimit,
		Fields:  fields,
	}
}

// Overlaps reports whether the event intersects the query window.
func (q Query) Overlaps(e Event) bool {
	return !e.End.Before(q.Start) && !e.Start.After(q.End)
}

// limit orders events by start and keeps the first q.Limit of them, the
// same cut the calendar service makes for a calendar view.
func (q Query) limit(events []Event) []Event {
	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Start.UnixNano(), b.Start.UnixNano())
	})
	if q.Limit > 0 && len(events) > q.Limit {
		return events[:q.Limit]
	}
	return events
}

// Package calendar provides calendar source interfaces and event types.
package calendar

import (
	"context"
	"strings"
	"time"
)

// Person is a named mailbox as it appears on an event.
type Person struct {
	// Name is the display name, e.g. "Jane Q. Public".
	Name string

	// Email is the mailbox address.
	Email string
}

// FirstName returns the lowercased first whitespace-separated token of the
// display name, or "" if the name is blank.
func (p Person) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Is reports whether the person's email matches address, ignoring case.
func (p Person) Is(address string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(address))
}

// Event represents an out-of-office calendar event.
type Event struct {
	// Subject is the event title.
	Subject string

	// Organizer created the event. For events booked directly by the absent
	// person this is the only way to know who is away.
	Organizer Person

	// Start is when the event begins.
	Start time.Time

	// End is when the event ends.
	End time.Time

	// Attendees in the order the calendar service returned them.
	Attendees []Person
}

// Duration returns the duration of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Source is the interface that calendar sources must implement.
type Source interface {
	// Name returns the display name of this calendar source.
	Name() string

	// Fetch retrieves the events described by q in a single request.
	Fetch(ctx context.Context, q Query) ([]Event, error)
}

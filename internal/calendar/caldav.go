package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ics "github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// CalDAVSource fetches events from a shared CalDAV calendar.
type CalDAVSource struct {
	name      string
	url       string
	username  string
	password  string
	calendars []string // Optional: specific calendars to query
}

// NewCalDAVSource creates a new CalDAV calendar source.
func NewCalDAVSource(name, url, username, password string, calendars []string) *CalDAVSource {
	return &CalDAVSource{
		name:      name,
		url:       url,
		username:  username,
		password:  password,
		calendars: calendars,
	}
}

// Name returns the display name of this calendar source.
func (s *CalDAVSource) Name() string {
	return s.name
}

// Fetch runs a time-range query for q's window on every selected calendar.
func (s *CalDAVSource) Fetch(ctx context.Context, q Query) ([]Event, error) {
	var httpClient webdav.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	if s.username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, s.username, s.password)
	}

	client, err := caldav.NewClient(httpClient, s.url)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	// Find the user's calendar home
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: find principal: %v", ErrFetch, err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendar home: %v", ErrFetch, err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendars: %v", ErrFetch, err)
	}

	var allEvents []Event
	for _, cal := range cals {
		if len(s.calendars) > 0 && !s.shouldQueryCalendar(cal.Name) {
			continue
		}

		events, err := s.fetchCalendarEvents(ctx, client, cal, q)
		if err != nil {
			return nil, err
		}
		allEvents = append(allEvents, events...)
	}

	slog.Debug("fetched CalDAV events", "source", s.name, "count", len(allEvents))
	return q.limit(allEvents), nil
}

// shouldQueryCalendar checks if a calendar was selected in the config.
func (s *CalDAVSource) shouldQueryCalendar(name string) bool {
	for _, c := range s.calendars {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// fetchCalendarEvents fetches events from a single calendar.
func (s *CalDAVSource) fetchCalendarEvents(ctx context.Context, client *caldav.Client, cal caldav.Calendar, q Query) ([]Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name: "VEVENT",
				Props: []string{
					ics.PropSummary,
					ics.PropDateTimeStart,
					ics.PropDateTimeEnd,
					ics.PropDuration,
					ics.PropOrganizer,
					ics.PropAttendee,
					ics.PropRecurrenceRule,
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: q.Start,
				End:   q.End,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, cal.Path, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query calendar %s: %v", ErrFetch, cal.Name, err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events = append(events, eventsFromCalendar(obj.Data, q)...)
	}

	return events, nil
}

var _ Source = (*CalDAVSource)(nil)

package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ics "github.com/emersion/go-ical"
)

// ICSSource reads events from an ICS export, either a local file or an
// HTTP(S) URL.
type ICSSource struct {
	name     string
	location string
	username string
	password string
	client   *http.Client
}

// NewICSSource creates a new ICS calendar source. location is a file path or URL.
func NewICSSource(name, location, username, password string) *ICSSource {
	return &ICSSource{
		name:     name,
		location: location,
		username: username,
		password: password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the display name of this calendar source.
func (s *ICSSource) Name() string {
	return s.name
}

// Fetch reads the feed once and returns the events overlapping q.
func (s *ICSSource) Fetch(ctx context.Context, q Query) ([]Event, error) {
	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	events, err := parseICS(r, q)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched ICS events", "source", s.name, "count", len(events))
	return q.limit(events), nil
}

func (s *ICSSource) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("open ICS file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Add basic auth if credentials provided
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ICS: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d: %s", ErrFetch, s.location, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp.Body, nil
}

// parseICS decodes every calendar in r and returns the events overlapping q.
func parseICS(r io.Reader, q Query) ([]Event, error) {
	dec := ics.NewDecoder(r)

	var events []Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode ICS: %w", err)
		}

		events = append(events, eventsFromCalendar(cal, q)...)
	}

	return events, nil
}

// eventsFromCalendar converts the VEVENTs of cal, expanding recurrences
// inside the query window.
func eventsFromCalendar(cal *ics.Calendar, q Query) []Event {
	var events []Event
	for _, comp := range cal.Children {
		if comp.Name != ics.CompEvent {
			continue
		}

		parsed, err := parseEvent(comp, q)
		if err != nil {
			// Skip events we can't parse
			slog.Debug("skip ICS event", "error", err)
			continue
		}

		for _, event := range parsed {
			if q.Overlaps(event) {
				events = append(events, event)
			}
		}
	}
	return events
}

// parseEvent converts an ICS VEVENT component to our Event type.
// For recurring events, it expands occurrences within the query window.
func parseEvent(comp *ics.Component, q Query) ([]Event, error) {
	var base Event

	// Summary (title)
	if prop := comp.Props.Get(ics.PropSummary); prop != nil {
		base.Subject = prop.Value
	}

	if prop := comp.Props.Get(ics.PropOrganizer); prop != nil {
		base.Organizer = personFromProp(*prop)
	}

	for _, prop := range comp.Props.Values(ics.PropAttendee) {
		base.Attendees = append(base.Attendees, personFromProp(prop))
	}

	prop := comp.Props.Get(ics.PropDateTimeStart)
	if prop == nil {
		return nil, fmt.Errorf("missing %s", ics.PropDateTimeStart)
	}
	start, err := propTime(prop)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}

	// End time / duration
	duration := 24 * time.Hour
	if prop := comp.Props.Get(ics.PropDateTimeEnd); prop != nil {
		end, err := propTime(prop)
		if err != nil {
			return nil, fmt.Errorf("parse end time: %w", err)
		}
		duration = end.Sub(start)
	} else if prop := comp.Props.Get(ics.PropDuration); prop != nil {
		d, err := prop.Duration()
		if err != nil {
			return nil, fmt.Errorf("parse duration: %w", err)
		}
		duration = d
	}

	// Check for recurrence rule
	rset, err := comp.RecurrenceSet(time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence: %w", err)
	}

	if rset == nil {
		base.Start = start
		base.End = start.Add(duration)
		return []Event{base}, nil
	}

	// Look back by duration to catch occurrences that started before the window.
	occurrences := rset.Between(q.Start.Add(-duration), q.End, true)

	events := make([]Event, 0, len(occurrences))
	for _, occ := range occurrences {
		event := base
		event.Start = occ
		event.End = occ.Add(duration)
		events = append(events, event)
	}

	return events, nil
}

// propTime parses a DTSTART/DTEND value, falling back to floating and
// date-only forms.
func propTime(prop *ics.Prop) (time.Time, error) {
	t, err := prop.DateTime(time.Local)
	if err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", prop.Value, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("20060102", prop.Value, time.Local)
}

// personFromProp reads an ORGANIZER or ATTENDEE property.
func personFromProp(prop ics.Prop) Person {
	email := prop.Value
	if len(email) > 7 && strings.EqualFold(email[:7], "mailto:") {
		email = email[7:]
	}
	return Person{
		Name:  prop.Params.Get(ics.ParamCommonName),
		Email: email,
	}
}

var _ Source = (*ICSSource)(nil)

package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultGraphURL is the Microsoft Graph API base used when none is configured.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

// GraphSource fetches events from a shared Microsoft 365 calendar via Graph API.
type GraphSource struct {
	name    string
	baseURL string
	client  *http.Client
	loc     *time.Location
}

// NewGraphSource creates a Graph calendar source. client must already carry
// the bearer token.
func NewGraphSource(name, baseURL string, client *http.Client) *GraphSource {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GraphSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		loc:     time.Local,
	}
}

// Name returns the display name of this calendar source.
func (s *GraphSource) Name() string {
	return s.name
}

// Ping checks that the token is accepted by calling the signed-in user endpoint.
func (s *GraphSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/me", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ping: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Fetch retrieves the calendar view described by q. Only the first page is
// read; q.Limit bounds its size.
func (s *GraphSource) Fetch(ctx context.Context, q Query) ([]Event, error) {
	reqURL := s.calendarViewURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// Ask for UTC so parsing never depends on the mailbox's zone.
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: GET %s: status %d: %s", ErrFetch, reqURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var graphResp graphCalendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&graphResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	events := make([]Event, 0, len(graphResp.Value))
	for _, ge := range graphResp.Value {
		event, err := s.convertEvent(ge)
		if err != nil {
			slog.Warn("skip event conversion error", "subject", ge.Subject, "error", err)
			continue
		}
		events = append(events, event)
	}

	slog.Debug("fetched graph events", "source", s.name, "count", len(events), "more", graphResp.NextLink != "")
	return events, nil
}

// calendarViewURL builds the calendarView request for q.
func (s *GraphSource) calendarViewURL(q Query) string {
	params := url.Values{}
	params.Set("startDateTime", q.Start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", q.End.UTC().Format(time.RFC3339))
	if q.Limit > 0 {
		params.Set("$top", strconv.Itoa(q.Limit))
	}
	if len(q.Fields) > 0 {
		params.Set("$select", strings.Join(q.Fields, ","))
	}

	return s.baseURL + "/users/" + url.PathEscape(q.Address) + "/calendarView?" + params.Encode()
}

// graphCalendarResponse is the MS Graph API response for calendar events.
type graphCalendarResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink,omitempty"`
}

// graphEvent holds the selected fields of a Graph event.
type graphEvent struct {
	Subject   string           `json:"subject"`
	Organizer *graphRecipient  `json:"organizer,omitempty"`
	Start     graphDateTime    `json:"start"`
	End       graphDateTime    `json:"end"`
	Attendees []graphRecipient `json:"attendees"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (r graphRecipient) person() Person {
	return Person{Name: r.EmailAddress.Name, Email: r.EmailAddress.Address}
}

// convertEvent converts a Graph API event to our Event type.
func (s *GraphSource) convertEvent(ge graphEvent) (Event, error) {
	event := Event{Subject: ge.Subject}

	start, err := parseGraphDateTime(ge.Start)
	if err != nil {
		return event, fmt.Errorf("parse start: %w", err)
	}
	event.Start = start.In(s.loc)

	end, err := parseGraphDateTime(ge.End)
	if err != nil {
		return event, fmt.Errorf("parse end: %w", err)
	}
	event.End = end.In(s.loc)

	// All-day events come back as midnight to midnight in the requested
	// zone. They keep their dates rather than shifting with the offset.
	if end.After(start) && isMidnight(start) && isMidnight(end) {
		event.Start = floatingDate(start, s.loc)
		event.End = floatingDate(end, s.loc)
	}

	if ge.Organizer != nil {
		event.Organizer = ge.Organizer.person()
	}

	event.Attendees = make([]Person, 0, len(ge.Attendees))
	for _, a := range ge.Attendees {
		event.Attendees = append(event.Attendees, a.person())
	}

	return event, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// floatingDate returns midnight in loc on t's calendar date.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// parseGraphDateTime parses a Graph API datetime value.
// Graph sends seven fractional-second digits ("2024-01-15T09:00:00.0000000");
// the last one is dropped so the value fits a microsecond layout.
func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	loc := time.UTC
	if gdt.TimeZone != "" {
		if l, err := time.LoadLocation(gdt.TimeZone); err == nil {
			loc = l
		}
	}

	value := gdt.DateTime
	if dot := strings.IndexByte(value, '.'); dot >= 0 && len(value)-dot-1 == 7 {
		value = value[:len(value)-1]
	}

	formats := []string{
		"2006-01-02T15:04:05.000000",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		t, err := time.ParseInLocation(format, value, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse datetime: %s", gdt.DateTime)
}

var _ Source = (*GraphSource)(nil)

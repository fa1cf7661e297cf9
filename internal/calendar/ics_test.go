package calendar

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oooICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:leave-1
DTSTAMP:20240101T000000Z
SUMMARY:Annual leave
DTSTART;VALUE=DATE:20240103
DTEND;VALUE=DATE:20240106
ORGANIZER;CN=Out Of Office:mailto:ooo@example.org
ATTENDEE;CN=Jane Q. Public:mailto:jane@example.org
ATTENDEE;CN=Out Of Office:MAILTO:ooo@example.org
END:VEVENT
BEGIN:VEVENT
UID:dentist-1
DTSTAMP:20240101T000000Z
SUMMARY:Dentist
DTSTART:20240102T090000
DTEND:20240102T100000
ORGANIZER;CN=Bob Smith:mailto:bob@example.org
END:VEVENT
BEGIN:VEVENT
UID:old-1
DTSTAMP:20240101T000000Z
SUMMARY:Long ago
DTSTART:20230102T090000
DTEND:20230102T100000
ORGANIZER;CN=Bob Smith:mailto:bob@example.org
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20240101T000000Z
SUMMARY:Part time
DTSTART:20231201T090000
DTEND:20231201T170000
RRULE:FREQ=WEEKLY;BYDAY=FR;COUNT=20
ORGANIZER;CN=Carol King:mailto:carol@example.org
END:VEVENT
END:VCALENDAR
`

func TestICSSourceFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ooo.ics")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(oooICS, "\n", "\r\n")), 0644))

	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	q := NewQuery(monday, "ooo@example.org")

	events, err := NewICSSource("test", path, "", "").Fetch(context.Background(), q)
	require.NoError(t, err)

	bySubject := make(map[string][]Event)
	for _, e := range events {
		bySubject[e.Subject] = append(bySubject[e.Subject], e)
	}

	assert.NotContains(t, bySubject, "Long ago")

	require.Len(t, bySubject["Annual leave"], 1)
	leave := bySubject["Annual leave"][0]
	assert.Equal(t, Person{Name: "Out Of Office", Email: "ooo@example.org"}, leave.Organizer)
	assert.Equal(t, []Person{
		{Name: "Jane Q. Public", Email: "jane@example.org"},
		{Name: "Out Of Office", Email: "ooo@example.org"},
	}, leave.Attendees)
	assert.Equal(t, 72*time.Hour, leave.Duration())

	require.Len(t, bySubject["Dentist"], 1)
	assert.Equal(t, "bob", bySubject["Dentist"][0].Organizer.FirstName())
	assert.Equal(t, time.Hour, bySubject["Dentist"][0].Duration())

	// Weekly Fridays from 2023-12-18 to 2024-01-22.
	assert.Len(t, bySubject["Part time"], 5)
	for _, e := range bySubject["Part time"] {
		assert.Equal(t, time.Friday, e.Start.Weekday())
	}
}

func TestICSSourceMissingFile(t *testing.T) {
	_, err := NewICSSource("test", filepath.Join(t.TempDir(), "none.ics"), "", "").
		Fetch(context.Background(), NewQuery(time.Now(), "ooo@example.org"))
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewQuery(monday, "ooo@example.org")

	assert.Equal(t, "ooo@example.org", q.Address)
	assert.True(t, q.Start.Equal(time.Date(2023, 12, 18, 0, 0, 0, 0, time.UTC)))
	assert.True(t, q.End.Equal(time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 150, q.Limit)
	assert.Equal(t, []string{"subject", "organizer", "start", "end", "attendees"}, q.Fields)

	// The query owns its field list.
	q.Fields[0] = "body"
	assert.Equal(t, "subject", DefaultFields[0])

	assert.True(t, q.Overlaps(Event{Start: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}))
	assert.False(t, q.Overlaps(Event{Start: time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC)}))

	many := make([]Event, 200)
	assert.Len(t, q.limit(many), 150)
}

func TestQueryLimitKeepsEarliest(t *testing.T) {
	day := func(d int) Event {
		return Event{Subject: strconv.Itoa(d), Start: time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC)}
	}

	q := Query{Limit: 2}
	got := q.limit([]Event{day(20), day(1), day(10), day(5)})

	var subjects []string
	for _, e := range got {
		subjects = append(subjects, e.Subject)
	}
	assert.Equal(t, []string{"1", "5"}, subjects)
}

func TestPersonFirstName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Jane Q. Public", "jane"},
		{"  BOB  ", "bob"},
		{"Mary\tAnne", "mary"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := (Person{Name: tt.name}).FirstName(); got != tt.want {
			t.Errorf("Person{%q}.FirstName() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

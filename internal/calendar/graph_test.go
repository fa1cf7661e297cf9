package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const graphBody = `{
  "value": [
    {
      "subject": "Jane - Annual leave",
      "organizer": {"emailAddress": {"name": "Out Of Office", "address": "ooo@example.org"}},
      "start": {"dateTime": "2024-01-03T00:00:00.0000000", "timeZone": "UTC"},
      "end": {"dateTime": "2024-01-06T00:00:00.0000000", "timeZone": "UTC"},
      "attendees": [
        {"emailAddress": {"name": "Jane Q. Public", "address": "jane@example.org"}}
      ]
    },
    {
      "subject": "Broken",
      "start": {"dateTime": "yesterday", "timeZone": "UTC"},
      "end": {"dateTime": "today", "timeZone": "UTC"}
    }
  ]
}`

func TestGraphSourceFetch(t *testing.T) {
	var gotPath, gotQuery, gotPrefer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotPrefer = r.Header.Get("Prefer")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(graphBody))
	}))
	defer srv.Close()

	s := NewGraphSource("test", srv.URL, srv.Client())
	s.loc = time.UTC

	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events, err := s.Fetch(context.Background(), NewQuery(monday, "ooo@example.org"))
	require.NoError(t, err)

	assert.Equal(t, "/users/ooo@example.org/calendarView", gotPath)
	assert.Contains(t, gotQuery, "startDateTime=2023-12-18T00%3A00%3A00Z")
	assert.Contains(t, gotQuery, "endDateTime=2024-01-22T00%3A00%3A00Z")
	assert.Contains(t, gotQuery, "%24top=150")
	assert.Contains(t, gotQuery, "%24select=subject%2Corganizer%2Cstart%2Cend%2Cattendees")
	assert.Equal(t, `outlook.timezone="UTC"`, gotPrefer)

	require.Len(t, events, 1, "unparseable event should be skipped")
	e := events[0]
	assert.Equal(t, "Jane - Annual leave", e.Subject)
	assert.Equal(t, Person{Name: "Out Of Office", Email: "ooo@example.org"}, e.Organizer)
	assert.Equal(t, []Person{{Name: "Jane Q. Public", Email: "jane@example.org"}}, e.Attendees)
	assert.True(t, e.Start.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 72*time.Hour, e.Duration())
}

func TestGraphSourceFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"ErrorAccessDenied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewGraphSource("test", srv.URL, srv.Client())
	_, err := s.Fetch(context.Background(), NewQuery(time.Now(), "ooo@example.org"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "ErrorAccessDenied")
}

func TestGraphSourcePing(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewGraphSource("test", srv.URL+"/", srv.Client())
	require.NoError(t, s.Ping(context.Background()))

	status = http.StatusUnauthorized
	assert.Error(t, s.Ping(context.Background()))
}

func TestParseGraphDateTime(t *testing.T) {
	tests := []struct {
		in      graphDateTime
		want    time.Time
		wantErr bool
	}{
		{in: graphDateTime{DateTime: "2024-01-15T09:00:00.0000000", TimeZone: "UTC"}, want: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)},
		{in: graphDateTime{DateTime: "2024-01-15T09:00:00.1234567", TimeZone: "UTC"}, want: time.Date(2024, 1, 15, 9, 0, 0, 123456000, time.UTC)},
		{in: graphDateTime{DateTime: "2024-01-15T09:00:00"}, want: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)},
		{in: graphDateTime{DateTime: "2024-01-15"}, want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{in: graphDateTime{DateTime: "15/01/2024"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in.DateTime, func(t *testing.T) {
			got, err := parseGraphDateTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "parseGraphDateTime(%v) = %v, want %v", tt.in, got, tt.want)
		})
	}
}

func TestGraphSourceFetchErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 64*1024)))
	}))
	defer srv.Close()

	_, err := NewGraphSource("test", srv.URL, srv.Client()).Fetch(context.Background(), NewQuery(time.Now(), "ooo@example.org"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Less(t, len(err.Error()), 8*1024)
}

func TestGraphSourceAllDayWestOfUTC(t *testing.T) {
	const body = `{"value": [
	  {
	    "subject": "Day off",
	    "organizer": {"emailAddress": {"name": "Bob Smith", "address": "bob@example.org"}},
	    "start": {"dateTime": "2024-01-03T00:00:00.0000000", "timeZone": "UTC"},
	    "end": {"dateTime": "2024-01-04T00:00:00.0000000", "timeZone": "UTC"}
	  },
	  {
	    "subject": "Appointment",
	    "organizer": {"emailAddress": {"name": "Bob Smith", "address": "bob@example.org"}},
	    "start": {"dateTime": "2024-01-03T01:00:00.0000000", "timeZone": "UTC"},
	    "end": {"dateTime": "2024-01-03T02:00:00.0000000", "timeZone": "UTC"}
	  }
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	newYork := time.FixedZone("EST", -5*60*60)
	s := NewGraphSource("test", srv.URL, srv.Client())
	s.loc = newYork

	events, err := s.Fetch(context.Background(), NewQuery(time.Date(2024, 1, 1, 0, 0, 0, 0, newYork), "ooo@example.org"))
	require.NoError(t, err)
	require.Len(t, events, 2)

	// The all-day event stays on Wednesday instead of moving to Tuesday 19:00.
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, newYork), events[0].Start)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, newYork), events[0].End)
	assert.Equal(t, time.Wednesday, events[0].Start.Weekday())

	// Timed events are converted.
	assert.True(t, events[1].Start.Equal(time.Date(2024, 1, 2, 20, 0, 0, 0, newYork)))
	assert.Equal(t, time.Tuesday, events[1].Start.Weekday())
}

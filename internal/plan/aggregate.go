package plan

import (
	"log/slog"
	"sort"
	"time"

	"github.com/caat/supper/internal/calendar"
)

// singleDay is the longest event treated as a one-day absence.
const singleDay = 24 * time.Hour

// Absences holds, per weekday, the lowercased first names of people who
// are out of the office. Index 0 is Monday.
type Absences [Days]map[string]struct{}

// NewAbsences returns an empty set for every weekday.
func NewAbsences() Absences {
	var a Absences
	for i := range a {
		a[i] = make(map[string]struct{})
	}
	return a
}

// Add marks name as absent on day i. Blank names are ignored.
func (a Absences) Add(day int, name string) {
	if name == "" {
		return
	}
	a[day][name] = struct{}{}
}

// IsAbsent reports whether name is out on day i.
func (a Absences) IsAbsent(day int, name string) bool {
	_, ok := a[day][name]
	return ok
}

// Names returns the sorted names absent on day i.
func (a Absences) Names(day int) []string {
	names := make([]string, 0, len(a[day]))
	for name := range a[day] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate builds the absences for week from out-of-office events.
// oooAddress is the shared calendar's own mailbox: it is never counted as a
// person. Events shorter than a day count on the day they start; longer
// events count on every weekday whose midnight they cover. Weekdays are
// taken in the week's location, whatever zone the event carries.
func Aggregate(events []calendar.Event, week WeekWindow, oooAddress string, logger *slog.Logger) Absences {
	if logger == nil {
		logger = slog.Default()
	}

	absences := NewAbsences()
	for _, event := range events {
		people := ResolveAttendees(event, oooAddress)

		if event.Duration() <= singleDay {
			if !week.Contains(event.Start) {
				continue
			}
			if len(people) == 0 {
				logger.Warn("event has no attendees, cannot add to out of office list", "subject", event.Subject, "start", event.Start)
				continue
			}
			addPeople(absences, weekdayIndex(event.Start.In(week.Start.Location())), people)
			continue
		}

		var covered []int
		for i := 0; i < Days; i++ {
			day := week.Day(i)
			if !day.Before(event.Start) && !day.After(event.End) {
				covered = append(covered, i)
			}
		}
		if len(covered) == 0 {
			continue
		}
		if len(people) == 0 {
			logger.Warn("event has no attendees, cannot add to out of office list", "subject", event.Subject, "start", event.Start, "end", event.End)
			continue
		}
		for _, i := range covered {
			addPeople(absences, i, people)
		}
	}

	return absences
}

// ResolveAttendees returns who an event is about: its attendees minus the
// out-of-office mailbox, or the organizer alone when no attendees remain
// and the organizer is somebody else.
func ResolveAttendees(event calendar.Event, oooAddress string) []calendar.Person {
	people := make([]calendar.Person, 0, len(event.Attendees))
	for _, p := range event.Attendees {
		if p.Is(oooAddress) {
			continue
		}
		people = append(people, p)
	}

	organizer := event.Organizer
	if len(people) == 0 && organizer.Email != "" && !organizer.Is(oooAddress) {
		return []calendar.Person{organizer}
	}
	return people
}

func addPeople(absences Absences, day int, people []calendar.Person) {
	for _, p := range people {
		absences.Add(day, p.FirstName())
	}
}

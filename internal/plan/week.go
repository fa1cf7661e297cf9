// Package plan computes which staff are out of the office on each day of a
// business week.
package plan

import "time"

// Days is the number of weekdays in a plan.
const Days = 5

// DayNames are the weekday labels in plan order.
var DayNames = [Days]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// WeekWindow bounds a business week: Monday 00:00:00 to Friday 23:59:00.
type WeekWindow struct {
	Start time.Time
	End   time.Time
}

// Week returns the business week containing ref. On Saturday and Sunday it
// returns the following week. Dates are computed in ref's location.
func Week(ref time.Time) WeekWindow {
	weekday := weekdayIndex(ref)
	y, m, d := ref.Date()
	loc := ref.Location()

	monday := time.Date(y, m, d-weekday, 0, 0, 0, 0, loc)
	friday := time.Date(y, m, d+4-weekday, 23, 59, 0, 0, loc)

	if weekday > 4 {
		monday = monday.AddDate(0, 0, 7)
		friday = friday.AddDate(0, 0, 7)
	}

	return WeekWindow{Start: monday, End: friday}
}

// Day returns midnight of weekday i (0 = Monday).
func (w WeekWindow) Day(i int) time.Time {
	return w.Start.AddDate(0, 0, i)
}

// Contains reports whether t falls within the window, bounds included.
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// weekdayIndex maps t's weekday to 0 = Monday .. 6 = Sunday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

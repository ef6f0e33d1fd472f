package aggregate

import (
	"fmt"
	"time"

	"rollbook/internal/attendance"
)

// SnapshotLookup returns the committed snapshot for an ISO date.
type SnapshotLookup func(date string) attendance.Snapshot

// DayCell is one square of the month grid. Padding cells have Day == 0.
type DayCell struct {
	Date   string `json:"date,omitempty"`
	Day    int    `json:"day"`
	Rate   Rate   `json:"rate"`
	Bucket Bucket `json:"bucket"`
	Today  bool   `json:"today,omitempty"`
}

// Empty reports whether the cell only pads the first week.
func (c DayCell) Empty() bool { return c.Day == 0 }

// MonthGrid lays out a month Sunday-first: padding cells up to the weekday of
// the 1st, then one cell per day carrying that day's bucket.
func MonthGrid(year int, month time.Month, lookup SnapshotLookup) []DayCell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := DaysIn(year, month)
	lead := int(first.Weekday())

	cells := make([]DayCell, 0, lead+days)
	for i := 0; i < lead; i++ {
		cells = append(cells, DayCell{Bucket: NoData})
	}
	for day := 1; day <= days; day++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
		rate := AttendanceRate(lookup(date))
		cells = append(cells, DayCell{Date: date, Day: day, Rate: rate, Bucket: RateBucket(rate)})
	}
	return cells
}

// DaysIn is the number of days in month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ShiftMonth moves delta months from year/month, wrapping across years.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Calendar is a titled month grid.
type Calendar struct {
	Year     int       `json:"year"`
	Month    int       `json:"month"`
	Title    string    `json:"title"`
	Prev     string    `json:"prev"`
	Next     string    `json:"next"`
	Weekdays []string  `json:"weekdays"`
	Cells    []DayCell `json:"cells"`
}

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// BuildCalendar wraps MonthGrid with navigation and flags today's cell.
func BuildCalendar(year int, month time.Month, lookup SnapshotLookup, today time.Time) Calendar {
	cells := MonthGrid(year, month, lookup)
	todayStr := today.Format(time.DateOnly)
	for i := range cells {
		if cells[i].Date == todayStr {
			cells[i].Today = true
		}
	}
	py, pm := ShiftMonth(year, month, -1)
	ny, nm := ShiftMonth(year, month, 1)
	return Calendar{
		Year:     year,
		Month:    int(month),
		Title:    fmt.Sprintf("%s %d", month, year),
		Prev:     fmt.Sprintf("%04d-%02d", py, int(pm)),
		Next:     fmt.Sprintf("%04d-%02d", ny, int(nm)),
		Weekdays: weekdays,
		Cells:    cells,
	}
}

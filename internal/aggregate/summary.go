package aggregate

import (
	"encoding/json"
	"math"

	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

// Summary tallies the records of one snapshot by status.
type Summary struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
}

// Total is the number of tallied records.
func (s Summary) Total() int {
	return s.Present + s.Absent + s.Late
}

// Summarize counts what the snapshot records; it does not infer absentees.
func Summarize(snap attendance.Snapshot) Summary {
	var s Summary
	for _, rec := range snap.Records {
		switch rec.Status {
		case attendance.Present:
			s.Present++
		case attendance.Absent:
			s.Absent++
		case attendance.Late:
			s.Late++
		}
	}
	return s
}

// Rate is a present percentage. An empty snapshot has no rate at all,
// which is not the same as 0%.
type Rate struct {
	Value float64
	Valid bool
}

// MarshalJSON encodes a missing rate as null.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(math.Round(r.Value*100) / 100)
}

// AttendanceRate is present / total * 100. Late does not count as present.
func AttendanceRate(snap attendance.Snapshot) Rate {
	s := Summarize(snap)
	if s.Total() == 0 {
		return Rate{}
	}
	return Rate{Value: float64(s.Present) / float64(s.Total()) * 100, Valid: true}
}

// Bucket is the calendar colour band of a day.
type Bucket string

const (
	High   Bucket = "high"
	Medium Bucket = "medium"
	Low    Bucket = "low"
	NoData Bucket = "none"
)

// RateBucket bands a rate; lower bounds are inclusive.
func RateBucket(r Rate) Bucket {
	switch {
	case !r.Valid:
		return NoData
	case r.Value >= 80:
		return High
	case r.Value >= 50:
		return Medium
	default:
		return Low
	}
}

// DayStats is the dashboard view of one date for a roster.
type DayStats struct {
	TotalStudents int  `json:"totalStudents"`
	Present       int  `json:"present"`
	Absent        int  `json:"absent"`
	Late          int  `json:"late"`
	Committed     bool `json:"committed"`
}

// Daily restricts a committed snapshot to the given roster. Roster members
// without a record count as Absent; records of students no longer on the
// roster are ignored.
func Daily(students []roster.Student, snap attendance.Snapshot) DayStats {
	byID := make(map[string]attendance.Status, len(snap.Records))
	for _, rec := range snap.Records {
		byID[rec.StudentID] = rec.Status
	}
	stats := DayStats{TotalStudents: len(students), Committed: len(snap.Records) > 0}
	for _, st := range students {
		switch byID[st.ID] {
		case attendance.Present:
			stats.Present++
		case attendance.Late:
			stats.Late++
		default:
			stats.Absent++
		}
	}
	return stats
}

// Report is the per-date report view.
type Report struct {
	Date    string              `json:"date"`
	NoData  bool                `json:"noData"`
	Summary Summary             `json:"summary"`
	Rate    Rate                `json:"rate"`
	Bucket  Bucket              `json:"bucket"`
	Records []attendance.Record `json:"records"`
}

// BuildReport summarizes one snapshot. An empty snapshot is reported as no data.
func BuildReport(snap attendance.Snapshot) Report {
	rate := AttendanceRate(snap)
	recs := snap.Records
	if recs == nil {
		recs = []attendance.Record{}
	}
	return Report{
		Date:    snap.Date,
		NoData:  len(snap.Records) == 0,
		Summary: Summarize(snap),
		Rate:    rate,
		Bucket:  RateBucket(rate),
		Records: recs,
	}
}

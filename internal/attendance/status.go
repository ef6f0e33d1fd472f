package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingDate   = errors.New("please select a date")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrInvalidStatus = errors.New("status must be Present, Absent or Late")
)

// Status is the single attendance state of a student on a date.
type Status string

const (
	Present Status = "Present"
	Absent  Status = "Absent"
	Late    Status = "Late"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{Present, Absent, Late}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s == Present || s == Absent || s == Late
}

// UnmarshalText normalizes case so persisted "present" reads as Present.
// Unknown text is kept verbatim and fails Valid, letting readers skip the
// record instead of discarding the whole snapshot.
func (s *Status) UnmarshalText(b []byte) error {
	if st, err := ParseStatus(string(b)); err == nil {
		*s = st
		return nil
	}
	*s = Status(b)
	return nil
}

// ParseDate validates an ISO calendar date.
func ParseDate(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return time.Time{}, ErrMissingDate
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", date, ErrInvalidDate)
	}
	return t, nil
}

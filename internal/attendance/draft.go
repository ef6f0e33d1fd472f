package attendance

import (
	"rollbook/internal/roster"
)

// Draft holds unsaved status selections for one date. A student has at most
// one status in a draft; setting a new one replaces the old.
type Draft struct {
	marks map[string]Status
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{marks: make(map[string]Status)}
}

// SetStatus selects status for studentID, clearing any other selection.
func (d *Draft) SetStatus(studentID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	d.marks[studentID] = status
	return nil
}

// Clear unmarks studentID.
func (d *Draft) Clear(studentID string) {
	delete(d.marks, studentID)
}

// Status returns the explicit selection for studentID.
func (d *Draft) Status(studentID string) (Status, bool) {
	if d == nil {
		return "", false
	}
	st, ok := d.marks[studentID]
	return st, ok
}

// Len is the number of marked students.
func (d *Draft) Len() int {
	if d == nil {
		return 0
	}
	return len(d.marks)
}

// Marks returns a copy of all selections.
func (d *Draft) Marks() map[string]Status {
	out := make(map[string]Status, d.Len())
	if d == nil {
		return out
	}
	for id, st := range d.marks {
		out[id] = st
	}
	return out
}

// EffectiveStatus is the explicit selection, or Absent when unmarked.
func EffectiveStatus(d *Draft, st roster.Student) Status {
	if s, ok := d.Status(st.ID); ok {
		return s
	}
	return Absent
}

// MarkAll sets status for every roster member.
func MarkAll(d *Draft, students []roster.Student, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	for _, st := range students {
		d.marks[st.ID] = status
	}
	return nil
}

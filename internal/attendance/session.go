package attendance

import (
	"context"
	"sync"

	"rollbook/internal/roster"
)

// Session is the editing state of the attendance screen: the selected date
// and its draft. Selecting a different date discards the draft and reloads it
// from what was committed for the new date.
type Session struct {
	ledger *Ledger

	mu    sync.Mutex
	date  string
	draft *Draft
}

// NewSession starts with no date selected.
func NewSession(l *Ledger) *Session {
	return &Session{ledger: l, draft: NewDraft()}
}

// Date is the currently selected date, empty before the first selection.
func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Select switches to date, rehydrating the draft when the date changes.
func (s *Session) Select(ctx context.Context, date string) (map[string]Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(ctx, date); err != nil {
		return nil, err
	}
	return s.draft.Marks(), nil
}

// SetStatus marks one student on date.
func (s *Session) SetStatus(ctx context.Context, date, studentID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(ctx, date); err != nil {
		return err
	}
	return s.draft.SetStatus(studentID, status)
}

// Clear unmarks one student on date.
func (s *Session) Clear(ctx context.Context, date, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(ctx, date); err != nil {
		return err
	}
	s.draft.Clear(studentID)
	return nil
}

// MarkAll marks every student in students on date.
func (s *Session) MarkAll(ctx context.Context, date string, students []roster.Student, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(ctx, date); err != nil {
		return err
	}
	return MarkAll(s.draft, students, status)
}

// Commit saves the draft for date over students. The draft stays selected.
func (s *Session) Commit(ctx context.Context, date string, students []roster.Student) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(ctx, date); err != nil {
		return Snapshot{}, err
	}
	return s.ledger.Commit(ctx, date, students, s.draft)
}

func (s *Session) selectLocked(ctx context.Context, date string) error {
	if _, err := ParseDate(date); err != nil {
		return err
	}
	if date != s.date {
		s.date = date
		s.draft = s.ledger.Rehydrate(ctx, date)
	}
	return nil
}

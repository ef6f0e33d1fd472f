package attendance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"rollbook/internal/metrics"
	"rollbook/internal/roster"
)

// Ledger commits drafts into per-date snapshots and reads them back.
type Ledger struct {
	repo     *Repository
	notifier roster.Notifier
	log      zerolog.Logger
}

// NewLedger creates a ledger backed by a repository. notifier may be nil.
func NewLedger(repo *Repository, notifier roster.Notifier, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:     repo,
		notifier: notifier,
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// Commit writes one record per roster member, using the draft selection or
// Absent, and replaces whatever was stored for date. An invalid date writes
// nothing.
func (l *Ledger) Commit(ctx context.Context, date string, students []roster.Student, draft *Draft) (Snapshot, error) {
	if _, err := ParseDate(date); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Date: date, Records: make([]Record, 0, len(students))}
	seen := make(map[string]bool, len(students))
	for _, st := range students {
		if seen[st.ID] {
			continue
		}
		seen[st.ID] = true
		snap.Records = append(snap.Records, Record{
			StudentID: st.ID,
			Name:      st.Name,
			Roll:      st.Roll,
			Class:     st.Class,
			Status:    EffectiveStatus(draft, st),
		})
	}

	if err := l.repo.Save(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("save attendance %s: %w", date, err)
	}

	metrics.SnapshotsCommitted.Inc()
	for _, rec := range snap.Records {
		metrics.RecordsCommitted.WithLabelValues(string(rec.Status)).Inc()
	}
	l.log.Info().Str("date", date).Int("records", len(snap.Records)).Int("marked", draft.Len()).Msg("attendance saved")
	if l.notifier != nil {
		l.notifier.Notify(ctx, fmt.Sprintf("Attendance saved for %s (%d students)", date, len(snap.Records)))
	}
	return snap, nil
}

// Load returns the snapshot stored for date, or an empty one.
func (l *Ledger) Load(ctx context.Context, date string) Snapshot {
	return l.repo.Get(ctx, date)
}

// Rehydrate rebuilds a draft from the stored snapshot for date.
func (l *Ledger) Rehydrate(ctx context.Context, date string) *Draft {
	d := NewDraft()
	for _, rec := range l.Load(ctx, date).Records {
		_ = d.SetStatus(rec.StudentID, rec.Status)
	}
	return d
}

// Dates lists every date with a stored snapshot.
func (l *Ledger) Dates(ctx context.Context) ([]string, error) {
	return l.repo.Dates(ctx)
}

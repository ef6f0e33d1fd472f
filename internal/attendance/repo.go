package attendance

import (
	"context"
	"strings"

	"rollbook/internal/records"
)

// Record is one student's status on a committed date. Name, roll and class
// are copied at commit time and never follow later roster edits.
type Record struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Roll      string `json:"roll"`
	Class     string `json:"class"`
	Status    Status `json:"status"`
}

// Snapshot is the full set of records for one date.
type Snapshot struct {
	Date    string   `json:"date"`
	Records []Record `json:"records"`
}

// Repository persists one snapshot per date under attendance_<date>.
type Repository struct {
	store *records.Store
}

// NewRepository creates a repo.
func NewRepository(store *records.Store) *Repository {
	return &Repository{store: store}
}

// Save replaces the snapshot for snap.Date.
func (r *Repository) Save(ctx context.Context, snap Snapshot) error {
	return records.Save(ctx, r.store, key(snap.Date), snap.Records)
}

// Get returns the snapshot for date; absent or unreadable data is empty.
func (r *Repository) Get(ctx context.Context, date string) Snapshot {
	recs := records.Load[Record](ctx, r.store, key(date))
	return Snapshot{Date: date, Records: dedupe(recs)}
}

// Dates lists dates that have a stored snapshot, ascending.
func (r *Repository) Dates(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, records.SnapshotPrefix)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(keys))
	for _, k := range keys {
		d := strings.TrimPrefix(k, records.SnapshotPrefix)
		if _, err := ParseDate(d); err == nil {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func key(date string) string {
	return records.SnapshotPrefix + date
}

// dedupe keeps the last record per student and drops records with no id or
// an unknown status, so a hand-edited value cannot break the one-record rule.
func dedupe(recs []Record) []Record {
	last := make(map[string]int, len(recs))
	for i, rec := range recs {
		if rec.StudentID == "" || !rec.Status.Valid() {
			continue
		}
		last[rec.StudentID] = i
	}
	out := make([]Record, 0, len(last))
	for i, rec := range recs {
		if j, ok := last[rec.StudentID]; ok && j == i {
			out = append(out, rec)
		}
	}
	return out
}

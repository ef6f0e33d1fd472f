// Package activity keeps the dashboard's recent-activity list.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rollbook/internal/records"
)

// MaxEntries caps the stored feed.
const MaxEntries = 20

// Entry is one feed line.
type Entry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed stores entries newest first under recentActivities.
type Feed struct {
	store *records.Store
	now   func() time.Time

	mu sync.Mutex
}

// NewFeed creates a feed over store.
func NewFeed(store *records.Store) *Feed {
	return &Feed{store: store, now: time.Now}
}

// Add records text as happening now.
func (f *Feed) Add(ctx context.Context, text string) error {
	return f.AddAt(ctx, text, f.now())
}

// AddAt records text at ts, dropping the oldest entries past MaxEntries.
func (f *Feed) AddAt(ctx context.Context, text string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := records.LoadForUpdate[Entry](ctx, f.store, records.RecentActivities)
	if err != nil {
		return err
	}
	entries = append([]Entry{{Text: text, Timestamp: ts.UTC()}}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return records.Save(ctx, f.store, records.RecentActivities, entries)
}

// Recent returns up to n newest entries; n <= 0 returns all.
func (f *Feed) Recent(ctx context.Context, n int) []Entry {
	entries := records.Load[Entry](ctx, f.store, records.RecentActivities)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Ago renders how long before now ts was.
func Ago(ts, now time.Time) string {
	d := now.Sub(ts)
	mins := int(d / time.Minute)
	hours := mins / 60
	days := hours / 24
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", days)
	}
}

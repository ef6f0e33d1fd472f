// Package records reads and writes whole JSON collections on a key-value medium.
// Reads never fail: a missing, unreadable or corrupt value is an empty collection.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"rollbook/internal/metrics"
	"rollbook/internal/store"
)

// Collection keys.
const (
	Students         = "students"
	Classes          = "classes"
	RecentActivities = "recentActivities"
	SnapshotPrefix   = "attendance_"
)

// Store is the Record Store over a KV medium.
type Store struct {
	kv  store.KV
	log zerolog.Logger
}

// New wraps kv.
func New(kv store.KV, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log.With().Str("component", "records").Logger()}
}

// Load returns the collection stored under key, or an empty slice. Backend
// errors are logged and also read as empty; use LoadForUpdate before writing.
func Load[T any](ctx context.Context, s *Store, key string) []T {
	items, err := LoadForUpdate[T](ctx, s, key)
	if err != nil {
		return []T{}
	}
	return items
}

// LoadForUpdate is Load for read-modify-write callers: a missing or malformed
// value is still empty, but a backend error is returned so the caller does
// not overwrite a collection it could not read.
func LoadForUpdate[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get").Inc()
		s.log.Error().Err(err).Str("collection", key).Msg("read failed")
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		metrics.MalformedValues.WithLabelValues(label(key)).Inc()
		s.log.Warn().Err(err).Str("collection", key).Msg("malformed value, treating as empty")
		return []T{}, nil
	}
	if items == nil {
		return []T{}, nil
	}
	return items, nil
}

// Save overwrites the collection stored under key.
func Save[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		metrics.StoreErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

// Keys lists stored keys starting with prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.kv.Keys(ctx, prefix)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("keys").Inc()
	}
	return keys, err
}

// Healthy reports backend reachability.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.kv.Healthy(ctx)
}

// label keeps metric cardinality bounded: every snapshot key shares one label.
func label(key string) string {
	if strings.HasPrefix(key, SnapshotPrefix) {
		return "attendance"
	}
	return key
}

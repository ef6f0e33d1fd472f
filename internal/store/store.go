package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KV is a flat key-value medium holding whole documents. Writes are full
// replacements; there is no partial update and no cross-key transaction.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Healthy(ctx context.Context) bool
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	KeyPrefix   string
}

// Open builds the backend named by opts.Backend.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case "", "sqlite":
		return NewSQLite(opts.SQLitePath)
	case "postgres":
		return NewPostgres(opts.DatabaseURL)
	case "redis":
		return NewRedis(opts.RedisAddr, opts.KeyPrefix), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// ErrClosed is returned by Memory after Close.
var ErrClosed = errors.New("store closed")

// Memory is a map-backed KV for tests and throwaway sessions.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Healthy(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

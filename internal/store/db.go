package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	driver string
	schema string
	get    string
	upsert string
	del    string
	keys   string
}

var (
	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: `CREATE TABLE IF NOT EXISTS kv_records (
			record_key   TEXT PRIMARY KEY,
			record_value TEXT NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		get: `SELECT record_value FROM kv_records WHERE record_key = ?`,
		upsert: `INSERT INTO kv_records (record_key, record_value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (record_key) DO UPDATE SET record_value = excluded.record_value, updated_at = excluded.updated_at`,
		del:  `DELETE FROM kv_records WHERE record_key = ?`,
		keys: `SELECT record_key FROM kv_records WHERE record_key LIKE ? ESCAPE '\' ORDER BY record_key`,
	}

	postgresDialect = dialect{
		driver: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS kv_records (
			record_key   TEXT PRIMARY KEY,
			record_value TEXT NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		get: `SELECT record_value FROM kv_records WHERE record_key = $1`,
		upsert: `INSERT INTO kv_records (record_key, record_value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (record_key) DO UPDATE SET record_value = EXCLUDED.record_value, updated_at = NOW()`,
		del:  `DELETE FROM kv_records WHERE record_key = $1`,
		keys: `SELECT record_key FROM kv_records WHERE record_key LIKE $1 ESCAPE '\' ORDER BY record_key`,
	}
)

// DB is a KV backed by a single SQL table.
type DB struct {
	Client *sql.DB
	d      dialect
}

// NewSQLite opens (creating if needed) a local database file.
func NewSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open(sqliteDialect.driver, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps whole-value replacements serialized on the file.
	db.SetMaxOpenConns(1)
	return open(db, sqliteDialect)
}

// NewPostgres creates a Postgres connection with sane defaults.
func NewPostgres(connString string) (*DB, error) {
	db, err := sql.Open(postgresDialect.driver, connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return open(db, postgresDialect)
}

func open(db *sql.DB, d dialect) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db, d: d}, nil
}

func (s *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.Client.QueryRowContext(ctx, s.d.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.Client.ExecContext(ctx, s.d.upsert, key, string(value))
	return err
}

func (s *DB) Delete(ctx context.Context, key string) error {
	_, err := s.Client.ExecContext(ctx, s.d.del, key)
	return err
}

func (s *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.Client.QueryContext(ctx, s.d.keys, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *DB) Healthy(ctx context.Context) bool {
	if s == nil || s.Client == nil {
		return false
	}
	return s.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (s *DB) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// escapeLike makes prefix match literally; "attendance_" would otherwise treat _ as a wildcard.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	name   string
	schema string
	get    string
	upsert string
	clear  string
	stats  string
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS cache_entries (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      JSONB NOT NULL,
    written_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (namespace, key)
)`,
	get: `SELECT value, written_at FROM cache_entries WHERE namespace=$1 AND key=$2`,
	upsert: `INSERT INTO cache_entries (namespace, key, value, written_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, written_at=EXCLUDED.written_at`,
	clear: `DELETE FROM cache_entries WHERE namespace=$1`,
	stats: `SELECT namespace, COUNT(*) FROM cache_entries GROUP BY namespace`,
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS cache_entries (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BLOB NOT NULL,
    written_at TIMESTAMP NOT NULL,
    PRIMARY KEY (namespace, key)
)`,
	get: `SELECT value, written_at FROM cache_entries WHERE namespace=? AND key=?`,
	upsert: `INSERT INTO cache_entries (namespace, key, value, written_at) VALUES (?, ?, ?, ?)
ON CONFLICT (namespace, key) DO UPDATE SET value=excluded.value, written_at=excluded.written_at`,
	clear: `DELETE FROM cache_entries WHERE namespace=?`,
	stats: `SELECT namespace, COUNT(*) FROM cache_entries GROUP BY namespace`,
}

// SQL is a Store over a cache_entries table, backed by Postgres or SQLite.
type SQL struct {
	db *sql.DB
	d  dialect
}

// NewPostgres opens dsn with the pgx driver and creates the table if needed.
func NewPostgres(dsn string) (*SQL, error) {
	return openSQL("pgx", dsn, postgresDialect)
}

// NewSQLite opens a single-file cache database.
func NewSQLite(path string) (*SQL, error) {
	return openSQL("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL", sqliteDialect)
}

func openSQL(driver, dsn string, d dialect) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s cache: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s cache schema: %w", d.name, err)
	}
	return &SQL{db: db, d: d}, nil
}

func (s *SQL) Get(ctx context.Context, ns, key string) (Entry, bool, error) {
	var (
		raw []byte
		at  time.Time
	)
	err := s.db.QueryRowContext(ctx, s.d.get, ns, key).Scan(&raw, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: json.RawMessage(raw), WrittenAt: at}, true, nil
}

func (s *SQL) Set(ctx context.Context, ns, key string, value []byte) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %s/%s is not JSON", ns, key)
	}
	_, err := s.db.ExecContext(ctx, s.d.upsert, ns, key, value, time.Now().UTC())
	return err
}

func (s *SQL) Clear(ctx context.Context, ns string) error {
	_, err := s.db.ExecContext(ctx, s.d.clear, ns)
	return err
}

func (s *SQL) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.d.stats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			ns string
			n  int
		)
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, err
		}
		out[ns] = n
	}
	return out, rows.Err()
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

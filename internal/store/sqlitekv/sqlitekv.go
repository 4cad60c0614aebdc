package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database used as the persistence adapter.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
	  key TEXT PRIMARY KEY,
	  value TEXT NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	`)
	return err
}

// Get returns the value stored under key; ok is false when absent.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlitekv get %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO kv(key, value, updated_at) VALUES(?,?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("sqlitekv set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key); err != nil {
		return fmt.Errorf("sqlitekv delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix, ordered.
func (d *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT key FROM kv WHERE substr(key, 1, ?)=? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

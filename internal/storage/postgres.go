package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV persists entries in a single key/value table.
type PostgresKV struct {
	db *pgxpool.Pool
}

// NewPostgres builds a Postgres-backed store. Call EnsureSchema before use on a fresh database.
func NewPostgres(db *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{db: db}
}

// EnsureSchema creates the backing table when missing.
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS client_state (
        key        TEXT PRIMARY KEY,
        value      TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`)
	return err
}

// Get returns the stored value or ErrNotFound.
func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts the value under key.
func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Exec(ctx, `INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	return err
}

// Delete removes the key.
func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key)
	return err
}

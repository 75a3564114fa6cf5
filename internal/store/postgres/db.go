// Package postgres implements the card and strategy stores on PostgreSQL
// via sqlx. Slot trees, universes, and attachment lists are stored as JSONB
// payloads next to the indexed identity columns.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	connectTimeout = 10 * time.Second
	queryTimeout   = 5 * time.Second
)

// Open connects to PostgreSQL, verifies the connection, and applies pool
// settings sized for a single service instance.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// schema is applied at startup; idempotent so restarts are safe.
const schema = `
CREATE TABLE IF NOT EXISTS cards (
    id          TEXT PRIMARY KEY,
    type_id     TEXT NOT NULL,
    slots       JSONB NOT NULL,
    schema_etag TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_type_id ON cards (type_id);

CREATE TABLE IF NOT EXISTS strategies (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    universe    JSONB NOT NULL,
    attachments JSONB NOT NULL,
    version     INTEGER NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strategies_owner ON strategies (owner_id);
CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies (status);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

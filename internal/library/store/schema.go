package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Loans carry no foreign-key constraints on purpose: loans are historical
// records that may outlive their referents once closed, and the deletion
// guard (not referential integrity) is what protects open loans. The copy
// counters keep a CHECK as a last line of defense; a violation surfaces as an
// internal consistency error, never as silent clamping.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS catalog_items (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	total_copies INTEGER NOT NULL,
	available_copies INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CHECK (available_copies >= 0 AND available_copies <= total_copies)
);

CREATE TABLE IF NOT EXISTS borrowers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	national_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	borrower_id TEXT NOT NULL,
	loaned_at TIMESTAMPTZ NOT NULL,
	due_at TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_loans_open_item ON loans (item_id) WHERE returned_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_loans_open_borrower ON loans (borrower_id) WHERE returned_at IS NULL;
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_items (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	total_copies INTEGER NOT NULL,
	available_copies INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	CHECK (available_copies >= 0 AND available_copies <= total_copies)
);

CREATE TABLE IF NOT EXISTS borrowers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	national_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	borrower_id TEXT NOT NULL,
	loaned_at TIMESTAMP NOT NULL,
	due_at TIMESTAMP NOT NULL,
	returned_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_loans_open_item ON loans (item_id) WHERE returned_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_loans_open_borrower ON loans (borrower_id) WHERE returned_at IS NULL;
`

// EnsureSchema bootstraps the three relations so a fresh database is usable
// without an external migration step.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "pgx" {
		schema = postgresSchema
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

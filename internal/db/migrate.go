package db

import (
	"context"
	"fmt"
)

const accessMigration = `
CREATE TABLE IF NOT EXISTS access_records (
    email text PRIMARY KEY,
    active boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT access_records_email_normalized
        CHECK (email = LOWER(BTRIM(email)))
);

CREATE INDEX IF NOT EXISTS access_records_pending_idx
ON access_records (created_at)
WHERE active = false;
`

// RunAccessMigration creates the allow-list schema. It is idempotent.
func RunAccessMigration(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, accessMigration); err != nil {
		return fmt.Errorf("db: access migration: %w", err)
	}
	return nil
}

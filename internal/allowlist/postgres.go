package allowlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"copycraft/internal/access"
	"copycraft/internal/auth"
	"copycraft/internal/db"
)

// PostgresStore keeps authorization records in the access_records table.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (access.Record, error) {
	var rec access.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT email, active, created_at
		FROM access_records
		WHERE email = $1
	`,
		auth.NormalizeEmail(key),
	).Scan(&rec.Email, &rec.Active, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return access.Record{}, access.ErrRecordNotFound
	}
	if err != nil {
		return access.Record{}, fmt.Errorf("allowlist: get %s: %w", key, err)
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// CreateIfAbsent inserts rec unless a row for key exists. A conflict is
// reported as access.ErrRecordExists and the stored row is left untouched.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, key string, rec access.Record) error {
	email := auth.NormalizeEmail(key)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO access_records (email, active, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`,
		email,
		rec.Active,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("allowlist: create %s: %w", email, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("allowlist: create %s: %w", email, err)
	}
	if n == 0 {
		return access.ErrRecordExists
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]access.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, active, created_at
		FROM access_records
		ORDER BY created_at, email
	`)
	if err != nil {
		return nil, fmt.Errorf("allowlist: list: %w", err)
	}
	defer rows.Close()

	var out []access.Record
	for rows.Next() {
		var rec access.Record
		if err := rows.Scan(&rec.Email, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("allowlist: list: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("allowlist: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, key string, active bool) error {
	email := auth.NormalizeEmail(key)

	res, err := s.db.ExecContext(ctx, `
		UPDATE access_records
		SET active = $2, updated_at = NOW()
		WHERE email = $1
	`,
		email,
		active,
	)
	if err != nil {
		return fmt.Errorf("allowlist: set active %s: %w", email, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("allowlist: set active %s: %w", email, err)
	}
	if n == 0 {
		return access.ErrRecordNotFound
	}
	return nil
}

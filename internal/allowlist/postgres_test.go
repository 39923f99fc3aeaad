package allowlist

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copycraft/internal/access"
	"copycraft/internal/db"
)

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})
	return NewPostgresStore(&db.DB{DB: sqlDB}), mock
}

var (
	selectRecord = regexp.QuoteMeta("SELECT email, active, created_at FROM access_records WHERE email = $1")
	insertRecord = regexp.QuoteMeta("INSERT INTO access_records (email, active, created_at) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING")
	updateActive = regexp.QuoteMeta("UPDATE access_records SET active = $2, updated_at = NOW() WHERE email = $1")
	listRecords  = regexp.QuoteMeta("SELECT email, active, created_at FROM access_records ORDER BY created_at, email")
)

func TestPostgresGet(t *testing.T) {
	s, mock := newPostgresStore(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(selectRecord).
		WithArgs("foo@bar.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "active", "created_at"}).
			AddRow("foo@bar.com", true, created))

	rec, err := s.Get(context.Background(), "Foo@Bar.com ")
	require.NoError(t, err)
	assert.Equal(t, access.Record{Email: "foo@bar.com", Active: true, CreatedAt: created}, rec)
}

func TestPostgresGetMissing(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectQuery(selectRecord).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "active", "created_at"}))

	_, err := s.Get(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, access.ErrRecordNotFound)
}

func TestPostgresGetFailure(t *testing.T) {
	s, mock := newPostgresStore(t)
	permission := errors.New("pq: permission denied for table access_records")

	mock.ExpectQuery(selectRecord).WithArgs("a@x.com").WillReturnError(permission)

	_, err := s.Get(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, permission)
	assert.NotErrorIs(t, err, access.ErrRecordNotFound)
}

func TestPostgresCreateIfAbsent(t *testing.T) {
	s, mock := newPostgresStore(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(insertRecord).
		WithArgs("a@x.com", false, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateIfAbsent(context.Background(), "a@x.com", access.Record{Email: "a@x.com", CreatedAt: created})
	assert.NoError(t, err)
}

func TestPostgresCreateIfAbsentConflict(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectExec(insertRecord).
		WithArgs("b@x.com", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.CreateIfAbsent(context.Background(), "b@x.com", access.Record{})
	assert.ErrorIs(t, err, access.ErrRecordExists)
}

func TestPostgresSetActive(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectExec(updateActive).
		WithArgs("a@x.com", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateActive).
		WithArgs("ghost@x.com", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.SetActive(context.Background(), "A@x.com", true))
	assert.ErrorIs(t, s.SetActive(context.Background(), "ghost@x.com", true), access.ErrRecordNotFound)
}

func TestPostgresList(t *testing.T) {
	s, mock := newPostgresStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(listRecords).
		WillReturnRows(sqlmock.NewRows([]string{"email", "active", "created_at"}).
			AddRow("early@x.com", true, t0).
			AddRow("late@x.com", false, t0.Add(time.Hour)))

	recs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "early@x.com", recs[0].Email)
	assert.False(t, recs[1].Active)
}

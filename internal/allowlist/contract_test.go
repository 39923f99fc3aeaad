package allowlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copycraft/internal/access"
)

// runAdminContract exercises the behaviour every store must share.
func runAdminContract(t *testing.T, newStore func(t *testing.T) Admin) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, access.ErrRecordNotFound)
	})

	t.Run("create then get normalized", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateIfAbsent(ctx, "a@x.com", access.Record{Email: "a@x.com", CreatedAt: created}))

		rec, err := s.Get(ctx, " A@X.com")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", rec.Email)
		assert.False(t, rec.Active)
		assert.True(t, created.Equal(rec.CreatedAt))
	})

	t.Run("create never overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateIfAbsent(ctx, "b@x.com", access.Record{Email: "b@x.com", CreatedAt: created}))
		require.NoError(t, s.SetActive(ctx, "b@x.com", true))

		err := s.CreateIfAbsent(ctx, "b@x.com", access.Record{Email: "b@x.com", Active: false, CreatedAt: created.Add(time.Hour)})
		assert.ErrorIs(t, err, access.ErrRecordExists)

		err = s.CreateIfAbsent(ctx, "B@x.com", access.Record{Email: "B@x.com"})
		assert.ErrorIs(t, err, access.ErrRecordExists)

		rec, err := s.Get(ctx, "b@x.com")
		require.NoError(t, err)
		assert.True(t, rec.Active)
		assert.True(t, created.Equal(rec.CreatedAt))
	})

	t.Run("set active on missing", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.SetActive(ctx, "ghost@x.com", true), access.ErrRecordNotFound)
	})

	t.Run("list oldest first", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateIfAbsent(ctx, "late@x.com", access.Record{CreatedAt: created.Add(2 * time.Hour)}))
		require.NoError(t, s.CreateIfAbsent(ctx, "early@x.com", access.Record{CreatedAt: created}))
		require.NoError(t, s.SetActive(ctx, "early@x.com", true))

		recs, err := s.List(ctx)
		require.NoError(t, err)

		var emails []string
		for _, r := range recs {
			emails = append(emails, r.Email)
		}
		assert.Equal(t, []string{"early@x.com", "late@x.com"}, emails)
		assert.True(t, recs[0].Active)
		assert.False(t, recs[1].Active)
	})
}

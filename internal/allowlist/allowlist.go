// Package allowlist holds the AuthorizationStore implementations: postgres,
// redis, a static list from configuration and an in-memory store.
//
// Every store keys records by the normalized email and never overwrites an
// existing record from CreateIfAbsent. Only the Admin methods change Active.
package allowlist

import (
	"context"
	"sort"

	"copycraft/internal/access"
)

// Admin is the administrator surface used by the access CLI.
type Admin interface {
	access.AuthorizationStore

	// List returns every record, oldest first.
	List(ctx context.Context) ([]access.Record, error)

	// SetActive flips Active for an existing record. It returns
	// access.ErrRecordNotFound when the key is unknown.
	SetActive(ctx context.Context, key string, active bool) error
}

var (
	_ Admin = (*PostgresStore)(nil)
	_ Admin = (*RedisStore)(nil)
	_ Admin = (*MemoryStore)(nil)
	_ Admin = (*StaticStore)(nil)
)

func sortRecords(recs []access.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Email < recs[j].Email
	})
}

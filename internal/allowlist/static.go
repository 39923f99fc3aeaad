package allowlist

import (
	"time"

	"copycraft/internal/access"
)

// StaticStore serves a fixed allow-list from configuration. Every listed
// email is active. Auto-registered identities are kept in memory only and
// are lost on restart.
type StaticStore struct {
	*MemoryStore
}

func NewStaticStore(emails []string) *StaticStore {
	loaded := time.Now().UTC()

	recs := make([]access.Record, 0, len(emails))
	for _, email := range emails {
		recs = append(recs, access.Record{Email: email, Active: true, CreatedAt: loaded})
	}
	return &StaticStore{MemoryStore: NewMemoryStore(recs...)}
}

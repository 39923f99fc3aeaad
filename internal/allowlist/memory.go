package allowlist

import (
	"context"
	"sync"
	"time"

	"copycraft/internal/access"
	"copycraft/internal/auth"
)

// MemoryStore is a process-local store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]access.Record
	now     func() time.Time
}

func NewMemoryStore(records ...access.Record) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]access.Record, len(records)),
		now:     time.Now,
	}
	for _, rec := range records {
		rec.Email = auth.NormalizeEmail(rec.Email)
		s.records[rec.Email] = rec
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (access.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[auth.NormalizeEmail(key)]
	if !ok {
		return access.Record{}, access.ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, key string, rec access.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(key)
	if _, ok := s.records[email]; ok {
		return access.ErrRecordExists
	}

	rec.Email = email
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.records[email] = rec
	return nil
}

func (s *MemoryStore) List(context.Context) ([]access.Record, error) {
	s.mu.RLock()
	out := make([]access.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) SetActive(_ context.Context, key string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(key)
	rec, ok := s.records[email]
	if !ok {
		return access.ErrRecordNotFound
	}
	rec.Active = active
	s.records[email] = rec
	return nil
}

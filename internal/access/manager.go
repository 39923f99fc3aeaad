package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotAdmitted is returned for session ids the admission check rejects.
var ErrNotAdmitted = errors.New("session not admitted")

// Factory builds the authorizer for one browser session.
type Factory func(sessionID string) *SessionAuthorizer

// AdmitFunc reports whether an authorizer may be built for sessionID,
// typically because a persisted session exists for it.
type AdmitFunc func(ctx context.Context, sessionID string) (bool, error)

type ManagerOption func(*Manager)

// WithAdmission makes Acquire and Settled build authorizers only for
// session ids fn accepts. Get is not affected.
func WithAdmission(fn AdmitFunc) ManagerOption {
	return func(m *Manager) { m.admit = fn }
}

// Manager keeps one SessionAuthorizer per browser session, bounded by an
// LRU. Evicted authorizers are closed; a later request for the same session
// builds a fresh one, which replays the persisted identity.
type Manager struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *SessionAuthorizer]
	factory Factory
	admit   AdmitFunc
	observe func(size int)
}

func NewManager(size int, factory Factory, opts ...ManagerOption) (*Manager, error) {
	if factory == nil {
		return nil, fmt.Errorf("access: nil factory")
	}

	cache, err := lru.NewWithEvict(size, func(_ string, a *SessionAuthorizer) {
		a.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("access: create authorizer cache: %w", err)
	}

	m := &Manager{cache: cache, factory: factory, observe: func(int) {}}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// OnResize registers fn to receive the number of held authorizers after
// every change.
func (m *Manager) OnResize(fn func(size int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != nil {
		m.observe = fn
	}
}

// Get returns the authorizer for sessionID, creating it on first use.
func (m *Manager) Get(sessionID string) *SessionAuthorizer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.cache.Get(sessionID); ok {
		return a
	}

	a := m.factory(sessionID)
	m.cache.Add(sessionID, a)
	m.observe(m.cache.Len())
	return a
}

// Acquire returns the held authorizer for sessionID or, when the admission
// check accepts the id, a new one. Rejected ids get ErrNotAdmitted.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*SessionAuthorizer, error) {
	if a, ok := m.cache.Get(sessionID); ok {
		return a, nil
	}

	if m.admit != nil {
		ok, err := m.admit(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("access: admit session: %w", err)
		}
		if !ok {
			return nil, ErrNotAdmitted
		}
	}
	return m.Get(sessionID), nil
}

// Settled acquires the session's authorizer and waits for a final state.
// An authorizer closed while waiting, e.g. by eviction, is replaced.
func (m *Manager) Settled(ctx context.Context, sessionID string) (*SessionAuthorizer, Snapshot, error) {
	for {
		a, err := m.Acquire(ctx, sessionID)
		if err != nil {
			return nil, Snapshot{}, err
		}

		snap, err := a.Settled(ctx)
		if errors.Is(err, ErrClosed) && ctx.Err() == nil {
			m.discard(sessionID, a)
			continue
		}
		return a, snap, err
	}
}

// discard drops a from the cache if it is still held for sessionID.
func (m *Manager) discard(sessionID string, a *SessionAuthorizer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.cache.Peek(sessionID); ok && cur == a {
		m.cache.Remove(sessionID)
		m.observe(m.cache.Len())
	}
}

// Peek returns the authorizer for sessionID without creating one.
func (m *Manager) Peek(sessionID string) (*SessionAuthorizer, bool) {
	return m.cache.Peek(sessionID)
}

// Remove drops the authorizer for sessionID. The eviction callback closes it.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.Remove(sessionID) {
		m.observe(m.cache.Len())
	}
}

func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close purges the cache, closing every authorizer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
	m.observe(0)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"copycraft/internal/access"
	"copycraft/internal/auth"
	"copycraft/internal/auth/provider"
	"copycraft/internal/logger"
)

// IdentitySource is the identity provider for one browser session. It
// exchanges authorization codes through the provider registry and keeps
// the resulting identity in the session store.
//
// Persisting and emitting happen under one mutex, so subscribers see
// identity changes serially and in store order.
type IdentitySource struct {
	sessionID string
	store     Store
	providers *provider.Registry
	ttl       time.Duration
	now       func() time.Time

	mu     sync.Mutex
	subs   map[int]func(*auth.Identity)
	nextID int
}

var _ access.IdentityProvider = (*IdentitySource)(nil)

func NewIdentitySource(
	sessionID string,
	store Store,
	providers *provider.Registry,
	ttl time.Duration,
) *IdentitySource {
	return &IdentitySource{
		sessionID: sessionID,
		store:     store,
		providers: providers,
		ttl:       ttl,
		now:       time.Now,
		subs:      make(map[int]func(*auth.Identity)),
	}
}

// Subscribe registers fn and replays the persisted identity on a separate
// goroutine, so the caller sees StateLoading until the store answers.
func (s *IdentitySource) Subscribe(fn func(*auth.Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	go s.replay(id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *IdentitySource) replay(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.subs[id]
	if !ok {
		return
	}
	fn(s.loadLocked())
}

// loadLocked returns the persisted identity or nil. Read failures count as
// signed out.
func (s *IdentitySource) loadLocked() *auth.Identity {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.store.Get(ctx, s.sessionID)
	if err != nil {
		logger.Error("session load failed", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if sess == nil {
		return nil
	}
	if sess.Expired(s.now()) {
		_ = s.store.Delete(ctx, s.sessionID)
		return nil
	}
	return sess.Identity
}

// SignIn exchanges cred for an identity and persists it for this session.
func (s *IdentitySource) SignIn(ctx context.Context, cred auth.Credential) error {
	p, err := s.providers.Get(cred.Provider)
	if err != nil {
		return err
	}
	if cred.Code == "" {
		return errors.New("session: missing authorization code")
	}

	ident, err := p.ExchangeCode(ctx, cred.Code, cred.CodeVerifier)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := Session{
		SessionID: s.sessionID,
		Identity:  ident,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return fmt.Errorf("session: persist identity: %w", err)
	}

	logger.Info("session signed in", map[string]any{
		"provider": ident.Provider,
		"email":    ident.Key(),
	})

	s.emitLocked(ident)
	return nil
}

// SignOut deletes the persisted session. Subscribers receive nil only once
// the delete succeeded.
func (s *IdentitySource) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.sessionID); err != nil {
		return err
	}

	s.emitLocked(nil)
	return nil
}

func (s *IdentitySource) emitLocked(ident *auth.Identity) {
	for _, fn := range s.subs {
		fn(ident)
	}
}

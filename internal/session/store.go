package session

import (
	"context"
	"time"

	"copycraft/internal/auth"
)

// Session binds a browser cookie to the identity the provider returned.
// It stores identity facts only; the authorization decision is never
// persisted and is recomputed on every identity change.
type Session struct {
	SessionID string         `json:"session_id"`
	Identity  *auth.Identity `json:"identity"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the session is past its absolute expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
// Get returns nil, nil when the session does not exist.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

// Exists returns a check reporting whether sessionID names a stored,
// unexpired session.
func Exists(store Store) func(ctx context.Context, sessionID string) (bool, error) {
	return func(ctx context.Context, sessionID string) (bool, error) {
		sess, err := store.Get(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return sess != nil && !sess.Expired(time.Now()), nil
	}
}

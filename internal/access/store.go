package access

import (
	"context"
	"errors"
	"time"

	"copycraft/internal/auth"
)

var (
	// ErrRecordNotFound is returned by AuthorizationStore.Get when no record
	// exists for the key.
	ErrRecordNotFound = errors.New("authorization record not found")

	// ErrRecordExists may be returned by CreateIfAbsent when the key is
	// already present. Callers treat it as success.
	ErrRecordExists = errors.New("authorization record already exists")
)

// Record is the remote document deciding whether an identity may use the
// application. It is keyed by the normalized email.
type Record struct {
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthorizationStore is the remote allow-list.
type AuthorizationStore interface {
	// Get returns the record for key or ErrRecordNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// CreateIfAbsent writes rec under key only if nothing is stored there.
	// It never overwrites an existing record.
	CreateIfAbsent(ctx context.Context, key string, rec Record) error
}

// IdentityProvider owns the authenticated session for one browser.
// Subscribe callbacks are delivered serially, never concurrently.
type IdentityProvider interface {
	// Subscribe registers fn for identity changes and replays the current
	// identity. The returned func removes the subscription.
	Subscribe(fn func(*auth.Identity)) (unsubscribe func())

	// SignIn completes an interactive sign-in. On success the new identity
	// is delivered through the subscription.
	SignIn(ctx context.Context, cred auth.Credential) error

	// SignOut ends the session. Subscribers receive nil.
	SignOut(ctx context.Context) error
}

// Recorder receives decision and lookup outcomes, typically for metrics.
type Recorder interface {
	ObserveDecision(state State)
	ObserveLookup(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(State) {}
func (nopRecorder) ObserveLookup(string)  {}

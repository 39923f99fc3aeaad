// Package access turns identity-provider session events into an
// authorization decision.
//
// A SessionAuthorizer subscribes to one IdentityProvider. Every identity
// callback starts exactly one lookup against the AuthorizationStore; the
// lookup is tagged with a sequence number and its result is applied only if
// no newer callback, sign-out or recheck has happened since. Superseded
// lookups are not cancelled, their results are dropped.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"copycraft/internal/auth"
)

var (
	ErrSignIn     = errors.New("sign-in failed")
	ErrSignOut    = errors.New("sign-out failed")
	ErrLookup     = errors.New("authorization lookup failed")
	ErrNoIdentity = errors.New("no identity to check")
	ErrClosed     = errors.New("authorizer closed")
)

const defaultLookupTimeout = 5 * time.Second

// Snapshot is the consistent view handed to the web layer.
type Snapshot struct {
	Identity               *auth.Identity
	State                  State
	PermissionCheckLoading bool
	LastError              error
}

// Settled reports whether the snapshot carries a final decision.
func (s Snapshot) Settled() bool {
	return s.State != StateLoading && !s.PermissionCheckLoading
}

type Option func(*SessionAuthorizer)

func WithPolicy(p Policy) Option {
	return func(a *SessionAuthorizer) { a.policy = p }
}

func WithLookupTimeout(d time.Duration) Option {
	return func(a *SessionAuthorizer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *SessionAuthorizer) { a.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(a *SessionAuthorizer) {
		if r != nil {
			a.rec = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *SessionAuthorizer) {
		if l != nil {
			a.log = l
		}
	}
}

type SessionAuthorizer struct {
	idp     IdentityProvider
	store   AuthorizationStore
	policy  Policy
	timeout time.Duration
	now     func() time.Time
	rec     Recorder
	log     *slog.Logger

	mu          sync.Mutex
	seq         uint64
	snap        Snapshot
	changed     chan struct{}
	closed      bool
	unsubscribe func()
}

// New subscribes to idp and returns an authorizer in StateLoading. The
// first decision follows the provider's replay of the current identity.
func New(idp IdentityProvider, store AuthorizationStore, opts ...Option) *SessionAuthorizer {
	a := &SessionAuthorizer{
		idp:     idp,
		store:   store,
		policy:  PolicyStrict,
		timeout: defaultLookupTimeout,
		now:     time.Now,
		rec:     nopRecorder{},
		log:     slog.Default(),
		snap:    Snapshot{State: StateLoading},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	unsubscribe := idp.Subscribe(a.onIdentity)

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	return a
}

// Snapshot returns the current view.
func (a *SessionAuthorizer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Settled blocks until the state is final or ctx is done. On ctx expiry it
// returns the last observed snapshot together with ctx.Err(). A closed
// authorizer returns ErrClosed, including to callers already waiting.
func (a *SessionAuthorizer) Settled(ctx context.Context) (Snapshot, error) {
	for {
		a.mu.Lock()
		snap, ch, closed := a.snap, a.changed, a.closed
		a.mu.Unlock()

		if closed {
			return snap, ErrClosed
		}
		if snap.Settled() {
			return snap, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// SignIn hands the credential to the identity provider. A successful
// sign-in is reflected through the provider callback; a failure only sets
// LastError and leaves the state as it was.
func (a *SessionAuthorizer) SignIn(ctx context.Context, cred auth.Credential) error {
	if err := a.idp.SignIn(ctx, cred); err != nil {
		err = fmt.Errorf("%w: %w", ErrSignIn, err)

		a.mu.Lock()
		snap := a.snap
		snap.LastError = err
		a.setLocked(snap)
		a.mu.Unlock()

		a.log.Warn("sign-in failed", "provider", cred.Provider, "error", err.Error())
		return err
	}
	return nil
}

// SignOut resets the state to StateUnauthenticated before the provider is
// asked to end the session, so no caller observes an authorized view after
// sign-out was requested. A provider error is recorded and returned but does
// not change the state.
func (a *SessionAuthorizer) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.seq++
	a.setLocked(Snapshot{State: StateUnauthenticated})
	a.mu.Unlock()

	if err := a.idp.SignOut(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrSignOut, err)

		a.mu.Lock()
		if a.snap.State == StateUnauthenticated {
			snap := a.snap
			snap.LastError = err
			a.setLocked(snap)
		}
		a.mu.Unlock()

		a.log.Warn("sign-out failed", "error", err.Error())
		return err
	}
	return nil
}

// Recheck re-runs the authorization lookup for the current identity, e.g.
// after StateUnavailable or while an administrator approval is awaited.
func (a *SessionAuthorizer) Recheck() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.snap.Identity == nil {
		return ErrNoIdentity
	}
	a.beginLocked(a.snap.Identity)
	return nil
}

// Close removes the subscription. Lookups still in flight are discarded
// and Settled waiters are released with ErrClosed.
func (a *SessionAuthorizer) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.seq++
	a.publishLocked(Snapshot{State: StateUnauthenticated, LastError: ErrClosed})
	unsubscribe := a.unsubscribe
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (a *SessionAuthorizer) onIdentity(id *auth.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	if id == nil {
		a.seq++
		a.setLocked(Snapshot{State: StateUnauthenticated})
		return
	}

	ident := *id
	a.beginLocked(&ident)
}

// beginLocked supersedes any in-flight lookup and starts a new one for ident.
func (a *SessionAuthorizer) beginLocked(ident *auth.Identity) {
	a.seq++
	seq := a.seq

	key := ident.Key()
	if key == "" {
		a.setLocked(Snapshot{Identity: ident, State: StateDenied})
		return
	}

	a.setLocked(Snapshot{
		Identity:               ident,
		State:                  StateLoading,
		PermissionCheckLoading: true,
	})

	go a.check(seq, ident, key)
}

func (a *SessionAuthorizer) check(seq uint64, ident *auth.Identity, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	state, err := a.resolve(ctx, key)

	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.seq {
		a.rec.ObserveLookup("stale")
		a.log.Debug("discarding stale authorization result", "email", key, "state", state.String())
		return
	}

	a.setLocked(Snapshot{Identity: ident, State: state, LastError: err})

	if err != nil {
		a.log.Error("authorization lookup failed", "email", key, "error", err.Error())
		return
	}
	a.log.Info("authorization decided", "email", key, "state", state.String())
}

func (a *SessionAuthorizer) resolve(ctx context.Context, key string) (State, error) {
	rec, err := a.store.Get(ctx, key)
	switch {
	case err == nil:
		a.rec.ObserveLookup("found")
		if rec.Active {
			return StateAuthorized, nil
		}
		return StatePending, nil

	case errors.Is(err, ErrRecordNotFound):
		a.rec.ObserveLookup("not_found")
		if a.policy != PolicyAutoRegister {
			return StateDenied, nil
		}

		err := a.store.CreateIfAbsent(ctx, key, Record{
			Email:     key,
			Active:    false,
			CreatedAt: a.now().UTC(),
		})
		if err != nil && !errors.Is(err, ErrRecordExists) {
			a.rec.ObserveLookup("register_error")
			return StateUnavailable, fmt.Errorf("%w: register: %w", ErrLookup, err)
		}
		a.log.Info("registered identity pending approval", "email", key)
		return StatePending, nil

	default:
		a.rec.ObserveLookup("error")
		return StateUnavailable, fmt.Errorf("%w: %w", ErrLookup, err)
	}
}

// setLocked publishes snap and records settled decisions.
func (a *SessionAuthorizer) setLocked(snap Snapshot) {
	a.publishLocked(snap)

	if snap.Settled() {
		a.rec.ObserveDecision(snap.State)
	}
}

// publishLocked swaps in snap and wakes every Settled waiter.
func (a *SessionAuthorizer) publishLocked(snap Snapshot) {
	a.snap = snap
	close(a.changed)
	a.changed = make(chan struct{})
}

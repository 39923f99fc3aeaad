package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copycraft/internal/auth"
)

func identity(email string) *auth.Identity {
	return &auth.Identity{Provider: "google", ProviderUserID: "sub-" + email, Email: email, EmailVerified: true}
}

func TestInitialStateIsLoading(t *testing.T) {
	idp := newFakeIdentityProvider()
	idp.noReplay = true

	a := New(idp, newFakeStore())
	defer a.Close()

	snap := a.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.Settled())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Settled(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNilIdentityIsUnauthenticated(t *testing.T) {
	a := New(newFakeIdentityProvider(), newFakeStore())
	defer a.Close()

	snap := settle(t, a)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.PermissionCheckLoading)
	assert.NoError(t, snap.LastError)
}

func TestActiveRecordAuthorizesWithoutWrite(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore(Record{Email: "b@x.com", Active: true})
	a := New(idp, store, WithPolicy(PolicyAutoRegister))
	defer a.Close()

	idp.emit(identity("b@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StateAuthorized, snap.State)
	assert.Equal(t, "b@x.com", snap.Identity.Email)

	gets, creates, _ := store.snapshot()
	assert.Equal(t, []string{"b@x.com"}, gets)
	assert.Empty(t, creates)
}

func TestInactiveRecordIsPending(t *testing.T) {
	idp := newFakeIdentityProvider()
	a := New(idp, newFakeStore(Record{Email: "p@x.com", Active: false}))
	defer a.Close()

	idp.emit(identity("p@x.com"))
	assert.Equal(t, StatePending, settle(t, a).State)
}

func TestUnknownIdentityStrictPolicyIsDenied(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore()
	a := New(idp, store, WithPolicy(PolicyStrict))
	defer a.Close()

	idp.emit(identity("nobody@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StateDenied, snap.State)
	assert.NoError(t, snap.LastError)

	_, creates, _ := store.snapshot()
	assert.Empty(t, creates)
}

func TestUnknownIdentityAutoRegisterCreatesPendingRecordOnce(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	idp := newFakeIdentityProvider()
	store := newFakeStore()
	a := New(idp, store,
		WithPolicy(PolicyAutoRegister),
		WithClock(func() time.Time { return created }),
	)
	defer a.Close()

	idp.emit(identity("a@x.com"))
	assert.Equal(t, StatePending, settle(t, a).State)

	// a second check finds the record and must not write again
	require.NoError(t, a.Recheck())
	assert.Equal(t, StatePending, settle(t, a).State)

	_, creates, records := store.snapshot()
	assert.Equal(t, []string{"a@x.com"}, creates)
	assert.Equal(t, Record{Email: "a@x.com", Active: false, CreatedAt: created}, records["a@x.com"])
}

func TestAutoRegisterConflictIsIgnored(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore()
	store.createErr = ErrRecordExists
	a := New(idp, store, WithPolicy(PolicyAutoRegister))
	defer a.Close()

	idp.emit(identity("race@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StatePending, snap.State)
	assert.NoError(t, snap.LastError)
}

func TestAutoRegisterWriteFailureIsUnavailable(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore()
	store.createErr = errors.New("write refused")
	a := New(idp, store, WithPolicy(PolicyAutoRegister))
	defer a.Close()

	idp.emit(identity("a@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StateUnavailable, snap.State)
	assert.ErrorIs(t, snap.LastError, ErrLookup)
}

func TestEmailIsNormalizedBeforeLookup(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore(Record{Email: "foo@bar.com", Active: true})
	a := New(idp, store)
	defer a.Close()

	idp.emit(identity("Foo@Bar.com "))
	assert.Equal(t, StateAuthorized, settle(t, a).State)

	idp.emit(identity("foo@bar.com"))
	assert.Equal(t, StateAuthorized, settle(t, a).State)

	gets, _, _ := store.snapshot()
	assert.Equal(t, []string{"foo@bar.com", "foo@bar.com"}, gets)
}

func TestIdentityWithoutEmailIsDeniedWithoutLookup(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore()
	a := New(idp, store, WithPolicy(PolicyAutoRegister))
	defer a.Close()

	idp.emit(&auth.Identity{Provider: "google", ProviderUserID: "sub", Email: "  "})

	assert.Equal(t, StateDenied, settle(t, a).State)
	gets, creates, _ := store.snapshot()
	assert.Empty(t, gets)
	assert.Empty(t, creates)
}

func TestLookupFailureIsUnavailableAndRetryable(t *testing.T) {
	permissionDenied := errors.New("permission denied")
	idp := newFakeIdentityProvider()
	store := newFakeStore(Record{Email: "c@x.com", Active: true})
	store.setGetErr(permissionDenied)
	a := New(idp, store)
	defer a.Close()

	idp.emit(identity("c@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StateUnavailable, snap.State)
	require.Error(t, snap.LastError)
	assert.ErrorIs(t, snap.LastError, ErrLookup)
	assert.ErrorIs(t, snap.LastError, permissionDenied)
	assert.NotEmpty(t, snap.LastError.Error())

	store.setGetErr(nil)
	require.NoError(t, a.Recheck())

	snap = settle(t, a)
	assert.Equal(t, StateAuthorized, snap.State)
	assert.NoError(t, snap.LastError)
}

func TestRecheckWithoutIdentity(t *testing.T) {
	a := New(newFakeIdentityProvider(), newFakeStore())
	defer a.Close()
	settle(t, a)

	assert.ErrorIs(t, a.Recheck(), ErrNoIdentity)
}

func TestSignInSuccessIsDrivenByCallback(t *testing.T) {
	idp := newFakeIdentityProvider()
	idp.byCode["code-1"] = identity("b@x.com")
	a := New(idp, newFakeStore(Record{Email: "b@x.com", Active: true}))
	defer a.Close()
	settle(t, a)

	cred := auth.Credential{Provider: "google", Code: "code-1", CodeVerifier: "v"}
	require.NoError(t, a.SignIn(context.Background(), cred))

	snap := settle(t, a)
	assert.Equal(t, StateAuthorized, snap.State)
	assert.Equal(t, []auth.Credential{cred}, idp.signIns)
}

func TestSignInFailureLeavesStateUnchanged(t *testing.T) {
	popupBlocked := errors.New("popup blocked")
	idp := newFakeIdentityProvider()
	idp.signInErr = popupBlocked
	a := New(idp, newFakeStore())
	defer a.Close()
	settle(t, a)

	err := a.SignIn(context.Background(), auth.Credential{Provider: "google", Code: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignIn)
	assert.ErrorIs(t, err, popupBlocked)

	snap := a.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.ErrorIs(t, snap.LastError, ErrSignIn)

	// a later successful sign-in clears the error
	idp.signInErr = nil
	idp.byCode["ok"] = identity("d@x.com")
	require.NoError(t, a.SignIn(context.Background(), auth.Credential{Provider: "google", Code: "ok"}))
	snap = settle(t, a)
	assert.Equal(t, StateDenied, snap.State)
	assert.NoError(t, snap.LastError)
}

func TestSignOutIsImmediateEvenWhenProviderFails(t *testing.T) {
	idp := newFakeIdentityProvider()
	a := New(idp, newFakeStore(Record{Email: "b@x.com", Active: true}))
	defer a.Close()

	idp.emit(identity("b@x.com"))
	require.Equal(t, StateAuthorized, settle(t, a).State)

	idp.signOutErr = errors.New("network down")
	err := a.SignOut(context.Background())
	assert.ErrorIs(t, err, ErrSignOut)

	snap := a.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
	assert.ErrorIs(t, snap.LastError, ErrSignOut)
}

func TestSignOutBeforeLookupResolvesStaysUnauthenticated(t *testing.T) {
	idp := newFakeIdentityProvider()
	idp.byCode["code-a"] = identity("a@x.com")
	store := newFakeStore(Record{Email: "a@x.com", Active: true})
	release := store.hold("a@x.com")
	rec := newRecordingRecorder()
	a := New(idp, store, WithRecorder(rec))
	defer a.Close()
	settle(t, a)

	require.NoError(t, a.SignIn(context.Background(), auth.Credential{Provider: "google", Code: "code-a"}))
	snap := a.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.True(t, snap.PermissionCheckLoading)

	require.NoError(t, a.SignOut(context.Background()))
	assert.Equal(t, StateUnauthenticated, a.Snapshot().State)

	release()
	rec.waitLookup(t, "stale")

	snap = a.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
}

func TestNewerIdentitySupersedesInFlightLookup(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore(
		Record{Email: "a@x.com", Active: false},
		Record{Email: "b@x.com", Active: true},
	)
	release := store.hold("a@x.com")
	rec := newRecordingRecorder()
	a := New(idp, store, WithRecorder(rec))
	defer a.Close()

	idp.emit(identity("a@x.com"))
	idp.emit(identity("b@x.com"))

	snap := settle(t, a)
	assert.Equal(t, StateAuthorized, snap.State)
	assert.Equal(t, "b@x.com", snap.Identity.Email)

	release()
	rec.waitLookup(t, "stale")

	snap = a.Snapshot()
	assert.Equal(t, StateAuthorized, snap.State)
	assert.Equal(t, "b@x.com", snap.Identity.Email)
}

func TestAuthorizedIffActiveRecord(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		records []Record
		policy  Policy
		want    State
	}{
		{name: "active", email: "a@x.com", records: []Record{{Email: "a@x.com", Active: true}}, want: StateAuthorized},
		{name: "active other case", email: " A@X.com", records: []Record{{Email: "a@x.com", Active: true}}, want: StateAuthorized},
		{name: "inactive", email: "a@x.com", records: []Record{{Email: "a@x.com"}}, want: StatePending},
		{name: "other user active", email: "a@x.com", records: []Record{{Email: "b@x.com", Active: true}}, want: StateDenied},
		{name: "absent auto register", email: "a@x.com", policy: PolicyAutoRegister, want: StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newFakeIdentityProvider()
			a := New(idp, newFakeStore(tt.records...), WithPolicy(tt.policy))
			defer a.Close()

			idp.emit(identity(tt.email))
			assert.Equal(t, tt.want, settle(t, a).State)
		})
	}
}

func TestCloseStopsCallbacks(t *testing.T) {
	idp := newFakeIdentityProvider()
	a := New(idp, newFakeStore(Record{Email: "b@x.com", Active: true}))
	settle(t, a)
	require.Equal(t, 1, idp.subscribers())

	a.Close()
	a.Close()
	assert.Equal(t, 0, idp.subscribers())

	idp.emit(identity("b@x.com"))
	assert.Equal(t, StateUnauthenticated, a.Snapshot().State)
	assert.ErrorIs(t, a.Recheck(), ErrClosed)
}

func TestCloseDuringLookupReleasesWaiters(t *testing.T) {
	idp := newFakeIdentityProvider()
	store := newFakeStore(Record{Email: "a@x.com", Active: true})
	release := store.hold("a@x.com")
	rec := newRecordingRecorder()
	a := New(idp, store, WithRecorder(rec))

	idp.emit(identity("a@x.com"))
	require.True(t, a.Snapshot().PermissionCheckLoading)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := a.Settled(ctx)
		done <- err
	}()

	a.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	snap := a.Snapshot()
	assert.True(t, snap.Settled())
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
	assert.ErrorIs(t, snap.LastError, ErrClosed)

	release()
	rec.waitLookup(t, "stale")
	assert.Equal(t, StateUnauthenticated, a.Snapshot().State)

	_, err := a.Settled(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStateText(t *testing.T) {
	b, err := StatePending.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pending", string(b))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("unavailable")))
	assert.Equal(t, StateUnavailable, s)
	assert.Error(t, s.UnmarshalText([]byte("maybe")))
}

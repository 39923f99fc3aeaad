package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"copycraft/internal/auth"
)

// fakeIdentityProvider emits synchronously and serially, like the browser
// SDK's auth-state listener.
type fakeIdentityProvider struct {
	mu       sync.Mutex
	current  *auth.Identity
	subs     map[int]func(*auth.Identity)
	nextID   int
	noReplay bool

	byCode     map[string]*auth.Identity
	signInErr  error
	signOutErr error
	signIns    []auth.Credential
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		subs:   make(map[int]func(*auth.Identity)),
		byCode: make(map[string]*auth.Identity),
	}
}

func (f *fakeIdentityProvider) Subscribe(fn func(*auth.Identity)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs[id] = fn

	if !f.noReplay {
		fn(f.current)
	}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeIdentityProvider) emit(id *auth.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = id
	for _, fn := range f.subs {
		fn(id)
	}
}

func (f *fakeIdentityProvider) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeIdentityProvider) SignIn(_ context.Context, cred auth.Credential) error {
	f.mu.Lock()
	f.signIns = append(f.signIns, cred)
	err := f.signInErr
	id := f.byCode[cred.Code]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if id == nil {
		return errors.New("unknown code")
	}
	f.emit(id)
	return nil
}

func (f *fakeIdentityProvider) SignOut(context.Context) error {
	f.mu.Lock()
	err := f.signOutErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.emit(nil)
	return nil
}

// fakeStore can hold Get for a key until the test releases it.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]Record
	getErr    error
	createErr error
	gets      []string
	creates   []string
	gates     map[string]chan struct{}
}

func newFakeStore(records ...Record) *fakeStore {
	s := &fakeStore{
		records: make(map[string]Record),
		gates:   make(map[string]chan struct{}),
	}
	for _, r := range records {
		s.records[r.Email] = r
	}
	return s
}

func (s *fakeStore) hold(key string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[key] = ch
	s.mu.Unlock()
	return func() { close(ch) }
}

func (s *fakeStore) Get(ctx context.Context, key string) (Record, error) {
	s.mu.Lock()
	s.gets = append(s.gets, key)
	gate := s.gates[key]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return Record{}, s.getErr
	}
	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *fakeStore) CreateIfAbsent(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	s.creates = append(s.creates, key)
	if _, ok := s.records[key]; ok {
		return nil
	}
	s.records[key] = rec
	return nil
}

func (s *fakeStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *fakeStore) snapshot() (gets, creates []string, records map[string]Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records = make(map[string]Record, len(s.records))
	for k, v := range s.records {
		records[k] = v
	}
	return append([]string(nil), s.gets...), append([]string(nil), s.creates...), records
}

type recordingRecorder struct {
	lookups chan string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{lookups: make(chan string, 64)}
}

func (r *recordingRecorder) ObserveDecision(State) {}

func (r *recordingRecorder) ObserveLookup(result string) {
	r.lookups <- result
}

// waitLookup drains recorded lookup results until want is seen.
func (r *recordingRecorder) waitLookup(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.lookups:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("lookup result %q not observed", want)
		}
	}
}

func settle(t *testing.T, a *SessionAuthorizer) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := a.Settled(ctx)
	if err != nil {
		t.Fatalf("authorizer did not settle: %v (state=%s)", err, snap.State)
	}
	return snap
}

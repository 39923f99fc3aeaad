package access

import "fmt"

// State is the access decision exposed to the web layer. Exactly one state
// holds at a time.
type State int

const (
	// StateLoading: no decision yet, either before the first identity
	// callback or while a permission check is in flight.
	StateLoading State = iota
	// StateUnauthenticated: no identity.
	StateUnauthenticated
	// StatePending: the identity has a record that is not active yet.
	StatePending
	// StateDenied: the identity has no record (strict policy) or no email.
	StateDenied
	// StateAuthorized: the identity has an active record.
	StateAuthorized
	// StateUnavailable: the authorization lookup failed. Retryable.
	StateUnavailable
)

var stateNames = map[State]string{
	StateLoading:         "loading",
	StateUnauthenticated: "unauthenticated",
	StatePending:         "pending",
	StateDenied:          "denied",
	StateAuthorized:      "authorized",
	StateUnavailable:     "unavailable",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("access: unknown state %q", string(b))
}

// Policy decides what happens to an authenticated identity that has no
// authorization record.
type Policy int

const (
	// PolicyStrict denies unknown identities.
	PolicyStrict Policy = iota
	// PolicyAutoRegister creates an inactive record and reports pending.
	PolicyAutoRegister
)

func (p Policy) String() string {
	if p == PolicyAutoRegister {
		return "auto_register"
	}
	return "strict"
}

package provider

import (
	"context"
	"errors"

	"copycraft/internal/auth"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrExchange        = errors.New("oauth code exchange failed")
)

// OAuthProvider defines the contract every external identity provider
// must implement. Implementations return identity facts only and make no
// authorization decisions.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "google", "keycloak").
	Name() string

	// AuthCodeURL returns the authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode exchanges the authorization code and returns the
	// verified identity.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.Identity, error)
}

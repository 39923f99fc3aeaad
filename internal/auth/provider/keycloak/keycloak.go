package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"copycraft/internal/auth/provider"
)

const providerName = "keycloak"

// New initializes a Keycloak realm provider using discovery.
// issuer is the realm issuer URL as seen by this service, e.g.
// http://keycloak:8080/realms/copycraft. When publicBaseURL is set, the
// browser-facing authorization URL is rewritten onto it.
func New(
	ctx context.Context,
	issuer string,
	clientID string,
	redirectURL string,
	publicBaseURL string,
) (*provider.OIDC, error) {

	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, errors.New("keycloak oauth config missing required fields")
	}

	var rewrite provider.EndpointFunc
	if publicBaseURL != "" {
		rewrite = func(ep oauth2.Endpoint) (oauth2.Endpoint, error) {
			authURL, err := rebase(ep.AuthURL, publicBaseURL)
			if err != nil {
				return ep, err
			}
			ep.AuthURL = authURL
			return ep, nil
		}
	}

	// public client, PKCE replaces the secret
	return provider.Discover(ctx, providerName, issuer, oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
	}, rewrite)
}

// rebase moves rawURL onto base's scheme and host, keeping path and query.
func rebase(rawURL, base string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("keycloak: parse auth url: %w", err)
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" || b.Host == "" {
		return "", fmt.Errorf("keycloak: invalid public_base_url %q", base)
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String(), nil
}

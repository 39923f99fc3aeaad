// Package google registers Google accounts as an identity provider.
package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"copycraft/internal/auth/provider"
)

const (
	providerName = "google"
	issuer       = "https://accounts.google.com"
)

func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*provider.OIDC, error) {
	return newWithIssuer(ctx, issuer, clientID, clientSecret, redirectURL)
}

func newWithIssuer(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string) (*provider.OIDC, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	return provider.Discover(ctx, providerName, issuerURL, oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	}, nil)
}

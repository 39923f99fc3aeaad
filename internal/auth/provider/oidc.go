package provider

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"copycraft/internal/auth"
	"copycraft/internal/logger"
)

// OIDC implements OAuthProvider with an authorization code + PKCE flow and
// ID token verification.
type OIDC struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

func NewOIDC(name string, cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *OIDC {
	return &OIDC{
		name:        name,
		oauthConfig: cfg,
		verifier:    verifier,
	}
}

func (p *OIDC) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization URL with S256 PKCE parameters.
func (p *OIDC) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (p *OIDC) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Identity, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s token exchange: %w", ErrExchange, p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: %s did not return id_token", ErrExchange, p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s id_token verification: %w", ErrExchange, p.name, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %s id_token claims: %w", ErrExchange, p.name, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %s id_token missing sub", ErrExchange, p.name)
	}

	logger.Info("oidc identity verified", map[string]any{
		"provider":       p.name,
		"issuer":         idToken.Issuer,
		"email_present":  claims.Email != "",
		"email_verified": claims.EmailVerified,
		"expiry_unix":    idToken.Expiry.Unix(),
	})

	return &auth.Identity{
		Provider:       p.name,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
	}, nil
}

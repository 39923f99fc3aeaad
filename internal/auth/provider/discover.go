package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"copycraft/internal/logger"
)

// EndpointFunc may rewrite the discovered endpoints before they are used.
type EndpointFunc func(oauth2.Endpoint) (oauth2.Endpoint, error)

// Discover fetches the issuer's discovery document and builds an OIDC
// provider for cfg. Discovery is retried, identity providers started next
// to the service often come up late.
func Discover(ctx context.Context, name, issuer string, cfg oauth2.Config, rewrite EndpointFunc) (*OIDC, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = logger.With(map[string]any{"component": "oidc", "provider": name})

	oidcProvider, err := oidc.NewProvider(oidc.ClientContext(ctx, rc.StandardClient()), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", name, err)
	}

	ep := oidcProvider.Endpoint()
	if rewrite != nil {
		if ep, err = rewrite(ep); err != nil {
			return nil, err
		}
	}
	cfg.Endpoint = ep

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	verifier := oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	return NewOIDC(name, &cfg, verifier), nil
}

package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebase(t *testing.T) {
	got, err := rebase(
		"http://keycloak:8080/realms/copycraft/protocol/openid-connect/auth",
		"https://id.example.com",
	)
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com/realms/copycraft/protocol/openid-connect/auth", got)
}

func TestRebaseInvalidBase(t *testing.T) {
	_, err := rebase("http://keycloak:8080/auth", "id.example.com")
	assert.Error(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), "", "client", "https://app/cb", "")
	assert.Error(t, err)
}

func TestNewDiscoversAndRebases(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/copycraft/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		issuer := srv.URL + "/realms/copycraft"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/protocol/openid-connect/auth",
			"token_endpoint":         issuer + "/protocol/openid-connect/token",
			"jwks_uri":               issuer + "/protocol/openid-connect/certs",
		})
	}))
	defer srv.Close()

	p, err := New(context.Background(), srv.URL+"/realms/copycraft", "copycraft-web", "https://app.example.com/oauth/callback/keycloak", "https://id.example.com")
	require.NoError(t, err)
	assert.Equal(t, "keycloak", p.Name())

	authURL, err := url.Parse(p.AuthCodeURL("st", "ch"))
	require.NoError(t, err)
	assert.Equal(t, "id.example.com", authURL.Host)
	assert.Equal(t, "/realms/copycraft/protocol/openid-connect/auth", authURL.Path)
	assert.Equal(t, "copycraft-web", authURL.Query().Get("client_id"))
	assert.Equal(t, "S256", authURL.Query().Get("code_challenge_method"))
	assert.Contains(t, authURL.Query().Get("scope"), "openid")
}

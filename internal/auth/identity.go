package auth

import "strings"

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type Identity struct {
	Provider       string `json:"provider"`         // e.g. "google", "keycloak"
	ProviderUserID string `json:"provider_user_id"` // provider-scoped unique user identifier (sub)
	Email          string `json:"email"`            // email returned by provider
	EmailVerified  bool   `json:"email_verified"`   // whether provider asserts email ownership
}

// Key returns the principal key used for authorization lookups.
func (i *Identity) Key() string {
	if i == nil {
		return ""
	}
	return NormalizeEmail(i.Email)
}

// NormalizeEmail trims and lowercases an email. It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Credential carries what an interactive sign-in produced in the browser:
// the authorization code returned to the callback and the PKCE verifier
// issued when the flow began.
type Credential struct {
	Provider     string
	Code         string
	CodeVerifier string
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"copycraft/internal/access"
	"copycraft/internal/auth"
	"copycraft/internal/session"
)

// unexported, collision-proof context key
type identityContextKeyType struct{}

var identityKey = identityContextKeyType{}

// IdentityFromContext returns the authorized identity attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type AuthMiddleware struct {
	Authorizers *access.Manager
	Cookie      session.CookieOptions

	// SettleTimeout bounds how long a request waits for an in-flight
	// authorization check.
	SettleTimeout time.Duration
}

func NewAuthMiddleware(manager *access.Manager, cookie session.CookieOptions) *AuthMiddleware {
	return &AuthMiddleware{
		Authorizers:   manager,
		Cookie:        cookie,
		SettleTimeout: 10 * time.Second,
	}
}

// RequireAuth lets the request through only when the session's authorizer
// has settled on StateAuthorized. Cookies the manager does not admit are
// rejected before any authorizer is built.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := session.ReadCookie(r, a.Cookie)
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), a.SettleTimeout)
		defer cancel()

		_, snap, err := a.Authorizers.Settled(ctx, sessionID)
		switch {
		case errors.Is(err, access.ErrNotAdmitted):
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeError(w, http.StatusServiceUnavailable, "authorization_pending")
			return
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, "authorization_unavailable")
			return
		}

		if status, code := Reject(snap.State); status != 0 {
			writeError(w, status, code)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), snap.Identity)))
	})
}

// Reject maps a settled state that must not reach protected routes to an
// HTTP status and error code. It returns 0 for StateAuthorized.
func Reject(state access.State) (int, string) {
	switch state {
	case access.StateAuthorized:
		return 0, ""
	case access.StatePending:
		return http.StatusForbidden, "pending_approval"
	case access.StateDenied:
		return http.StatusForbidden, "access_denied"
	case access.StateUnavailable:
		return http.StatusServiceUnavailable, "authorization_unavailable"
	default:
		return http.StatusUnauthorized, "unauthenticated"
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

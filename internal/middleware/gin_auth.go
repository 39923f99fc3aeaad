package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"copycraft/internal/auth"
)

// IdentityKey holds the authorized *auth.Identity in the gin context.
const IdentityKey = "identity"

// GinRequireAuth runs RequireAuth inside a gin chain. A rejected request
// ends the chain with RequireAuth's response.
func GinRequireAuth(mw *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			if id, ok := IdentityFromContext(r.Context()); ok {
				c.Set(IdentityKey, id)
			}
			c.Next()
		})

		mw.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

// GinIdentity returns the identity stored by GinRequireAuth.
func GinIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok && id != nil
}

package handler

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/gin-gonic/gin"

	"copycraft/internal/utils"
)

const (
	pkceCookieName = "__oauth_pkce"
	pkceTTL        = 5 * time.Minute
)

func (h *Handler) generatePKCE(c *gin.Context) (verifier string, challenge string, err error) {
	verifier, err = utils.RandomString(32)
	if err != nil {
		return "", "", err
	}

	challenge = pkceChallenge(verifier)
	h.setFlowCookie(c, pkceCookieName, verifier, pkceTTL)

	return verifier, challenge, nil
}

// pkceChallenge derives the S256 code challenge.
func pkceChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func getPKCEVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

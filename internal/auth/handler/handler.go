package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"copycraft/internal/access"
	"copycraft/internal/auth"
	"copycraft/internal/auth/provider"
	"copycraft/internal/logger"
	"copycraft/internal/session"
)

type Handler struct {
	providers     *provider.Registry
	sessionStore  session.Store
	authorizers   *access.Manager
	cookie        session.CookieOptions
	sessionTTL    time.Duration
	settleTimeout time.Duration
}

func NewHandler(
	registry *provider.Registry,
	sessionStore session.Store,
	authorizers *access.Manager,
	cookie session.CookieOptions,
	sessionTTL time.Duration,
) *Handler {
	return &Handler{
		providers:     registry,
		sessionStore:  sessionStore,
		authorizers:   authorizers,
		cookie:        cookie,
		sessionTTL:    sessionTTL,
		settleTimeout: 10 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)
	r.POST("/auth/logout", h.Logout)

	r.GET("/api/session", h.Session)
	r.POST("/api/session/recheck", h.Recheck)
}

// login starts the authorization code flow under a fresh session id, so an
// id planted before sign-in is never promoted to an authenticated session.
func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if old := session.ReadCookie(c.Request, h.cookie); old != "" {
		h.dropSession(c.Request.Context(), old)
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create session",
		})
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sign-in"})
		return
	}
	_, codeChallenge, err := h.generatePKCE(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sign-in"})
		return
	}

	session.SetCookie(c.Writer, sessionID, time.Now().Add(h.sessionTTL), h.cookie)

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	if _, err := h.providers.Get(providerName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !validateState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid state",
		})
		return
	}

	h.setFlowCookie(c, stateCookieName, "", -1)

	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		redirectWithError(c, "sign_in_cancelled")
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oidc callback missing code and error", nil)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing pkce verifier",
		})
		return
	}
	h.setFlowCookie(c, pkceCookieName, "", -1)

	sessionID := session.ReadCookie(c.Request, h.cookie)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing session",
		})
		return
	}

	// sign-in is the one path that builds an authorizer for a session not
	// yet persisted; its replay settles first so it cannot overwrite a
	// failed exchange
	authorizer := h.authorizers.Get(sessionID)
	settleCtx, cancel := context.WithTimeout(c.Request.Context(), h.settleTimeout)
	_, _ = authorizer.Settled(settleCtx)
	cancel()

	err := authorizer.SignIn(c.Request.Context(), auth.Credential{
		Provider:     providerName,
		Code:         code,
		CodeVerifier: codeVerifier,
	})
	if err != nil {
		redirectWithError(c, "sign_in_failed")
		return
	}

	session.SetCookie(c.Writer, sessionID, time.Now().Add(h.sessionTTL), h.cookie)

	logger.Info("login success", map[string]any{
		"provider": providerName,
		"ip":       c.ClientIP(),
	})

	c.Redirect(http.StatusFound, "/")
}

// Logout is idempotent. The authorizer reports StateUnauthenticated before
// the stored session is deleted.
func (h *Handler) Logout(c *gin.Context) {
	if sessionID := session.ReadCookie(c.Request, h.cookie); sessionID != "" {
		h.dropSession(c.Request.Context(), sessionID)
	}

	session.ClearCookie(c.Writer, h.cookie)
	c.Status(http.StatusNoContent)
}

func (h *Handler) dropSession(ctx context.Context, sessionID string) {
	authorizer, ok := h.authorizers.Peek(sessionID)
	if ok {
		if err := authorizer.SignOut(ctx); err != nil {
			logger.Warn("sign-out failed", map[string]any{"error": err.Error()})
		}
		h.authorizers.Remove(sessionID)
		return
	}

	if err := h.sessionStore.Delete(ctx, sessionID); err != nil {
		logger.Warn("session delete failed", map[string]any{"error": err.Error()})
	}
}

type identityView struct {
	Provider      string `json:"provider"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type sessionView struct {
	State                  access.State  `json:"state"`
	PermissionCheckLoading bool          `json:"permission_check_loading"`
	Identity               *identityView `json:"identity"`
	Error                  string        `json:"error,omitempty"`
	Providers              []string      `json:"providers"`
}

func (h *Handler) view(snap access.Snapshot) sessionView {
	v := sessionView{
		State:                  snap.State,
		PermissionCheckLoading: snap.PermissionCheckLoading,
		Providers:              h.providers.Names(),
	}
	if snap.Identity != nil {
		v.Identity = &identityView{
			Provider:      snap.Identity.Provider,
			Email:         snap.Identity.Email,
			EmailVerified: snap.Identity.EmailVerified,
		}
	}
	if snap.LastError != nil {
		v.Error = snap.LastError.Error()
	}
	return v
}

// Session reports the current access state. With wait=1 it blocks until
// the state is settled or the settle timeout passes. Cookies without a
// stored session read as signed out.
func (h *Handler) Session(c *gin.Context) {
	sessionID := session.ReadCookie(c.Request, h.cookie)
	if sessionID == "" {
		c.JSON(http.StatusOK, h.view(access.Snapshot{State: access.StateUnauthenticated}))
		return
	}

	wait := c.Query("wait") == "1" || c.Query("wait") == "true"
	_, snap, err := h.acquire(c.Request.Context(), sessionID, wait)
	switch {
	case errors.Is(err, access.ErrNotAdmitted):
		c.JSON(http.StatusOK, h.view(access.Snapshot{State: access.StateUnauthenticated}))
		return
	case err != nil:
		logger.Error("session lookup failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session_unavailable"})
		return
	}

	c.JSON(http.StatusOK, h.view(snap))
}

// Recheck re-runs the authorization lookup, e.g. after an administrator
// approved a pending account or the store was unavailable.
func (h *Handler) Recheck(c *gin.Context) {
	sessionID := session.ReadCookie(c.Request, h.cookie)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	// the first identity replay must have arrived before there is
	// anything to recheck
	authorizer, _, err := h.acquire(c.Request.Context(), sessionID, true)
	switch {
	case errors.Is(err, access.ErrNotAdmitted):
		c.JSON(http.StatusConflict, gin.H{"error": "no_identity"})
		return
	case err != nil:
		logger.Error("session lookup failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session_unavailable"})
		return
	}

	if err := authorizer.Recheck(); err != nil {
		if errors.Is(err, access.ErrNoIdentity) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_identity"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recheck_failed"})
		return
	}

	_, snap, err := h.acquire(c.Request.Context(), sessionID, true)
	if err != nil {
		snap = authorizer.Snapshot()
	}
	c.JSON(http.StatusOK, h.view(snap))
}

// acquire returns the session's authorizer and its snapshot, settled when
// wait is set. Running out of settle time still yields the latest snapshot;
// only admission failures are returned as errors.
func (h *Handler) acquire(ctx context.Context, sessionID string, wait bool) (*access.SessionAuthorizer, access.Snapshot, error) {
	if !wait {
		authorizer, err := h.authorizers.Acquire(ctx, sessionID)
		if err != nil {
			return nil, access.Snapshot{}, err
		}
		return authorizer, authorizer.Snapshot(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.settleTimeout)
	defer cancel()

	authorizer, snap, err := h.authorizers.Settled(ctx, sessionID)
	if authorizer == nil {
		return nil, snap, err
	}
	return authorizer, snap, nil
}

func redirectWithError(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, "/?"+url.Values{"auth_error": {code}}.Encode())
}

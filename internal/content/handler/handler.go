// Package handler serves the copywriting API behind the access check.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"copycraft/internal/apikey"
	"copycraft/internal/auth"
	"copycraft/internal/brand"
	"copycraft/internal/content"
	"copycraft/internal/generate"
	"copycraft/internal/logger"
	"copycraft/internal/metrics"
	"copycraft/internal/middleware"
)

type BrandStore interface {
	List(ctx context.Context, owner string) ([]content.Brand, error)
	Get(ctx context.Context, owner, id string) (content.Brand, error)
	Add(ctx context.Context, owner string, b content.Brand) (content.Brand, error)
	Delete(ctx context.Context, owner, id string) error
}

type KeyStore interface {
	Get(ctx context.Context, owner string) (string, error)
	Set(ctx context.Context, owner, apiKey string) error
	Clear(ctx context.Context, owner string) error
}

type Handler struct {
	brands    BrandStore
	keys      KeyStore
	generator generate.Generator
	metrics   *metrics.Metrics
}

// NewHandler wires the stores and generator. m may be nil.
func NewHandler(brands BrandStore, keys KeyStore, generator generate.Generator, m *metrics.Metrics) *Handler {
	return &Handler{
		brands:    brands,
		keys:      keys,
		generator: generator,
		metrics:   m,
	}
}

// RegisterRoutes mounts the handlers on a group that already requires an
// authorized session.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/api/generate", h.Generate)

	r.GET("/api/apikey", h.GetAPIKey)
	r.PUT("/api/apikey", h.PutAPIKey)
	r.DELETE("/api/apikey", h.DeleteAPIKey)

	r.GET("/api/brands", h.ListBrands)
	r.POST("/api/brands", h.CreateBrand)
	r.DELETE("/api/brands/:id", h.DeleteBrand)
}

func owner(c *gin.Context) (*auth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(c.Request.Context())
	if !ok || id.Key() == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil, false
	}
	return id, true
}

func (h *Handler) Generate(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	req := content.NewRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	req.Normalize()

	if req.BrandID != "" {
		b, err := h.brands.Get(c.Request.Context(), id.Key(), req.BrandID)
		if errors.Is(err, brand.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_brand"})
			return
		}
		if err != nil {
			internalError(c, "brand lookup failed", err)
			return
		}
		// submitted tone and audience win over the brand defaults
		req.Brand = &b
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	key, err := h.keys.Get(c.Request.Context(), id.Key())
	if errors.Is(err, apikey.ErrNoKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key_required"})
		return
	}
	if err != nil {
		internalError(c, "api key lookup failed", err)
		return
	}

	started := time.Now()
	text, err := h.generator.Generate(c.Request.Context(), req, key)
	h.observe(generationResult(err), time.Since(started))

	switch generate.Classify(err) {
	case nil:
		c.JSON(http.StatusOK, gin.H{"content": text})
	case generate.ErrInvalidKey:
		logger.Warn("generation rejected api key", map[string]any{"email": id.Key()})
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_api_key"})
	default:
		logger.Error("generation failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed"})
	}
}

func generationResult(err error) string {
	switch generate.Classify(err) {
	case nil:
		return "ok"
	case generate.ErrInvalidKey:
		return "invalid_key"
	default:
		return "connectivity"
	}
}

func (h *Handler) observe(result string, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	model := "unknown"
	if m, ok := h.generator.(interface{ Model() string }); ok {
		model = m.Model()
	}
	h.metrics.ObserveGeneration(model, result, elapsed)
}

func (h *Handler) GetAPIKey(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	key, err := h.keys.Get(c.Request.Context(), id.Key())
	if errors.Is(err, apikey.ErrNoKey) {
		c.JSON(http.StatusOK, gin.H{"has_key": false, "hint": ""})
		return
	}
	if err != nil {
		internalError(c, "api key lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_key": true, "hint": apikey.Mask(key)})
}

type apiKeyBody struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) PutAPIKey(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	var body apiKeyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	err := h.keys.Set(c.Request.Context(), id.Key(), body.APIKey)
	if errors.Is(err, apikey.ErrEmptyKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key_required"})
		return
	}
	if err != nil {
		internalError(c, "api key store failed", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAPIKey(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	if err := h.keys.Clear(c.Request.Context(), id.Key()); err != nil {
		internalError(c, "api key clear failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListBrands(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	brands, err := h.brands.List(c.Request.Context(), id.Key())
	if err != nil {
		internalError(c, "brand list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

func (h *Handler) CreateBrand(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	var b content.Brand
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	created, err := h.brands.Add(c.Request.Context(), id.Key(), b)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, created)
	case errors.Is(err, content.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_brand", "details": err.Error()})
	case errors.Is(err, brand.ErrLimit):
		c.JSON(http.StatusConflict, gin.H{"error": "brand_limit"})
	default:
		internalError(c, "brand create failed", err)
	}
}

func (h *Handler) DeleteBrand(c *gin.Context) {
	id, ok := owner(c)
	if !ok {
		return
	}

	err := h.brands.Delete(c.Request.Context(), id.Key(), c.Param("id"))
	if errors.Is(err, brand.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "brand_not_found"})
		return
	}
	if err != nil {
		internalError(c, "brand delete failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, map[string]any{"error": err.Error()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"copycraft/internal/access"
	"copycraft/internal/apikey"
	"copycraft/internal/auth/handler"
	"copycraft/internal/auth/provider"
	"copycraft/internal/auth/provider/google"
	"copycraft/internal/auth/provider/keycloak"
	"copycraft/internal/brand"
	"copycraft/internal/config"
	contenthandler "copycraft/internal/content/handler"
	"copycraft/internal/generate"
	"copycraft/internal/logger"
	"copycraft/internal/metrics"
	"copycraft/internal/middleware"
	"copycraft/internal/session"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := accessStore(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	generator := generate.NewGeminiClient(generate.Config{
		BaseURL:    cfg.Generation.BaseURL,
		Model:      cfg.Generation.Model,
		Timeout:    cfg.Generation.Timeout,
		MaxRetries: cfg.Generation.MaxRetries,
	})

	router, manager, err := newRouter(routerDeps{
		cfg:       cfg,
		providers: registry,
		redis:     infra.Redis.Client,
		store:     store,
		generator: generator,
		metrics:   prometheus.NewRegistry(),
	})
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, func() error {
		manager.Close()
		return infra.Close()
	}, nil
}

// setupProviders registers Google, plus Keycloak when an issuer is set.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	googleProvider, err := google.New(
		ctx,
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURL,
	)
	if err != nil {
		return nil, err
	}

	providers := []provider.OAuthProvider{googleProvider}

	if cfg.Keycloak.Issuer != "" {
		keycloakProvider, err := keycloak.New(
			ctx,
			cfg.Keycloak.Issuer,
			cfg.Keycloak.ClientID,
			cfg.Keycloak.RedirectURL,
			cfg.Keycloak.PublicBaseURL,
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, keycloakProvider)
	}

	return provider.NewRegistry(providers...), nil
}

type routerDeps struct {
	cfg       config.Config
	providers *provider.Registry
	redis     *goredis.Client
	store     access.AuthorizationStore
	generator generate.Generator
	metrics   *prometheus.Registry
}

func newRouter(d routerDeps) (*gin.Engine, *access.Manager, error) {
	cfg := d.cfg

	// ----------------------------
	// Dependencies
	// ----------------------------

	d.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(d.metrics)

	sessionStore := session.NewRedisStore(d.redis)

	cookie := session.CookieOptions{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	policy := access.PolicyStrict
	if cfg.Access.AutoRegister {
		policy = access.PolicyAutoRegister
	}

	manager, err := access.NewManager(cfg.Access.CacheSize, func(sessionID string) *access.SessionAuthorizer {
		return access.New(
			session.NewIdentitySource(sessionID, sessionStore, d.providers, cfg.Session.TTL),
			d.store,
			access.WithPolicy(policy),
			access.WithLookupTimeout(cfg.Access.LookupTimeout),
			access.WithRecorder(m.AccessRecorder()),
			access.WithLogger(logger.L()),
		)
	}, access.WithAdmission(session.Exists(sessionStore)))
	if err != nil {
		return nil, nil, err
	}
	manager.OnResize(func(size int) {
		m.Authorizers.Set(float64(size))
	})

	apiKeys, err := apikey.NewStore(d.redis, cfg.APIKey.Secret)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		d.providers,
		sessionStore,
		manager,
		cookie,
		cfg.Session.TTL,
	)

	contentHandler := contenthandler.NewHandler(
		brand.NewRedisStore(d.redis),
		apiKeys,
		d.generator,
		m,
	)

	authMiddleware := middleware.NewAuthMiddleware(manager, cookie)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.redis.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.metrics, promhttp.HandlerOpts{})))

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	protected := router.Group("/")
	protected.Use(middleware.GinRequireAuth(authMiddleware))

	contentHandler.RegisterRoutes(protected)

	return router, manager, nil
}

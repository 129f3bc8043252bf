package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Haleralex/ledgerflow/internal/adapters/http/middleware"
)

// RouterConfig wires the ambient HTTP concerns: logging, recovery, CORS,
// rate limiting, tracing, and the bearer-token secret the auth middleware
// verifies against.
type RouterConfig struct {
	Logger         *slog.Logger
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	ServiceName    string
}

func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:         slog.Default(),
		Environment:    "development",
		AllowedOrigins: []string{"*"},
		ServiceName:    "ledgerflow-gl",
	}
}

// NewRouter builds the gin engine mounting PeriodHandler under
// /api/v1/periods/:id and, when provided, AccountHandler under
// /api/v1/accounts/:code, both guarded by bearer-token auth. Mirrors the
// composition-root middleware ordering used elsewhere on this platform:
// recovery first, then request id, CORS, logging, rate limiting, metrics,
// and tracing, before any route-specific auth.
func NewRouter(cfg *RouterConfig, periodHandler *PeriodHandler, accountHandler *AccountHandler, healthHandler *HealthHandler) *gin.Engine {
	if cfg == nil {
		cfg = DefaultRouterConfig()
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           cfg.Logger,
		EnableStackTrace: cfg.Environment != "production",
	}))
	router.Use(middleware.RequestID())
	if cfg.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(cfg.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    cfg.Logger,
		SkipPaths: []string{"/health", "/metrics"},
	}))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	router.Use(middleware.Metrics())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	if healthHandler != nil {
		healthHandler.RegisterRoutes(router)
	}

	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(AuthMiddleware(cfg.JWTSecret))

	if periodHandler != nil {
		periodHandler.RegisterRoutes(protected)
	}
	if accountHandler != nil {
		accountHandler.RegisterRoutes(protected)
	}

	return router
}

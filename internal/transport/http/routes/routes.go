package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/infra/config"
	"github.com/frankbria/auto-author-sub001/internal/infra/security"
	"github.com/frankbria/auto-author-sub001/internal/transport/http/handlers"
	"github.com/frankbria/auto-author-sub001/internal/transport/http/middleware"
	"github.com/frankbria/auto-author-sub001/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	Sessions     *usecase.SessionService
	RateLimiter  *middleware.RateLimiter
	HTTPMetrics  *middleware.HTTPMetrics
	Verifier     *security.IDTokenVerifier
	Fingerprints *security.FingerprintGenerator
	Database     DatabaseChecker
	Cache        CacheChecker
}

// DatabaseChecker exposes readiness behaviour for the document database.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for the counter store backend.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. Every
// request passes the rate limiter before the session middleware: the cheap
// stateless check runs ahead of the stateful one.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	sessionMiddleware := middleware.RequireSession(deps.Sessions, deps.Fingerprints)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("mongo", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		defaultRule := middleware.RateLimitRule{
			Name:   "default",
			Limit:  deps.Config.RateLimit.DefaultLimit,
			Window: deps.Config.RateLimit.Window,
		}
		loginRule := middleware.RateLimitRule{
			Name:   "login",
			Limit:  deps.Config.RateLimit.LoginLimit,
			Window: deps.Config.RateLimit.Window,
		}

		if deps.RateLimiter != nil {
			api.Use(deps.RateLimiter.RateLimit(defaultRule))
		}

		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(
			deps.Sessions,
			deps.Verifier,
			deps.Fingerprints,
			deps.Config.App.Env == "production",
		)

		var loginMiddlewares []gin.HandlerFunc
		if deps.RateLimiter != nil {
			loginMiddlewares = append(loginMiddlewares, deps.RateLimiter.RateLimit(loginRule))
		}
		authHandler.RegisterRoutes(authGroup, sessionMiddleware, loginMiddlewares...)

		sessionGroup := api.Group("/sessions")
		sessionGroup.Use(sessionMiddleware)
		handlers.NewSessionHandler(deps.Sessions).RegisterRoutes(sessionGroup)
	}

	return r
}

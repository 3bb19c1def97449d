package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/infra/config"
	"github.com/arklim/kether-core/internal/transport/http/handlers"
	"github.com/arklim/kether-core/internal/transport/http/middleware"
	"github.com/arklim/kether-core/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth        *usecase.AuthService
	Sessions    *usecase.SessionManager
	Ledger      *usecase.LedgerService
	Referrals   *usecase.ReferralService
	Rewards     *usecase.RewardService
	Social      *usecase.SocialService
	Reserve     *usecase.ReserveMonitor
	Tracker     *usecase.TransactionTracker
	AdminGuard  *usecase.AdminGuard
	RateLimiter *usecase.RateLimiter
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Services ServiceSet
	JWKS     handlers.KeySet
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if deps.JWKS != nil {
		r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.JWKS).Keys)
	}

	svc := deps.Services
	if svc.Auth != nil && svc.Sessions != nil {
		registerAPI(r.Group("/api/v1"), deps)
	}

	handlers.RegisterSwagger(r)

	return r
}

func registerAPI(api *gin.RouterGroup, deps Dependencies) {
	svc := deps.Services
	requireSession := middleware.RequireSession(svc.Sessions)

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Sessions)
	authGroup := api.Group("/auth")
	authHandler.RegisterRoutes(authGroup, rateLimit(deps, domain.ActionAuth, middleware.ClientIPKey())...)
	authHandler.RegisterSessionRoutes(authGroup.Group("", requireSession))

	account := api.Group("", requireSession)
	accountHandler := handlers.NewAccountHandler(svc.Ledger, svc.Referrals, svc.Rewards, svc.Social)
	accountHandler.RegisterRoutes(account.Group("", rateLimit(deps, domain.ActionGeneral, middleware.IdentityOrIPKey())...))
	accountHandler.RegisterRewardRoutes(account.Group("", rateLimit(deps, domain.ActionReward, middleware.IdentityOrIPKey())...))
	accountHandler.RegisterSocialRoutes(account.Group("", rateLimit(deps, domain.ActionSocialVerification, middleware.IdentityOrIPKey())...))

	if svc.AdminGuard == nil {
		return
	}
	adminMiddlewares := rateLimit(deps, domain.ActionAdmin, middleware.ClientIPKey())
	adminMiddlewares = append(adminMiddlewares, middleware.RequireAdmin(svc.Sessions, svc.AdminGuard))

	adminHandler := handlers.NewAdminHandler(svc.Reserve, svc.Tracker, svc.Ledger)
	adminHandler.RegisterRoutes(api.Group("/admin", adminMiddlewares...))
}

func rateLimit(deps Dependencies, class domain.ActionClass, key middleware.KeyFunc) []gin.HandlerFunc {
	if deps.Services.RateLimiter == nil {
		return nil
	}
	return []gin.HandlerFunc{middleware.RateLimit(deps.Services.RateLimiter, class, key, deps.Logger)}
}

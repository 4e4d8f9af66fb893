package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/infra/config"
	"github.com/arklim/workspace-directory/internal/transport/http/handlers"
	"github.com/arklim/workspace-directory/internal/transport/http/middleware"
	"github.com/arklim/workspace-directory/internal/usecase"
)

const defaultRateWindow = time.Minute

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Directory   *usecase.DirectoryService
	Verifier    middleware.AccessTokenVerifier
	HTTPMetrics *middleware.HTTPMetrics
	Metrics     http.Handler
	Tracer      trace.Tracer
	Database    DatabaseChecker
	Cache       CacheChecker
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

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(deps.Tracer))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := []handlers.HealthOption{handlers.WithHealthLogger(deps.Logger)}
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	directory := handlers.NewDirectoryHandler(deps.Directory)
	authMiddleware := middleware.RequireAuth(deps.Verifier)
	rl := deps.Config.RateLimit

	api := r.Group("/api/v1/directory")
	{
		// Public routes. The token or the password is the credential.
		api.POST("/invitations/accept",
			withRateLimit(deps, "invite_accept_ip", rl.AcceptMaxAttempts, middleware.ClientIPIdentifier(), directory.AcceptInvite)...)
		api.POST("/register",
			withRateLimit(deps, "register_ip", rl.RegisterMaxAttempts, middleware.ClientIPIdentifier(), directory.Register)...)

		authed := api.Group("")
		authed.Use(authMiddleware)

		authed.GET("/users", directory.ListUsers)
		authed.POST("/users", directory.CreateUser)
		authed.POST("/invitations",
			withRateLimit(deps, "invite_actor", rl.InviteMaxAttempts, middleware.ActorIdentifier(), directory.Invite)...)
		authed.GET("/scopes/:scope/invitations", directory.ListScopeInvitations)
		authed.POST("/role-assignments", directory.AssignRole)
		authed.POST("/access-requests", directory.RequestAccess)
	}

	return r
}

// withRateLimit prepends a sliding-window limiter to handler when a limit is configured.
func withRateLimit(deps Dependencies, name string, limit int, identifier middleware.IdentifierFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return []gin.HandlerFunc{handler}
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = defaultRateWindow
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: identifier,
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule), handler}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/config"
	"github.com/arklim/workspace-directory/internal/infra/database"
	kafkainfra "github.com/arklim/workspace-directory/internal/infra/kafka"
	"github.com/arklim/workspace-directory/internal/infra/logger"
	"github.com/arklim/workspace-directory/internal/infra/notification"
	redisinfra "github.com/arklim/workspace-directory/internal/infra/redis"
	"github.com/arklim/workspace-directory/internal/infra/security"
	"github.com/arklim/workspace-directory/internal/infra/telemetry"
	"github.com/arklim/workspace-directory/internal/repository/memory"
	postgresrepo "github.com/arklim/workspace-directory/internal/repository/postgres"
	"github.com/arklim/workspace-directory/internal/repository/rbac"
	redisrepo "github.com/arklim/workspace-directory/internal/repository/redis"
	"github.com/arklim/workspace-directory/internal/transport/http/middleware"
	"github.com/arklim/workspace-directory/internal/transport/http/routes"
	"github.com/arklim/workspace-directory/internal/usecase"
)

const (
	httpTracerName  = "github.com/arklim/workspace-directory/internal/transport/http"
	shutdownTimeout = 10 * time.Second
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	closers  []func(context.Context) error
	services *Services
}

// Services is the wired object graph, exposed for the CLI and tests.
type Services struct {
	Directory   *usecase.DirectoryService
	Accounts    port.AccountDirectory
	Policies    port.PolicyStore
	Invitations port.InvitationStore
	Requests    port.AccessRequestStore
	RateLimits  port.RateLimitStore
	Events      port.EventPublisher
	Metrics     *telemetry.Provider
}

type stores struct {
	accounts    port.AccountDirectory
	policies    port.PolicyStore
	authorizer  port.ScopeAuthorizer
	invitations port.InvitationStore
	requests    port.AccessRequestStore
	rateLimits  port.RateLimitStore
}

func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	metrics, err := telemetry.Attach(cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, tracerProvider.Shutdown)

	var (
		pool        *pgxpool.Pool
		redisClient *redisinfra.Client
	)

	st := stores{}
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

		repos := postgresrepo.NewRepositories(pool)
		st.accounts = repos.Accounts
		st.invitations = repos.Invitations
		st.requests = repos.AccessRequests
		st.policies = repos.Policies
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		st.accounts = memory.NewAccountDirectory()
		st.invitations = memory.NewInvitationStore()
		st.requests = memory.NewAccessRequestStore()
		st.policies = memory.NewPolicyStore()
	}

	if cfg.Policy.Backend == config.PolicyBackendCasbin {
		enforcer, err := rbac.NewPolicyStore()
		if err != nil {
			return nil, fmt.Errorf("init casbin policy store: %w", err)
		}
		for _, role := range cfg.Directory.ManagingRoles {
			if err := enforcer.AllowRole(role, usecase.ManagedObject, usecase.ManageAction); err != nil {
				return nil, fmt.Errorf("seed casbin policy for %s: %w", role, err)
			}
		}
		st.policies = enforcer
		st.authorizer = enforcer
	}

	st.rateLimits = memory.NewRateLimitStore()
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })

		st.rateLimits = redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix)
		st.requests = redisrepo.NewAccessRequestRepository(redisClient.Client(), cfg.Redis.AccessRequestPrefix)

		if metrics.Enabled() {
			if err := redisClient.RegisterPoolMetrics(metrics.Registerer()); err != nil {
				return nil, err
			}
		}
	}

	events, err := a.newEventPublisher(cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	directory := usecase.NewDirectoryService(st.accounts, st.policies, st.invitations,
		usecase.WithLogger(log),
		usecase.WithNotifier(notification.NewLoggingNotifier(log)),
		usecase.WithEventPublisher(events),
		usecase.WithAccessRequests(st.requests),
		usecase.WithMetrics(metrics),
		usecase.WithPasswordHasher(hasher),
		usecase.WithPasswordPolicy(security.DefaultPasswordValidator()),
		usecase.WithInvitationTTL(cfg.Directory.InvitationTTL),
		usecase.WithInviteLinkBase(cfg.Directory.InviteLinkBase),
		usecase.WithPageSize(cfg.Directory.ListPageSize),
		usecase.WithOwnerRole(cfg.Directory.OwnerRole),
		usecase.WithManagingRoles(cfg.Directory.ManagingRoles...),
		usecase.WithScopeAuthorizer(st.authorizer),
	)

	verifier, err := newVerifier(cfg.JWT, log)
	if err != nil {
		return nil, err
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(st.rateLimits, log),
		Directory:   directory,
		Verifier:    verifier,
	}
	if pool != nil {
		deps.Database = pool
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}
	if tracerProvider.Enabled() {
		deps.Tracer = tracerProvider.Tracer(httpTracerName)
	}
	if metrics.Enabled() {
		httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: metrics.Registerer()})
		if err != nil {
			return nil, fmt.Errorf("init http metrics: %w", err)
		}
		deps.HTTPMetrics = httpMetrics
		deps.Metrics = metrics.Handler()
	}

	a.engine = routes.Register(deps)
	a.services = &Services{
		Directory:   directory,
		Accounts:    st.accounts,
		Policies:    st.policies,
		Invitations: st.invitations,
		Requests:    st.requests,
		RateLimits:  st.rateLimits,
		Events:      events,
		Metrics:     metrics,
	}

	log.Info("directory wired",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("policy_backend", cfg.Policy.Backend),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("tracing", tracerProvider.Enabled()),
		zap.Bool("metrics", metrics.Enabled()),
	)

	return a, nil
}

func (a *Application) newEventPublisher(cfg *config.AppConfig) (port.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger), nil
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger), nil
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })

	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, a.logger), nil
}

// newVerifier returns nil when no key directory is configured; protected
// routes then answer 500 instead of trusting unverified tokens.
func newVerifier(cfg config.JWTSettings, log *zap.Logger) (middleware.AccessTokenVerifier, error) {
	if cfg.KeyDirectory == "" {
		log.Warn("jwt key directory not configured, authenticated routes are disabled")
		return nil, nil
	}

	keys, err := security.NewFileKeyProvider(cfg.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	return security.NewJWTManager(keys, cfg.Issuer, cfg.Audience), nil
}

// Engine exposes the HTTP handler, mainly for tests.
func (a *Application) Engine() http.Handler {
	return a.engine
}

// Services exposes the wired stores and service.
func (a *Application) Services() *Services {
	return a.services
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting directory API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		a.close(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		a.close(context.Background())
		return err
	}
}

// close releases resources in reverse order of acquisition.
func (a *Application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// Migrate applies the embedded schema migrations to the configured database.
func Migrate(ctx context.Context, cfg *config.AppConfig) ([]string, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	defer pool.Close()

	applied, err := postgresrepo.Migrate(ctx, pool)
	if err != nil {
		return applied, fmt.Errorf("migrate: %w", err)
	}

	log.Info("migrations applied", zap.Strings("applied", applied))
	return applied, nil
}

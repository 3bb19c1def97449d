package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/chain"
	"github.com/arklim/kether-core/internal/infra/config"
	"github.com/arklim/kether-core/internal/infra/database"
	kafkainfra "github.com/arklim/kether-core/internal/infra/kafka"
	"github.com/arklim/kether-core/internal/infra/logger"
	redisinfra "github.com/arklim/kether-core/internal/infra/redis"
	"github.com/arklim/kether-core/internal/infra/security"
	"github.com/arklim/kether-core/internal/infra/social"
	"github.com/arklim/kether-core/internal/infra/telemetry"
	postgresrepo "github.com/arklim/kether-core/internal/repository/postgres"
	redisrepo "github.com/arklim/kether-core/internal/repository/redis"
	"github.com/arklim/kether-core/internal/transport/http/middleware"
	"github.com/arklim/kether-core/internal/transport/http/routes"
	"github.com/arklim/kether-core/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	chain    *chain.Client
	producer *kafkainfra.Producer
	tracing  *telemetry.TracerProvider
	sweeper  *usecase.ReconciliationSweeper
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

	a.tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	a.redis, err = redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	a.chain, err = chain.Dial(ctx, cfg.Chain, log,
		chain.WithTracerProvider(a.tracing.TracerProvider()),
		chain.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("init chain client: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider, cfg.JWT.Issuer, cfg.JWT.SessionTTL)

	// Initialize Kafka event publisher
	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		a.producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
			err = nil
		} else {
			events = kafkainfra.NewEventPublisher(a.producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	var verifier port.OwnershipVerifier = social.DenyVerifier{}
	if cfg.Social.VerifierURL != "" {
		verifier = social.NewHTTPVerifier(cfg.Social.VerifierURL, cfg.Social.VerifierTimeout, nil, log)
	} else {
		log.Warn("social verifier not configured, every social claim will be rejected")
	}

	policy := domain.DefaultFailurePolicy().WithOverrides(cfg.FailurePolicy)

	repos := postgresrepo.NewRepositories(a.pool)
	uow := postgresrepo.NewUnitOfWork(a.pool, repos)

	rc := a.redis.Client()
	challenges := redisrepo.NewChallengeRepository(rc, a.redis.KeyPrefix("challenge"))
	revocations := redisrepo.NewSessionRevocationStore(rc, a.redis.KeyPrefix("session:revoked"))
	windows := redisrepo.NewRateLimitRepository(rc, a.redis.KeyPrefix("rate"))
	suspicious := redisrepo.NewSuspiciousActivityRepository(rc, a.redis.KeyPrefix("suspicious"))
	claimLocks := redisrepo.NewClaimLockRepository(rc, a.redis.KeyPrefix("claim"))

	risk := usecase.NewRiskEngine(repos.RiskSignals, suspicious, policy, metrics, log)
	sessions := usecase.NewSessionManager(jwtManager, revocations, policy, metrics, log)
	referrals := usecase.NewReferralService(uow, repos.Identities, repos.Referrals, repos.Ledger, events, log)
	authService := usecase.NewAuthService(cfg.Auth, challenges, repos.Identities, referrals, sessions, risk, metrics, log)
	ledger := usecase.NewLedgerService(uow, repos.Ledger, repos.Identities, events, metrics, log)
	rewards := usecase.NewRewardService(ledger, claimLocks, cfg.Rewards, log)
	socialService := usecase.NewSocialService(verifier, repos.SocialLinks, risk, ledger, cfg.Social, log)
	reserve := usecase.NewReserveMonitor(uow, repos.Reserve, a.chain, events, cfg.Reserve.BalanceTTL, metrics, log)
	tracker := usecase.NewTransactionTracker(uow, repos.Transactions, repos.Ledger, a.chain, events, metrics, log)
	limiter := usecase.NewRateLimiter(windows, usecase.RateLimitPoliciesFromConfig(cfg.RateLimit), policy, metrics, log)
	adminGuard := usecase.NewAdminGuard(suspicious, events, cfg.Admin, policy, metrics, log)

	if cfg.Reconciliation.Enabled {
		a.sweeper = usecase.NewReconciliationSweeper(tracker, repos.Ledger, cfg.Reconciliation, log)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: registry,
		JWKS:     jwtManager,
		Database: a.pool,
		Cache:    a.redis,
		Services: routes.ServiceSet{
			Auth:        authService,
			Sessions:    sessions,
			Ledger:      ledger,
			Referrals:   referrals,
			Rewards:     rewards,
			Social:      socialService,
			Reserve:     reserve,
			Tracker:     tracker,
			AdminGuard:  adminGuard,
			RateLimiter: limiter,
		},
	})

	return a, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	if a.sweeper != nil {
		go a.sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting Kether API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.Bool("reconciliation", a.sweeper != nil),
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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases everything New opened, in reverse order.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
	}
}

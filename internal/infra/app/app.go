package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/port"
	"github.com/frankbria/auto-author-sub001/internal/infra/config"
	"github.com/frankbria/auto-author-sub001/internal/infra/database"
	kafkainfra "github.com/frankbria/auto-author-sub001/internal/infra/kafka"
	"github.com/frankbria/auto-author-sub001/internal/infra/logger"
	redisinfra "github.com/frankbria/auto-author-sub001/internal/infra/redis"
	"github.com/frankbria/auto-author-sub001/internal/infra/security"
	"github.com/frankbria/auto-author-sub001/internal/infra/telemetry"
	"github.com/frankbria/auto-author-sub001/internal/repository/memory"
	mongorepo "github.com/frankbria/auto-author-sub001/internal/repository/mongo"
	redisrepo "github.com/frankbria/auto-author-sub001/internal/repository/redis"
	"github.com/frankbria/auto-author-sub001/internal/transport/http/middleware"
	"github.com/frankbria/auto-author-sub001/internal/transport/http/routes"
	"github.com/frankbria/auto-author-sub001/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	mongo    *database.Mongo
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	fallback *memory.CounterStore
	sessions *usecase.SessionService
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.TracingEnabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	mongoDB, err := database.NewMongo(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, fmt.Errorf("init mongo: %w", err)
	}

	sessionStore := mongorepo.NewSessionRepository(mongoDB.Database())
	if err := sessionStore.EnsureIndexes(ctx); err != nil {
		_ = mongoDB.Close(ctx)
		return nil, fmt.Errorf("ensure session indexes: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		_ = mongoDB.Close(ctx)
		return nil, fmt.Errorf("init redis: %w", err)
	}

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	sessions := usecase.NewSessionService(sessionStore, eventPublisher, usecase.SessionConfig{
		AbsoluteTimeout:            cfg.Session.AbsoluteTimeout,
		IdleTimeout:                cfg.Session.IdleTimeout,
		MaxConcurrentSessions:      cfg.Session.MaxConcurrentSessions,
		SuspiciousRequestThreshold: cfg.Session.SuspiciousRequestThreshold,
		StoreTimeout:               cfg.Session.StoreTimeout,
		CleanupRetention:           cfg.Session.CleanupRetention,
	}, log)

	primaryCounters := redisrepo.NewCounterRepository(redisClient.Client(), "ratelimit")
	fallbackCounters := memory.NewCounterStore(cfg.RateLimit.FallbackMaxKeys)

	rateLimits := usecase.NewRateLimitService(primaryCounters, fallbackCounters, usecase.RateLimitConfig{
		StoreTimeout: cfg.RateLimit.StoreTimeout,
	}, log)

	rateLimitMetrics, err := usecase.NewRateLimitMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Warn("failed to register rate limit metrics", zap.Error(err))
	} else {
		rateLimits.WithMetrics(rateLimitMetrics)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  "autoauthor",
	})
	if err != nil {
		log.Warn("failed to register http metrics", zap.Error(err))
		httpMetrics = nil
	}

	verifier, err := security.NewIDTokenVerifier(cfg.Identity.TokenSecret, cfg.Identity.Issuer)
	if err != nil {
		_ = redisClient.Close()
		_ = mongoDB.Close(ctx)
		return nil, fmt.Errorf("init identity verifier: %w", err)
	}

	fingerprints := security.NewFingerprintGenerator()
	rateLimiter := middleware.NewRateLimiter(rateLimits, log)

	engine := routes.Register(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		Sessions:     sessions,
		RateLimiter:  rateLimiter,
		HTTPMetrics:  httpMetrics,
		Verifier:     verifier,
		Fingerprints: fingerprints,
		Database:     mongoDB,
		Cache:        redisClient,
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		mongo:    mongoDB,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
		fallback: fallbackCounters,
		sessions: sessions,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.mongo != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.mongo.Close(closeCtx)
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	go a.fallback.Run(ctx, a.cfg.RateLimit.Window)
	go a.runCleanupSweeper(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting session API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// runCleanupSweeper hard-deletes long-deactivated sessions on a fixed
// interval so the collection does not grow without bound.
func (a *Application) runCleanupSweeper(ctx context.Context) {
	interval := a.cfg.Session.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.sessions.CleanupExpired(ctx)
			if err != nil {
				a.logger.Warn("session cleanup sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				a.logger.Info("session cleanup sweep completed", zap.Int("removed", removed))
			}
		}
	}
}

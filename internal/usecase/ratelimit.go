package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/core/port"
)

// RateLimitConfig tunes the fixed-window limiter.
type RateLimitConfig struct {
	// StoreTimeout bounds each call to the primary store; a slow shared
	// store degrades to the fallback instead of stalling the request.
	StoreTimeout time.Duration
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 500 * time.Millisecond
	}
	return c
}

// RateLimitMetrics exposes Prometheus collectors for limiter decisions.
type RateLimitMetrics struct {
	Decisions *prometheus.CounterVec
	Fallbacks prometheus.Counter
}

// NewRateLimitMetrics registers limiter collectors with the registerer.
func NewRateLimitMetrics(reg prometheus.Registerer) (*RateLimitMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoauthor",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions partitioned by outcome and backend.",
	}, []string{"outcome", "backend"})

	if err := registerCounterVec(reg, &decisions); err != nil {
		return nil, err
	}

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoauthor",
		Subsystem: "ratelimit",
		Name:      "fallbacks_total",
		Help:      "Times the shared counter store was unreachable and the per-process fallback served the decision.",
	})

	if err := reg.Register(fallbacks); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				fallbacks = existing
			} else {
				return nil, fmt.Errorf("existing fallbacks collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register fallbacks collector: %w", err)
		}
	}

	return &RateLimitMetrics{Decisions: decisions, Fallbacks: fallbacks}, nil
}

func registerCounterVec(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	if err := reg.Register(*vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				*vec = existing
				return nil
			}
			return fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// RateLimitService enforces per-(client, endpoint) fixed-window quotas.
// The primary store is shared across worker processes; when it is
// unreachable the service degrades to the per-process fallback rather than
// failing the request. No internal error ever reaches the caller.
type RateLimitService struct {
	primary  port.CounterStore
	fallback port.CounterStore
	logger   *zap.Logger
	metrics  *RateLimitMetrics
	cfg      RateLimitConfig
	now      func() time.Time
}

// NewRateLimitService constructs the limiter from its two backends.
func NewRateLimitService(primary, fallback port.CounterStore, cfg RateLimitConfig, log *zap.Logger) *RateLimitService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitService{
		primary:  primary,
		fallback: fallback,
		logger:   log,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *RateLimitService) WithClock(clock func() time.Time) *RateLimitService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics attaches Prometheus collectors for limiter decisions.
func (s *RateLimitService) WithMetrics(metrics *RateLimitMetrics) *RateLimitService {
	s.metrics = metrics
	return s
}

// Check applies the fixed-window counter for the (client, endpoint) pair.
// Different endpoints keep independent budgets for the same caller and
// different callers never share one.
func (s *RateLimitService) Check(ctx context.Context, clientKey, endpoint string, limit int, window time.Duration) domain.RateLimitResult {
	now := s.now()

	if limit <= 0 || window <= 0 {
		return domain.RateLimitResult{Allowed: true, Limit: limit, ResetAt: now.Add(window)}
	}

	key := fmt.Sprintf("%s:%s", endpoint, clientKey)

	count, resetAt, degraded := s.increment(ctx, key, window, now)

	result := domain.RateLimitResult{
		Limit:    limit,
		ResetAt:  resetAt,
		Degraded: degraded,
	}

	backend := "primary"
	if degraded {
		backend = "fallback"
	}

	if count > int64(limit) {
		result.Allowed = false
		result.Remaining = 0
		result.RetryAfter = resetAt.Sub(now)
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
		s.countDecision("denied", backend)
		return result
	}

	result.Allowed = true
	result.Remaining = limit - int(count)
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	s.countDecision("allowed", backend)
	return result
}

// increment tries the primary store under a short deadline and degrades to
// the per-process fallback on any failure. The fallback itself cannot fail;
// if it somehow does, the request is allowed through: rate limiting must
// never produce a 5xx.
func (s *RateLimitService) increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, bool) {
	if s.primary != nil {
		primaryCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		count, resetAt, err := s.primary.IncrementWithExpiry(primaryCtx, key, window, now)
		cancel()
		if err == nil {
			return count, resetAt, false
		}

		s.logger.Warn("primary counter store failed, using per-process fallback",
			zap.String("key", key),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.Fallbacks.Inc()
		}
	}

	if s.fallback != nil {
		count, resetAt, err := s.fallback.IncrementWithExpiry(ctx, key, window, now)
		if err == nil {
			return count, resetAt, true
		}
		s.logger.Error("fallback counter store failed, allowing request", zap.Error(err))
	}

	return 1, now.Add(window), true
}

func (s *RateLimitService) countDecision(outcome, backend string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Decisions.WithLabelValues(outcome, backend).Inc()
}

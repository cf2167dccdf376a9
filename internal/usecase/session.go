package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/core/port"
	"github.com/frankbria/auto-author-sub001/internal/infra/logger"
	"github.com/frankbria/auto-author-sub001/internal/infra/security"
	"github.com/frankbria/auto-author-sub001/internal/repository"
)

var (
	// ErrSessionNotFound indicates the session is absent or already terminated.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session's absolute lifetime has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionStoreUnavailable indicates the session store could not be
	// reached; callers must treat the request as unauthenticated.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
)

const (
	sessionTokenBytes = 32
	csrfTokenBytes    = 24
	// idleWarningFraction is the share of the idle timeout after which the
	// status view starts warning.
	idleWarningFraction = 0.8
)

// SessionConfig tunes the lifecycle manager. Zero values select the
// production defaults.
type SessionConfig struct {
	AbsoluteTimeout            time.Duration
	IdleTimeout                time.Duration
	MaxConcurrentSessions      int
	SuspiciousRequestThreshold float64
	StoreTimeout               time.Duration
	CleanupRetention           time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.AbsoluteTimeout <= 0 {
		c.AbsoluteTimeout = 12 * time.Hour
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = 5
	}
	if c.SuspiciousRequestThreshold <= 0 {
		c.SuspiciousRequestThreshold = 100
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.CleanupRetention < 0 {
		c.CleanupRetention = 0
	}
	return c
}

// SessionService owns the session lifecycle: creation with a bounded
// concurrency budget, per-request validation with advisory hijack and abuse
// detection, refresh, termination, and the expired-session sweep.
type SessionService struct {
	store  port.SessionStore
	events port.EventPublisher
	logger *zap.Logger
	cfg    SessionConfig
	now    func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store port.SessionStore, events port.EventPublisher, cfg SessionConfig, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		store:  store,
		events: events,
		logger: log,
		cfg:    cfg.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create establishes a new session for an authenticated user. When the user
// already holds the maximum number of active sessions, the oldest one is
// silently evicted first; being at the limit is never an error. Availability
// wins over strict quota rejection here.
func (s *SessionService) Create(ctx context.Context, userID, externalSessionID string, meta domain.SessionMetadata) (*domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	now := s.now()

	if err := s.enforceSessionBudget(ctx, userID, now); err != nil {
		return nil, err
	}

	sessionID, err := security.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	csrfToken, err := security.GenerateSecureToken(csrfTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate csrf token: %w", err)
	}

	session := domain.Session{
		ID:                sessionID,
		CSRFToken:         csrfToken,
		UserID:            userID,
		ExternalSessionID: externalSessionID,
		Metadata:          meta,
		CreatedAt:         now,
		LastActivity:      now,
		ExpiresAt:         now.Add(s.cfg.AbsoluteTimeout),
		State:             domain.SessionStateActive,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.Insert(storeCtx, session); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}

	s.publishCreated(ctx, session)

	s.logger.Info("session created",
		zap.String("session_id", logger.MaskString(session.ID)),
		zap.String("user_id", userID),
		zap.String("client_ip", logger.MaskIP(meta.IPAddress)),
		zap.String("device_type", string(meta.DeviceType)),
	)

	return &session, nil
}

// Validate runs the per-request session state machine: lazy expiry, advisory
// fingerprint and abuse-rate checks, then the unconditional activity touch.
// Suspicion raised during this call is merged into the returned session even
// when the persisting write races or fails, so callers always observe it.
func (s *SessionService) Validate(ctx context.Context, sessionID string, current domain.SessionMetadata, path string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	now := s.now()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	session, err := s.store.Get(storeCtx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("session lookup failed, treating as unauthenticated",
			zap.String("session_id", logger.MaskString(sessionID)),
			zap.Error(err),
		)
		return nil, ErrSessionStoreUnavailable
	}

	if session.State != domain.SessionStateActive {
		return nil, ErrSessionNotFound
	}

	if !now.Before(session.ExpiresAt) {
		// Lazy expiry: deactivate as a side effect, best effort.
		if _, err := s.store.Deactivate(storeCtx, sessionID, domain.SessionStateExpired, now); err != nil {
			s.logger.Warn("deactivate expired session failed",
				zap.String("session_id", logger.MaskString(sessionID)),
				zap.Error(err),
			)
		}
		return nil, ErrSessionExpired
	}

	// Idle sessions stay valid until absolute expiry; idleness only surfaces
	// as a warning in the status view.

	if current.Fingerprint != "" && session.Metadata.Fingerprint != "" && current.Fingerprint != session.Metadata.Fingerprint {
		s.flagSuspicious(ctx, storeCtx, session, domain.SuspicionReasonFingerprintMismatch, now)
	}

	if session.RequestsPerMinute(now) > s.cfg.SuspiciousRequestThreshold {
		s.flagSuspicious(ctx, storeCtx, session, domain.SuspicionReasonAbnormalRequestRate, now)
	}

	// Touch always happens last, regardless of suspicion. Last-writer-wins
	// on these telemetry fields is acceptable, so a failed touch does not
	// fail the request.
	if err := s.store.UpdateActivity(storeCtx, sessionID, now, path); err != nil {
		s.logger.Warn("update session activity failed",
			zap.String("session_id", logger.MaskString(sessionID)),
			zap.Error(err),
		)
	}

	session.LastActivity = now
	session.RequestCount++

	return session, nil
}

// Refresh extends the session's absolute lifetime from now. Inactive or
// expired sessions are not resurrected.
func (s *SessionService) Refresh(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	now := s.now()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	session, err := s.store.Get(storeCtx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrSessionStoreUnavailable
	}

	if !session.IsActive(now) {
		return nil, ErrSessionNotFound
	}

	expiresAt := now.Add(s.cfg.AbsoluteTimeout)
	extended, err := s.store.ExtendExpiry(storeCtx, sessionID, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}
	if !extended {
		return nil, ErrSessionNotFound
	}

	session.ExpiresAt = expiresAt
	session.LastActivity = now

	return session, nil
}

// End soft-deactivates a single session (logout). Returns false when the
// session was already inactive or absent.
func (s *SessionService) End(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}

	now := s.now()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	session, err := s.store.Get(storeCtx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, ErrSessionStoreUnavailable
	}

	ended, err := s.store.Deactivate(storeCtx, sessionID, domain.SessionStateLoggedOut, now)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}

	if ended {
		s.publishRevoked(ctx, domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			SessionID: sessionID,
			UserID:    session.UserID,
			State:     domain.SessionStateLoggedOut,
			RevokedAt: now,
			Reason:    "user_logout",
		})
	}

	return ended, nil
}

// EndAll soft-deactivates every active session for the user, sparing
// exceptSessionID when non-empty. Used for "log out everywhere" flows.
func (s *SessionService) EndAll(ctx context.Context, userID, exceptSessionID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id is required")
	}

	now := s.now()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	count, err := s.store.DeactivateAll(storeCtx, userID, exceptSessionID, domain.SessionStateLoggedOut, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}

	if count > 0 {
		s.publishRevoked(ctx, domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			UserID:    userID,
			State:     domain.SessionStateLoggedOut,
			RevokedAt: now,
			Reason:    "logout_all",
		})
	}

	s.logger.Info("sessions terminated for user",
		zap.String("user_id", userID),
		zap.Int("count", count),
	)

	return count, nil
}

// ListActive returns the user's active sessions, newest first.
func (s *SessionService) ListActive(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	sessions, err := s.store.ListActive(storeCtx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}
	return sessions, nil
}

// GetStatus returns the purely informational status projection for a
// session: idle time, time to expiry, and the idle warning that trips at 80%
// of the idle timeout. It never mutates state.
func (s *SessionService) GetStatus(ctx context.Context, sessionID string) (*domain.SessionStatus, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	session, err := s.store.Get(storeCtx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrSessionStoreUnavailable
	}

	now := s.now()
	idle := session.IdleDuration(now)

	state := session.State
	if state == domain.SessionStateActive && !now.Before(session.ExpiresAt) {
		state = domain.SessionStateExpired
	}

	expiresIn := session.ExpiresAt.Sub(now)
	if expiresIn < 0 {
		expiresIn = 0
	}

	warnAfter := time.Duration(float64(s.cfg.IdleTimeout) * idleWarningFraction)

	return &domain.SessionStatus{
		SessionID:    session.ID,
		UserID:       session.UserID,
		State:        state,
		Suspicious:   session.Suspicious,
		IdleSeconds:  int64(idle.Seconds()),
		ExpiresIn:    expiresIn,
		IdleWarning:  idle >= warnAfter,
		LastActivity: session.LastActivity,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// CleanupExpired hard-deletes sessions whose expiry has been past the
// retention grace period. An external scheduler drives this; correctness
// never depends on it because validation expires lazily.
func (s *SessionService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.CleanupRetention)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	count, err := s.store.DeleteExpired(storeCtx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}

	if count > 0 {
		s.logger.Info("expired sessions deleted", zap.Int("count", count))
	}

	return count, nil
}

// enforceSessionBudget evicts the oldest active sessions until the user is
// below the concurrency budget. Eviction order is deterministic: ascending
// creation time, ties broken by session id, so two racing creations pick the
// same victim. A transient over-budget window from a race is accepted and
// self-corrects on the next creation.
func (s *SessionService) enforceSessionBudget(ctx context.Context, userID string, now time.Time) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	count, err := s.store.CountActive(storeCtx, userID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}
	if count < s.cfg.MaxConcurrentSessions {
		return nil
	}

	sessions, err := s.store.ListActive(storeCtx, userID, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	evictions := len(sessions) - s.cfg.MaxConcurrentSessions + 1
	for i := 0; i < evictions && i < len(sessions); i++ {
		victim := sessions[i]
		evicted, err := s.store.Deactivate(storeCtx, victim.ID, domain.SessionStateEvicted, now)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrSessionStoreUnavailable, err)
		}
		if !evicted {
			continue
		}

		s.publishEvicted(ctx, domain.SessionEvictedEvent{
			EventID:          uuid.NewString(),
			SessionID:        victim.ID,
			UserID:           userID,
			EvictedAt:        now,
			SessionCreatedAt: victim.CreatedAt,
		})

		s.logger.Info("oldest session evicted to stay within budget",
			zap.String("session_id", logger.MaskString(victim.ID)),
			zap.String("user_id", userID),
			zap.Time("session_created_at", victim.CreatedAt),
		)
	}

	return nil
}

// flagSuspicious records an advisory suspicion reason. Detection never
// blocks the request; a mobile network changing IP mid-session must not lock
// a legitimate user out.
func (s *SessionService) flagSuspicious(ctx, storeCtx context.Context, session *domain.Session, reason string, now time.Time) {
	if !session.MarkSuspicious(reason) {
		return
	}

	if err := s.store.FlagSuspicious(storeCtx, session.ID, reason); err != nil {
		s.logger.Warn("persist suspicion flag failed",
			zap.String("session_id", logger.MaskString(session.ID)),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}

	if s.events != nil {
		event := domain.SessionSuspiciousEvent{
			EventID:   uuid.NewString(),
			SessionID: session.ID,
			UserID:    session.UserID,
			Reason:    reason,
			IPAddress: session.Metadata.IPAddress,
			FlaggedAt: now,
		}
		if err := s.events.PublishSessionSuspicious(ctx, event); err != nil {
			s.logger.Warn("publish suspicious event failed", zap.Error(err))
		}
	}

	s.logger.Warn("session flagged suspicious",
		zap.String("session_id", logger.MaskString(session.ID)),
		zap.String("user_id", session.UserID),
		zap.String("reason", reason),
	)
}

func (s *SessionService) publishCreated(ctx context.Context, session domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.SessionCreatedEvent{
		EventID:    uuid.NewString(),
		SessionID:  session.ID,
		UserID:     session.UserID,
		IPAddress:  session.Metadata.IPAddress,
		DeviceType: session.Metadata.DeviceType,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
	}
	if err := s.events.PublishSessionCreated(ctx, event); err != nil {
		s.logger.Warn("publish session created event failed", zap.Error(err))
	}
}

func (s *SessionService) publishEvicted(ctx context.Context, event domain.SessionEvictedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionEvicted(ctx, event); err != nil {
		s.logger.Warn("publish session evicted event failed", zap.Error(err))
	}
}

func (s *SessionService) publishRevoked(ctx context.Context, event domain.SessionRevokedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked event failed", zap.Error(err))
	}
}

func (s *SessionService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

package port

import (
	"context"
	"time"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

// SessionStore deals with session persistence. Implementations must treat
// every operation as a single-document atomic write; no multi-key
// transactions are assumed by callers.
type SessionStore interface {
	Insert(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListActive returns active sessions for the user ordered by creation
	// time descending. A non-positive limit means no limit.
	ListActive(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	CountActive(ctx context.Context, userID string) (int, error)
	// UpdateActivity bumps last activity and increments the request counter.
	UpdateActivity(ctx context.Context, sessionID string, at time.Time, path string) error
	// ExtendExpiry moves an active session's expiry forward and refreshes
	// last activity. Returns false when the session is no longer active.
	ExtendExpiry(ctx context.Context, sessionID string, expiresAt, at time.Time) (bool, error)
	// Deactivate moves an active session to the supplied terminal state.
	// Returns false when the session was already inactive or absent.
	Deactivate(ctx context.Context, sessionID string, state domain.SessionState, at time.Time) (bool, error)
	// DeactivateAll terminates every active session for the user, skipping
	// exceptSessionID when non-empty. Returns the number deactivated.
	DeactivateAll(ctx context.Context, userID, exceptSessionID string, state domain.SessionState, at time.Time) (int, error)
	// DeleteExpired hard-deletes sessions whose expiry predates the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
	FlagSuspicious(ctx context.Context, sessionID, reason string) error
}

package port

import (
	"context"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

// EventPublisher delivers session lifecycle events to downstream consumers
// (alerting, audit, step-up-auth policy). Publishing is best effort; callers
// log failures and continue.
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionEvicted(ctx context.Context, event domain.SessionEvictedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishSessionSuspicious(ctx context.Context, event domain.SessionSuspiciousEvent) error
}

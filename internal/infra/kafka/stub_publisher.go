package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/core/port"
	"github.com/frankbria/auto-author-sub001/internal/infra/logger"
)

// StubPublisher logs session events instead of producing to Kafka. It is
// selected when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (s *StubPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	s.logger.Info("stub: session created event",
		zap.String("session_id", event.SessionID),
		zap.String("user_id", event.UserID),
		zap.String("ip_address", logger.MaskIP(event.IPAddress)),
	)
	return nil
}

func (s *StubPublisher) PublishSessionEvicted(_ context.Context, event domain.SessionEvictedEvent) error {
	s.logger.Info("stub: session evicted event",
		zap.String("session_id", event.SessionID),
		zap.String("user_id", event.UserID),
		zap.String("replaced_by", event.ReplacedBy),
	)
	return nil
}

func (s *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	s.logger.Info("stub: session revoked event",
		zap.String("session_id", event.SessionID),
		zap.String("user_id", event.UserID),
		zap.String("state", string(event.State)),
		zap.String("reason", event.Reason),
	)
	return nil
}

func (s *StubPublisher) PublishSessionSuspicious(_ context.Context, event domain.SessionSuspiciousEvent) error {
	s.logger.Warn("stub: session suspicious event",
		zap.String("session_id", event.SessionID),
		zap.String("user_id", event.UserID),
		zap.String("reason", event.Reason),
		zap.String("ip_address", logger.MaskIP(event.IPAddress)),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

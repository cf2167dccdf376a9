package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/core/port"
	"github.com/frankbria/auto-author-sub001/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionCreated publishes session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID  string    `json:"session_id"`
		UserID     string    `json:"user_id"`
		IPAddress  string    `json:"ip_address,omitempty"`
		DeviceType string    `json:"device_type,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
		ExpiresAt  time.Time `json:"expires_at"`
	}{
		SessionID:  event.SessionID,
		UserID:     event.UserID,
		IPAddress:  event.IPAddress,
		DeviceType: string(event.DeviceType),
		CreatedAt:  event.CreatedAt.UTC(),
		ExpiresAt:  event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "session.created", event.UserID, event.CreatedAt, payload)
}

// PublishSessionEvicted publishes session.evicted events.
func (p *EventPublisher) PublishSessionEvicted(ctx context.Context, event domain.SessionEvictedEvent) error {
	payload := struct {
		SessionID        string    `json:"session_id"`
		UserID           string    `json:"user_id"`
		EvictedAt        time.Time `json:"evicted_at"`
		ReplacedBy       string    `json:"replaced_by,omitempty"`
		SessionCreatedAt time.Time `json:"session_created_at"`
	}{
		SessionID:        event.SessionID,
		UserID:           event.UserID,
		EvictedAt:        event.EvictedAt.UTC(),
		ReplacedBy:       event.ReplacedBy,
		SessionCreatedAt: event.SessionCreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "session.evicted", event.UserID, event.EvictedAt, payload)
}

// PublishSessionRevoked publishes session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id,omitempty"`
		UserID    string    `json:"user_id"`
		State     string    `json:"state"`
		RevokedAt time.Time `json:"revoked_at"`
		Reason    string    `json:"reason,omitempty"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		State:     string(event.State),
		RevokedAt: event.RevokedAt.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, event.EventID, "session.revoked", event.UserID, event.RevokedAt, payload)
}

// PublishSessionSuspicious publishes session.suspicious events.
func (p *EventPublisher) PublishSessionSuspicious(ctx context.Context, event domain.SessionSuspiciousEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		Reason    string    `json:"reason"`
		IPAddress string    `json:"ip_address,omitempty"`
		FlaggedAt time.Time `json:"flagged_at"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Reason:    event.Reason,
		IPAddress: event.IPAddress,
		FlaggedAt: event.FlaggedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "session.suspicious", event.UserID, event.FlaggedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

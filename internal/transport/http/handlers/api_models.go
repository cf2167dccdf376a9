package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint. The identity
// token comes from the upstream identity provider that owns authentication.
type LoginRequest struct {
	IdentityToken string `json:"identity_token" binding:"required"`
}

// LoginResponse describes the response for a successful login. The session
// identifier itself travels in an HttpOnly cookie; only the CSRF token is
// exposed to the client script.
type LoginResponse struct {
	CSRFToken string         `json:"csrf_token"`
	Session   SessionSummary `json:"session"`
}

// SessionSummary provides a compact view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	DeviceType   string    `json:"device_type"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	Suspicious   bool      `json:"suspicious"`
}

func newSessionSummary(s domain.Session) SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		DeviceType:   string(s.Metadata.DeviceType),
		Browser:      s.Metadata.Browser,
		OS:           s.Metadata.OS,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
		Suspicious:   s.Suspicious,
	}
}

// SessionListResponse wraps the active sessions of a user.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionStatusResponse is the informational status projection.
type SessionStatusResponse struct {
	SessionID        string    `json:"session_id"`
	State            string    `json:"state"`
	Suspicious       bool      `json:"suspicious"`
	IdleSeconds      int64     `json:"idle_seconds"`
	IdleWarning      bool      `json:"idle_warning"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	LastActivity     time.Time `json:"last_activity"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// LogoutAllResponse reports how many sessions a bulk termination ended.
type LogoutAllResponse struct {
	SessionsEnded int `json:"sessions_ended"`
}

// HealthResponse describes liveness payloads.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes readiness payloads with per-dependency detail.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

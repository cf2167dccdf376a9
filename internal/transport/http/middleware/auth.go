package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/infra/security"
	"github.com/frankbria/auto-author-sub001/internal/usecase"
)

const (
	// SessionCookieName carries the opaque session identifier.
	SessionCookieName = "session_id"
	// CSRFHeaderName carries the token bound to the session, required on
	// mutating requests.
	CSRFHeaderName = "X-CSRF-Token"
)

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// SessionValidator is the slice of the session lifecycle the middleware
// needs per request.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string, current domain.SessionMetadata, path string) (*domain.Session, error)
}

// RequireSession validates the session cookie on every request and enforces
// the CSRF token on mutating methods. Absent, expired, and unreachable-store
// outcomes all surface as 401; the store's failure vocabulary never reaches
// clients.
func RequireSession(sessions SessionValidator, fingerprints *security.FingerprintGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "not authenticated"))
			return
		}

		current := fingerprints.Metadata(c.Request, c.ClientIP())

		session, err := sessions.Validate(c.Request.Context(), sessionID, current, c.Request.URL.Path)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrSessionExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session expired"))
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "not authenticated"))
			}
			return
		}

		if mutating(c.Request.Method) && c.GetHeader(CSRFHeaderName) != session.CSRFToken {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "invalid csrf token"))
			return
		}

		c.Set(UserIDKey, session.UserID)
		c.Set(SessionKey, session)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = session.UserID
		}

		c.Next()
	}
}

// GetSession retrieves the validated session placed by RequireSession.
func GetSession(c *gin.Context) (*domain.Session, bool) {
	value, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*domain.Session)
	return session, ok
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frankbria/auto-author-sub001/internal/transport/http/middleware"
	"github.com/frankbria/auto-author-sub001/internal/usecase"
)

// SessionHandler exposes session management endpoints for the authenticated
// user.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session management routes; every route assumes the
// session middleware already ran.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.GET("/current/status", h.CurrentStatus)
	r.POST("/current/refresh", h.RefreshCurrent)
	r.DELETE("/:session_id", h.RevokeSession)
}

// ListSessions godoc
// @Summary List the caller's active sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	sessions, err := h.sessions.ListActive(c.Request.Context(), session.UserID, 0)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not list sessions"))
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, newSessionSummary(s))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: summaries, Total: len(summaries)})
}

// CurrentStatus godoc
// @Summary Status view of the current session
// @Description Idle time, time to expiry, and the advisory idle warning. Never mutates state.
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionStatusResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/sessions/current/status [get]
func (h *SessionHandler) CurrentStatus(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	status, err := h.sessions.GetStatus(c.Request.Context(), session.ID)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
			return
		}
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not read session status"))
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{
		SessionID:        status.SessionID,
		State:            string(status.State),
		Suspicious:       status.Suspicious,
		IdleSeconds:      status.IdleSeconds,
		IdleWarning:      status.IdleWarning,
		ExpiresInSeconds: int64(status.ExpiresIn.Seconds()),
		LastActivity:     status.LastActivity,
		ExpiresAt:        status.ExpiresAt,
	})
}

// RefreshCurrent godoc
// @Summary Extend the current session's absolute lifetime
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionSummary
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/sessions/current/refresh [post]
func (h *SessionHandler) RefreshCurrent(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	refreshed, err := h.sessions.Refresh(c.Request.Context(), session.ID)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session no longer active"))
			return
		}
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not refresh session"))
		return
	}

	c.JSON(http.StatusOK, newSessionSummary(*refreshed))
}

// RevokeSession godoc
// @Summary Terminate one of the caller's sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id} [delete]
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	current, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	sessionID := c.Param("session_id")

	// Ownership check: a user may only terminate their own sessions.
	owned, err := h.sessions.ListActive(c.Request.Context(), current.UserID, 0)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not revoke session"))
		return
	}

	found := false
	for _, s := range owned {
		if s.ID == sessionID {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	ended, err := h.sessions.End(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not revoke session"))
		return
	}
	if !ended {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session revoked"})
}

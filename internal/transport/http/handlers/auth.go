package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frankbria/auto-author-sub001/internal/infra/security"
	"github.com/frankbria/auto-author-sub001/internal/transport/http/middleware"
	"github.com/frankbria/auto-author-sub001/internal/usecase"
)

// AuthHandler exposes login and logout endpoints. Authentication itself is
// owned by the upstream identity provider; this handler only exchanges a
// verified identity token for a session.
type AuthHandler struct {
	sessions     *usecase.SessionService
	verifier     *security.IDTokenVerifier
	fingerprints *security.FingerprintGenerator
	secureCookie bool
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(sessions *usecase.SessionService, verifier *security.IDTokenVerifier, fingerprints *security.FingerprintGenerator, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		verifier:     verifier,
		fingerprints: fingerprints,
		secureCookie: secureCookie,
	}
}

// RegisterRoutes binds auth routes. sessionMiddleware guards the logout
// endpoints, which operate on the caller's own session.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, sessionMiddleware gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	loginChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	loginChain = append(loginChain, h.Login)
	r.POST("/login", loginChain...)

	r.POST("/logout", sessionMiddleware, h.Logout)
	r.POST("/logout-all", sessionMiddleware, h.LogoutAll)
}

// Login godoc
// @Summary Exchange an identity token for a session
// @Description Verifies the identity provider token and establishes a session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "login unavailable"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identity_token is required"))
		return
	}

	identity, err := h.verifier.Verify(req.IdentityToken)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrExpiredIDToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "identity token expired"))
		default:
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid identity token"))
		}
		return
	}

	meta := h.fingerprints.Metadata(c.Request, c.ClientIP())

	session, err := h.sessions.Create(c.Request.Context(), identity.UserID, identity.ExternalSessionID, meta)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "could not establish session"))
		return
	}

	maxAge := int(session.ExpiresAt.Sub(session.CreatedAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, session.ID, maxAge, "/", "", h.secureCookie, true)

	c.JSON(http.StatusOK, LoginResponse{
		CSRFToken: session.CSRFToken,
		Session:   newSessionSummary(*session),
	})
}

// Logout godoc
// @Summary End the current session
// @Tags Auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	if _, err := h.sessions.End(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "logout failed"))
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll godoc
// @Summary End every session of the current user
// @Description Terminates all sessions, including the current one, for "log out everywhere" flows.
// @Tags Auth
// @Produce json
// @Success 200 {object} LogoutAllResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	count, err := h.sessions.EndAll(c.Request.Context(), session.UserID, "")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "logout failed"))
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, LogoutAllResponse{SessionsEnded: count})
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secureCookie, true)
}

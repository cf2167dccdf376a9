package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

const (
	rateLimitProblemType  = "https://api.auto-author.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitChecker is the decision surface the middleware depends on. The
// checker is expected to be infallible: any infrastructure failure degrades
// inside it rather than surfacing here.
type RateLimitChecker interface {
	Check(ctx context.Context, clientKey, endpoint string, limit int, window time.Duration) domain.RateLimitResult
}

// IdentifierFunc extracts the identifier used to scope rate limits (the
// client IP by default).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a fixed-window limit for a route group.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter adapts the rate limit service into Gin middleware, applying
// standard X-RateLimit-* headers and an RFC 9457 problem-details payload on
// deny.
type RateLimiter struct {
	checker RateLimitChecker
	logger  *zap.Logger
}

// ProblemDetails represents an RFC 9457 compatible error payload.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(checker RateLimitChecker, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{checker: checker, logger: logger}
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rule. The
// endpoint component of the counter key is the matched route, so each
// endpoint keeps an independent budget per caller.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Identifier == nil {
		rule.Identifier = ClientIPIdentifier()
	}
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		if rl.checker == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		result := rl.checker.Check(c.Request.Context(), identifier, endpoint, rule.Limit, rule.Window)

		rl.applyHeaders(c, result)

		if !result.Allowed {
			rl.respondRateLimited(c, result)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, res domain.RateLimitResult) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

	if !res.Allowed {
		seconds := int(math.Ceil(res.RetryAfter.Seconds()))
		if seconds < 0 {
			seconds = 0
		}
		headers.Set("Retry-After", strconv.Itoa(seconds))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, res domain.RateLimitResult) {
	retrySeconds := int(math.Ceil(res.RetryAfter.Seconds()))
	if retrySeconds < 0 {
		retrySeconds = 0
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many requests. Try again in " + strconv.Itoa(retrySeconds) + " seconds.",
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, problem)
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

type fakeChecker struct {
	result domain.RateLimitResult
	calls  []string
}

func (f *fakeChecker) Check(ctx context.Context, clientKey, endpoint string, limit int, window time.Duration) domain.RateLimitResult {
	f.calls = append(f.calls, endpoint+"|"+clientKey)
	return f.result
}

func newRateLimitedRouter(rl *RateLimiter, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/books", rl.RateLimit(rule), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitMiddleware_AllowedSetsHeaders(t *testing.T) {
	resetAt := time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)
	checker := &fakeChecker{result: domain.RateLimitResult{
		Allowed:   true,
		Limit:     120,
		Remaining: 119,
		ResetAt:   resetAt,
	}}

	router := newRateLimitedRouter(NewRateLimiter(checker, nil), RateLimitRule{
		Name:   "default",
		Limit:  120,
		Window: time.Minute,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "120" {
		t.Fatalf("unexpected limit header: %s", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "119" {
		t.Fatalf("unexpected remaining header: %s", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got == "" {
		t.Fatalf("reset header must always be present")
	}
	if w.Header().Get("Retry-After") != "" {
		t.Fatalf("allowed response must not set Retry-After")
	}
	if len(checker.calls) != 1 {
		t.Fatalf("expected 1 check, got %d", len(checker.calls))
	}
}

func TestRateLimitMiddleware_DeniedRespondsProblemDetails(t *testing.T) {
	resetAt := time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)
	checker := &fakeChecker{result: domain.RateLimitResult{
		Allowed:    false,
		Limit:      10,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: 42 * time.Second,
	}}

	router := newRateLimitedRouter(NewRateLimiter(checker, nil), RateLimitRule{
		Name:   "login",
		Limit:  10,
		Window: time.Minute,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("unexpected Retry-After: %s", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("unexpected remaining header: %s", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests {
		t.Fatalf("unexpected problem status: %d", problem.Status)
	}
	if problem.RetryAfter != 42 {
		t.Fatalf("unexpected problem retry_after: %d", problem.RetryAfter)
	}
	if problem.Instance != "/api/v1/books" {
		t.Fatalf("unexpected problem instance: %s", problem.Instance)
	}
}

func TestRateLimitMiddleware_EndpointScopesTheKey(t *testing.T) {
	checker := &fakeChecker{result: domain.RateLimitResult{Allowed: true, Limit: 10}}
	rl := NewRateLimiter(checker, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	rule := RateLimitRule{Limit: 10, Window: time.Minute}
	router.GET("/api/v1/books", rl.RateLimit(rule), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/chapters", rl.RateLimit(rule), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/books", "/api/v1/chapters"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, w.Code)
		}
	}

	if len(checker.calls) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checker.calls))
	}
	if checker.calls[0] == checker.calls[1] {
		t.Fatalf("different endpoints must produce different counter keys: %v", checker.calls)
	}
}

func TestRateLimitMiddleware_DisabledRulePassesThrough(t *testing.T) {
	checker := &fakeChecker{result: domain.RateLimitResult{Allowed: false}}
	router := newRateLimitedRouter(NewRateLimiter(checker, nil), RateLimitRule{
		Limit:  0,
		Window: time.Minute,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through for disabled rule, got %d", w.Code)
	}
	if len(checker.calls) != 0 {
		t.Fatalf("disabled rule must not consult the checker")
	}
}

func TestRateLimitMiddleware_NilCheckerPassesThrough(t *testing.T) {
	router := newRateLimitedRouter(NewRateLimiter(nil, nil), RateLimitRule{
		Limit:  10,
		Window: time.Minute,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through without a checker, got %d", w.Code)
	}
}

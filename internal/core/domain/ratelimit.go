package domain

import "time"

// RateLimitResult describes the outcome of a fixed-window quota check.
// A denied result is an expected, machine-readable outcome, not an error.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded reports that the decision came from the per-process fallback
	// counter rather than the shared store.
	Degraded bool
}

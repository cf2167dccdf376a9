package port

import (
	"context"
	"errors"
	"time"
)

// ErrCounterUnavailable signals a connectivity failure talking to the
// counter backend, as opposed to a normal operational error. Callers use it
// to decide whether falling back to another backend makes sense.
var ErrCounterUnavailable = errors.New("counter store unavailable")

// CounterStore is the fixed-window counter contract implemented by both the
// shared Redis backend and the per-process in-memory fallback.
//
// IncrementWithExpiry atomically increments the counter stored under key.
// The first increment of a window arms its expiry: count comes back as 1 and
// resetAt as now+window. Later increments within the window return the
// running count and the window's original reset time. Concurrent first
// increments racing to re-arm must not extend the window twice.
type CounterStore interface {
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

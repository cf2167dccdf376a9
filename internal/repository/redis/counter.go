package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frankbria/auto-author-sub001/internal/core/port"
)

const defaultCounterPrefix = "ratelimit"

// CounterRepository implements the fixed-window counter contract on a shared
// Redis instance so all worker processes see one budget per key.
type CounterRepository struct {
	client *redis.Client
	prefix string
}

// NewCounterRepository constructs a repository using the provided Redis client.
func NewCounterRepository(client *redis.Client, keyPrefix string) *CounterRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCounterPrefix
	}
	return &CounterRepository{client: client, prefix: prefix}
}

// IncrementWithExpiry atomically increments the counter and arms the window
// expiry on first increment. INCR and EXPIRE NX run in one pipeline: EXPIRE
// NX only sets a TTL when none exists, so concurrent first-increments racing
// to re-arm a lapsed window cannot extend it twice.
func (r *CounterRepository) IncrementWithExpiry(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	if window <= 0 {
		return 0, time.Time{}, fmt.Errorf("window must be positive")
	}

	fullKey := fmt.Sprintf("%s:%s", r.prefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	pttl := pipe.PTTL(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %s", port.ErrCounterUnavailable, err)
	}

	count := incr.Val()

	resetAt := now.Add(window)
	if ttl := pttl.Val(); count > 1 && ttl > 0 {
		resetAt = now.Add(ttl)
	}

	return count, resetAt, nil
}

var _ port.CounterStore = (*CounterRepository)(nil)

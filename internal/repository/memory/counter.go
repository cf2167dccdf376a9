package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frankbria/auto-author-sub001/internal/core/port"
)

const defaultMaxKeys = 10000

type window struct {
	count   int64
	resetAt time.Time
}

// CounterStore is the per-process fallback counter used when the shared
// store is unreachable. Windows are tracked against the supplied clock and
// swept explicitly; the map is bounded so a key flood during an outage
// cannot grow memory without limit. Counts are scoped to one process, so
// during a shared-store outage the effective global limit becomes
// limit x workers. That degradation is accepted.
type CounterStore struct {
	mu      sync.Mutex
	windows map[string]window
	maxKeys int
}

// NewCounterStore constructs the fallback store. maxKeys <= 0 selects the
// default bound.
func NewCounterStore(maxKeys int) *CounterStore {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &CounterStore{
		windows: make(map[string]window),
		maxKeys: maxKeys,
	}
}

// IncrementWithExpiry applies fixed-window semantics: the first increment
// after a window lapses resets the count to 1 and starts a new window.
func (s *CounterStore) IncrementWithExpiry(_ context.Context, key string, windowDur time.Duration, now time.Time) (int64, time.Time, error) {
	if windowDur <= 0 {
		return 0, time.Time{}, fmt.Errorf("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(s.windows) >= s.maxKeys {
			s.evictLocked(now)
		}
		w = window{count: 1, resetAt: now.Add(windowDur)}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}

	w.count++
	s.windows[key] = w
	return w.count, w.resetAt, nil
}

// Sweep removes every window that has lapsed at the supplied moment and
// returns how many entries were dropped.
func (s *CounterStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps lapsed windows on the given interval until the context ends.
func (s *CounterStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			s.Sweep(at)
		}
	}
}

// Len reports the number of tracked windows.
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// evictLocked frees space when the bound is hit: lapsed windows first, then
// the window closest to reset.
func (s *CounterStore) evictLocked(now time.Time) {
	var (
		victim string
		oldest time.Time
	)
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			return
		}
		if victim == "" || w.resetAt.Before(oldest) {
			victim = key
			oldest = w.resetAt
		}
	}
	if victim != "" {
		delete(s.windows, victim)
	}
}

var _ port.CounterStore = (*CounterStore)(nil)

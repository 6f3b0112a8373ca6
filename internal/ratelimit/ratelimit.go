// Package ratelimit enforces a per-user submission quota: at most N
// submissions within a sliding window, counters held in an in-memory
// expirable LRU so the limiter never grows unbounded and never needs a
// sweep goroutine of its own. The spec permits a pluggable distributed
// backend; this is the single-process default.
package ratelimit

import (
	"sync"
	"time"

	"codeduel/internal/metrics"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter caps the number of submissions one user may make within a
// rolling window.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets *lru.LRU[uuid.UUID, *bucket]
}

// bucket tracks one user's submission timestamps within the window.
type bucket struct {
	mu   sync.Mutex
	hits []time.Time
}

// New constructs a Limiter allowing limit submissions per window, per
// user. A non-positive limit disables the check entirely.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: lru.NewLRU[uuid.UUID, *bucket](50_000, nil, window*2),
	}
}

// Allow reports whether userRef may submit now, and records the
// attempt if so. Callers should only call Allow once per submission
// attempt, win or lose.
func (l *Limiter) Allow(userRef uuid.UUID) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets.Get(userRef)
	if !ok {
		b = &bucket{}
		l.buckets.Add(userRef, b)
	}
	l.mu.Unlock()

	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := b.hits[:0]
	for _, t := range b.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.hits = kept

	if len(b.hits) >= l.limit {
		metrics.SubmissionRateLimitRejections.Inc()
		return false
	}
	b.hits = append(b.hits, now)
	return true
}

package api

import (
	"sync"
	"time"

	"github.com/lohithgsk/medledger/pkg/types"
)

// RateLimiter applies a token-bucket budget per authenticated principal.
// Buckets refill continuously over the period rather than in steps.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[types.Principal]*tokenBucket
	limit   int
	period  time.Duration
	now     func() time.Time
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter allowing limit requests per period
// for each principal.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[types.Principal]*tokenBucket),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow consumes one token for the principal, reporting whether the
// request fits the budget.
func (rl *RateLimiter) Allow(principal types.Principal) bool {
	bucket := rl.bucket(principal)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(bucket.lastRefill)
	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else if refill := int(elapsed.Nanoseconds() * int64(rl.limit) / rl.period.Nanoseconds()); refill > 0 {
		bucket.tokens = minInt(bucket.tokens+refill, rl.limit)
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining reports the current token count and the configured limit
func (rl *RateLimiter) Remaining(principal types.Principal) (int, int) {
	bucket := rl.bucket(principal)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.tokens, rl.limit
}

func (rl *RateLimiter) bucket(principal types.Principal) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[principal]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[principal]; exists {
		return bucket
	}
	bucket = &tokenBucket{tokens: rl.limit, lastRefill: rl.now()}
	rl.buckets[principal] = bucket
	return bucket
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

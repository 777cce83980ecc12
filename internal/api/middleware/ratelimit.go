package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
)

// limiterIdleTTL is how long a key may go unused before its bucket is dropped.
const limiterIdleTTL = 10 * time.Minute

// RateLimiter hands out one token bucket per key. Buckets idle for longer than the idle period are
// swept from Allow at most once per idle period, so the map stays bounded by recently active keys.
type RateLimiter struct {
	limiters  map[string]*limiterEntry
	mutex     sync.Mutex
	rate      rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per key with the given burst.
func NewRateLimiter(requestsPerMinute float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(requestsPerMinute / 60),
		burst:     burst,
		idle:      limiterIdleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether a request for key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// sweep drops buckets unused for the idle period. Callers hold the mutex.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// RateLimit limits requests per acting user, falling back to the client IP for anonymous callers.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if user, ok := Actor(c); ok {
			key = fmt.Sprintf("user:%d", user.ID)
		}

		if !rl.Allow(key) {
			prommetrics.RecordRateLimited(c.FullPath())
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl.rate)))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 {
		return 60
	}
	seconds := int(1 / float64(limit))
	if seconds < 1 {
		return 1
	}
	return seconds
}

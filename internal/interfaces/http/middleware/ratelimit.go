package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/dto"
)

// RateLimiter is an in-memory fixed-window limiter keyed by caller identity.
// Each key gets a bucket of tokens that refills when its window rolls over.
// State is per-process; behind multiple replicas the effective limit is
// limit * replicas.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	remaining   int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and
// starts a background sweep that drops idle buckets.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.sweep(2 * window)
	return rl
}

// sweep drops buckets whose window expired long enough ago that they would
// refill on next use anyway. Keeps the map from growing with one-off callers.
func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.window)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.windowStart.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes one token for key, reporting whether the request may
// proceed and how many tokens remain in the current window.
func (rl *RateLimiter) Allow(key string) (ok bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[key]
	if !exists || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{remaining: rl.limit - 1, windowStart: now}
		return true, rl.limit - 1
	}

	if b.remaining > 0 {
		b.remaining--
		return true, b.remaining
	}
	return false, 0
}

// Limit returns the per-window request allowance.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// RateLimit limits requests per client IP. Accepted responses carry
// X-RateLimit-Limit and X-RateLimit-Remaining so well-behaved clients can
// pace themselves before hitting 429s.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, remaining := limiter.Allow(c.ClientIP())
		if !ok {
			rejectRateLimited(c)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

// RateLimitByKey limits requests by a caller-supplied key, e.g. the carrier
// connection ID on label purchase routes where one noisy integration should
// not starve the rest.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, _ := limiter.Allow(keyFunc(c)); !ok {
			rejectRateLimited(c)
			return
		}
		c.Next()
	}
}

func rejectRateLimited(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests,
		dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
}

package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	RPS   int // requests per second
	Burst int // burst size
}

// Buckets idle longer than this are dropped by the sweep.
const bucketIdleTTL = 10 * time.Minute

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rps, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// clientKey identifies the caller for rate accounting. The limiter runs
// ahead of auth, so it keys on the raw bearer credential when one is
// presented; unauthenticated traffic falls back to the source IP. This
// keeps one user's browser tabs in a single bucket and stops a NATed
// office from exhausting a shared IP bucket.
func clientKey(c *fiber.Ctx) string {
	if cred, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok && cred != "" {
		return "tok:" + cred
	}
	return "ip:" + c.IP()
}

// NewRateLimitMiddleware returns a per-caller token-bucket rate limiter.
// Probe and metrics endpoints are exempt.
func NewRateLimitMiddleware(cfg RateLimitConfig) fiber.Handler {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*tokenBucket)
	)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			now := time.Now()
			for k, b := range buckets {
				if now.Sub(b.lastRefill) > bucketIdleTTL {
					delete(buckets, k)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *fiber.Ctx) error {
		switch c.Path() {
		case "/healthz", "/readyz", "/metrics":
			return c.Next()
		}

		key := clientKey(c)

		mu.Lock()
		bucket, ok := buckets[key]
		if !ok {
			bucket = newTokenBucket(cfg.RPS, cfg.Burst)
			buckets[key] = bucket
		}
		allowed := bucket.allow()
		mu.Unlock()

		if !allowed {
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limit_exceeded", "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
		}

		return c.Next()
	}
}

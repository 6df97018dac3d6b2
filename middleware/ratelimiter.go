package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/utils"
)

// RateLimiterConfig limits requests per client IP.
type RateLimiterConfig struct {
	Max      int
	Duration time.Duration
	Skip     func(*fiber.Ctx) bool
}

// RateLimiterOption modifies a RateLimiterConfig.
type RateLimiterOption func(*RateLimiterConfig)

// WithMax sets the number of requests allowed per window.
func WithMax(max int) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Max = max }
}

// WithDuration sets the window length.
func WithDuration(d time.Duration) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Duration = d }
}

// WithSkip skips limiting when skip returns true.
func WithSkip(skip func(*fiber.Ctx) bool) RateLimiterOption {
	return func(cfg *RateLimiterConfig) { cfg.Skip = skip }
}

// RateLimiter guards the profiler endpoints, which read from profile storage
// on every hit. Defaults to 50 requests per second per IP.
func RateLimiter(options ...RateLimiterOption) fiber.Handler {
	cfg := RateLimiterConfig{
		Max:      50,
		Duration: time.Second,
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Max <= 0 {
		cfg.Max = 50
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Second
	}

	retryAfter := strconv.Itoa(int(cfg.Duration.Round(time.Second).Seconds()))
	if retryAfter == "0" {
		retryAfter = "1"
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Duration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.CopyString(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set("Retry-After", retryAfter)
			c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			c.Set("X-RateLimit-Remaining", "0")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Too Many Requests",
				"message": "profiler rate limit exceeded",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			return cfg.Skip != nil && cfg.Skip(c)
		},
	})
}

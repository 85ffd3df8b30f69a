package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// AuthLimiter bounds credential-bearing routes: 10 requests per client IP
// per 15-minute fixed window.
func AuthLimiter() fiber.Handler {
	return RateLimiter(10, 15*time.Minute,
		"Too many login attempts from this IP, please try again after 15 minutes")
}

// APILimiter bounds the general API: 100 requests per client IP per
// 10-minute fixed window.
func APILimiter() fiber.Handler {
	return RateLimiter(100, 10*time.Minute,
		"Too many requests from this IP, please try again after 10 minutes")
}

// RateLimiter is a fixed-window counter keyed by client IP. The counter
// resets wholesale at the window boundary, so bursts straddling an edge
// are accepted.
func RateLimiter(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   message,
			})
		},
	})
}

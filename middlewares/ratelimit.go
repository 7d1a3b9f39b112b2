package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/utils"
)

const paymentLimitMessage = "Too many payment requests, please try again later."

// callerIP keys limiter buckets. c.IP() may point into the request buffer
// when a proxy header is used, and the limiter keeps the key past the request.
func callerIP(c *fiber.Ctx) string {
	return utils.CopyString(c.IP())
}

// GlobalLimiter is the coarse per-IP cap applied to every route.
func GlobalLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: callerIP,
	})
}

// PaymentLimiter caps initiation requests per caller IP in fixed windows.
// The counter resets wholesale when the window ends.
func PaymentLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.FixedWindow{},
		KeyGenerator:      callerIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": paymentLimitMessage})
		},
	})
}

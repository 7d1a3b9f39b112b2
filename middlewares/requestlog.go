package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"
)

// RequestLogger attaches a request-scoped zerolog logger to the user context
// and logs one line per handled request. Run it after requestid.New().
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		l := log.With().
			Str("request_id", reqID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Logger()
		c.SetUserContext(l.WithContext(c.UserContext()))

		err := c.Next()
		if err != nil {
			// let the ErrorHandler write the response so the status is final
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		if c.Path() == "/healthz" && c.Response().StatusCode() < 400 {
			return nil
		}
		l.Info().
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("request.handled")
		return nil
	}
}

package middlewares

import (
	"errors"

	"zapstack-backend/payments"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Every error body has the shape {"error": "..."}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	// 2) Payment taxonomy (status from the error kind, message is safe to show)
	if payments.IsKnown(err) {
		return c.Status(payments.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	// 3) Validation errors (422 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": out,
		})
	}

	// 4) Unknown errors (500)
	zerolog.Ctx(c.UserContext()).Error().Err(err).Msg("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

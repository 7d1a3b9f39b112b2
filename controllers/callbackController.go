package controllers

import (
	"errors"

	"zapstack-backend/payments"

	"github.com/gofiber/fiber/v2"
)

type CallbackController struct {
	Correlator *payments.Correlator
}

// MpesaCallback receives Daraja's asynchronous STK result. The provider gets a
// 200 for anything short of an internal fault so it never retries because of
// tenant-side problems.
func (cc *CallbackController) MpesaCallback(c *fiber.Ctx) error {
	_, err := cc.Correlator.Handle(c.UserContext(), c.Body())
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"message": "Callback received successfully"})
	case errors.Is(err, payments.ErrTenantNotFound):
		return c.JSON(fiber.Map{"message": "Callback received, no matching project"})
	default:
		return err
	}
}

package controllers

import (
	"zapstack-backend/payments"

	"github.com/gofiber/fiber/v2"
)

// ZapKeyHeader carries the tenant-facing key on client requests.
const ZapKeyHeader = "x-zap-key"

type PaymentController struct {
	Initiator *payments.Initiator
}

// InitiatePayment starts an STK push for the tenant identified by x-zap-key.
func (pc *PaymentController) InitiatePayment(c *fiber.Ctx) error {
	zapKey := c.Get(ZapKeyHeader)

	var req payments.InitiateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return pc.Initiator.RejectMalformed(c.UserContext(), zapKey)
		}
	}
	// the key is only ever taken from the header
	req.ZapKey = zapKey

	res, err := pc.Initiator.Initiate(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "STK Push initiated successfully",
		"data":    res,
	})
}

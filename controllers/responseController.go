package controllers

import (
	"errors"
	"strings"

	"zapstack-backend/database"
	"zapstack-backend/models"
	"zapstack-backend/payments"

	"github.com/gofiber/fiber/v2"
)

type ResponseController struct {
	Projects *database.ProjectRepository
	Results  *payments.ResultCache
}

// GetResponse serves the latest cached STK result for the caller's project,
// or the one for ?checkout_request_id= when given.
func (rc *ResponseController) GetResponse(c *fiber.Ctx) error {
	zapKey := strings.TrimSpace(c.Get(ZapKeyHeader))
	if zapKey == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing x-zap-key header")
	}
	if !payments.ValidKey(zapKey) {
		return payments.ErrInvalidKeyFormat
	}

	project, err := rc.Projects.FindPaymentsProject(c.UserContext(), zapKey, models.ProviderMpesa)
	if errors.Is(err, database.ErrNotFound) {
		return payments.ErrTenantNotFound
	}
	if err != nil {
		return err
	}

	var (
		res   *payments.Result
		found bool
	)
	if checkoutID := strings.TrimSpace(c.Query("checkout_request_id")); checkoutID != "" {
		res, found = rc.Results.ByCheckout(project.Id, checkoutID)
	} else {
		res, found = rc.Results.Latest(project.Id)
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No recent payment response found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": res})
}

package controllers

import (
	"errors"

	"zapstack-backend/database"
	"zapstack-backend/middlewares"

	"github.com/gofiber/fiber/v2"
)

const defaultLogLimit = 50

type LogsController struct {
	Projects *database.ProjectRepository
	Logs     *database.LogRepository
}

type logsQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset int `query:"offset" validate:"min=0"`
}

// GetProjectLogs lists a project's audit trail for its owner.
func (lc *LogsController) GetProjectLogs(c *fiber.Ctx) error {
	ownerID, _ := c.Locals(middlewares.LocalOwnerID).(string)

	var q logsQuery
	if err := middlewares.BindQuery(c, &q); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = defaultLogLimit
	}

	project, err := lc.Projects.FindByID(c.UserContext(), c.Params("id"))
	if errors.Is(err, database.ErrNotFound) || (err == nil && project.OwnerId != ownerID) {
		// do not reveal other owners' projects
		return fiber.NewError(fiber.StatusNotFound, "project not found")
	}
	if err != nil {
		return err
	}

	entries, err := lc.Logs.ListByProject(c.UserContext(), project.Id, q.Limit, q.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"logs":    entries,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}

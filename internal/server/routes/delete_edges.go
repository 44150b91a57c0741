package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
)

// DeleteEdgeHandler queues removal of a single edge without touching its
// endpoints.
func DeleteEdgeHandler(c echo.Context) error {
	type deleteEdgeBody struct {
		Source           string `json:"source" validate:"required"`
		Target           string `json:"target" validate:"required"`
		Label            string `json:"label" validate:"required"`
		ExpectedRevision uint64 `json:"expected_revision"`
	}

	data := new(deleteEdgeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, editQueuedResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, editQueuedResponse{
			Message: "Invalid request body",
		})
	}

	return queueEdit(c, queue.EditJobMsg{
		Operation:        queue.EditOpDeleteEdge,
		Source:           data.Source,
		Target:           data.Target,
		Label:            data.Label,
		ExpectedRevision: data.ExpectedRevision,
	})
}

package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
)

// PatchEdgeHandler queues a weight update for an existing edge, addressed
// by its (source, target, label) triple.
func PatchEdgeHandler(c echo.Context) error {
	type patchEdgeBody struct {
		Source           string   `json:"source" validate:"required"`
		Target           string   `json:"target" validate:"required"`
		Label            string   `json:"label" validate:"required"`
		Weight           *float64 `json:"weight" validate:"required"`
		ExpectedRevision uint64   `json:"expected_revision"`
	}

	data := new(patchEdgeBody)
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
		Operation:        queue.EditOpUpdateEdge,
		Source:           data.Source,
		Target:           data.Target,
		Label:            data.Label,
		Weight:           data.Weight,
		ExpectedRevision: data.ExpectedRevision,
	})
}

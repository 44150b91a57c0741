package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
)

// CreateEdgeHandler queues an edge insert between two existing nodes. The
// worker normalizes the label before applying; duplicates of the (source,
// target, label) triple are rejected there.
func CreateEdgeHandler(c echo.Context) error {
	type createEdgeBody struct {
		Source           string  `json:"source" validate:"required"`
		Target           string  `json:"target" validate:"required"`
		Label            string  `json:"label" validate:"required"`
		Weight           float64 `json:"weight"`
		ExpectedRevision uint64  `json:"expected_revision"`
	}

	data := new(createEdgeBody)
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
	if data.Weight == 0 {
		data.Weight = 1
	}

	return queueEdit(c, queue.EditJobMsg{
		Operation:        queue.EditOpCreateEdge,
		Source:           data.Source,
		Target:           data.Target,
		Label:            data.Label,
		Weight:           &data.Weight,
		ExpectedRevision: data.ExpectedRevision,
	})
}

package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server/middleware"
)

// PatchNodeHandler queues a node attribute patch. Without `authoritative`
// only unset keys are filled; `expected_revision` turns the edit into a
// compare-and-swap. The worker applies the edit asynchronously.
func PatchNodeHandler(c echo.Context) error {
	type patchNodeBody struct {
		ID               string            `param:"id" validate:"required"`
		Attributes       map[string]string `json:"attributes" validate:"required"`
		Authoritative    bool              `json:"authoritative"`
		ExpectedRevision uint64            `json:"expected_revision"`
	}

	data := new(patchNodeBody)
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

	snapshot := c.(*middleware.AppContext).App.Store.Snapshot()
	if _, err := snapshot.GetNode(data.ID); err != nil {
		return c.JSON(http.StatusNotFound, editQueuedResponse{
			Message: "Node not found",
		})
	}

	return queueEdit(c, queue.EditJobMsg{
		Operation:        queue.EditOpUpdateNode,
		NodeID:           data.ID,
		Attributes:       data.Attributes,
		Authoritative:    data.Authoritative,
		ExpectedRevision: data.ExpectedRevision,
	})
}

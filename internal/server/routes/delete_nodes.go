package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server/middleware"
)

// DeleteNodeHandler queues removal of a node and every incident edge. The
// worker drops the embedding index row along with it.
func DeleteNodeHandler(c echo.Context) error {
	type deleteNodeParams struct {
		ID               string `param:"id" validate:"required"`
		ExpectedRevision uint64 `query:"expected_revision"`
	}

	params := new(deleteNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, editQueuedResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, editQueuedResponse{
			Message: "Invalid request body",
		})
	}

	snapshot := c.(*middleware.AppContext).App.Store.Snapshot()
	if _, err := snapshot.GetNode(params.ID); err != nil {
		return c.JSON(http.StatusNotFound, editQueuedResponse{
			Message: "Node not found",
		})
	}

	return queueEdit(c, queue.EditJobMsg{
		Operation:        queue.EditOpDeleteNode,
		NodeID:           params.ID,
		ExpectedRevision: params.ExpectedRevision,
	})
}

package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/pkg/logger"
)

type editQueuedResponse struct {
	Message string `json:"message"`
}

// queueEdit publishes one edit job for the worker, the only process that
// writes to the graph.
func queueEdit(c echo.Context, job queue.EditJobMsg) error {
	app := c.(*middleware.AppContext).App

	data, err := json.Marshal(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, editQueuedResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.QueueEdit, data); err != nil {
		logger.Error("[Edit] Failed to publish edit job", "operation", job.Operation, "err", err)
		return c.JSON(http.StatusInternalServerError, editQueuedResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, editQueuedResponse{
		Message: "Edit queued",
	})
}

package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/pkg/logger"
)

// DeleteDocumentHandler queues the removal of a document and its exclusive
// graph contributions. The actual graph surgery runs in the worker.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentParams struct {
		ID string `param:"id" validate:"required"`
	}

	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	if _, err := app.DB.GetDocument(ctx, params.ID); err != nil {
		return c.JSON(statusForGraphError(err), deleteDocumentResponse{
			Message: errorMessage(err),
		})
	}

	job, _ := json.Marshal(queue.DeleteJobMsg{DocumentID: params.ID})
	if err := queue.PublishFIFO(app.Queue, queue.QueueDelete, job); err != nil {
		logger.Error("Failed to publish delete job", "document", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, deleteDocumentResponse{
		Message: "Document queued for removal",
	})
}

package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/internal/storage"
	"github.com/graphloom/loom/pkg/logger"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"
)

// UploadDocumentHandler accepts one document as multipart/form-data and
// queues the ingest job. The source is either an uploaded file, stored in
// object storage, or a `url` form field fetched by the worker at ingest
// time. Ingestion itself runs in the worker; the response carries the
// queued document record.
func UploadDocumentHandler(c echo.Context) error {
	type uploadDocumentBody struct {
		Title string `form:"title"`
		URL   string `form:"url"`
	}

	type uploadDocumentResponse struct {
		Message  string                   `json:"message"`
		Document *pgxstore.DocumentRecord `json:"document,omitempty"`
	}

	data := new(uploadDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	id, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	var key string
	title := data.Title

	if data.URL != "" {
		if !strings.HasPrefix(data.URL, "http://") && !strings.HasPrefix(data.URL, "https://") {
			return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
				Message: "Invalid source URL",
			})
		}
		key = data.URL
		if title == "" {
			title = data.URL
		}
	} else {
		upload, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
				Message: "No file or url provided",
			})
		}

		src, err := upload.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, uploadDocumentResponse{
				Message: "Could not open file",
			})
		}
		defer src.Close()

		key, err = storage.PutFile(ctx, app.S3, id, upload.Filename, src)
		if err != nil {
			logger.Error("Failed to upload file", "err", err)
			return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
				Message: "Internal server error",
			})
		}
		if title == "" {
			title = upload.Filename
		}
	}

	record := pgxstore.DocumentRecord{
		ID:        id,
		Title:     title,
		ObjectKey: key,
		Status:    pgxstore.DocumentStatusQueued,
	}
	if err := app.DB.CreateDocument(ctx, record); err != nil {
		logger.Error("Failed to register document", "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	job, _ := json.Marshal(queue.IngestJobMsg{
		DocumentID: id,
		ObjectKey:  key,
		Title:      title,
	})
	if err := queue.PublishFIFO(app.Queue, queue.QueueIngest, job); err != nil {
		logger.Error("Failed to publish ingest job", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, uploadDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, uploadDocumentResponse{
		Message:  "Document queued for ingestion",
		Document: &record,
	})
}

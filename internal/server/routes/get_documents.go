package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/internal/storage"
	"github.com/graphloom/loom/pkg/logger"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"
)

// GetDocumentHandler returns the registry record of one document plus a
// download link: the source URL for web documents, a presigned object link
// otherwise.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getDocumentResponse struct {
		Message      string                   `json:"message"`
		Document     *pgxstore.DocumentRecord `json:"document,omitempty"`
		DownloadLink string                   `json:"download_link,omitempty"`
	}

	params := new(getDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	record, err := app.DB.GetDocument(ctx, params.ID)
	if err != nil {
		return c.JSON(statusForGraphError(err), getDocumentResponse{
			Message: errorMessage(err),
		})
	}

	resp := getDocumentResponse{
		Message:  "Document found",
		Document: record,
	}
	if strings.HasPrefix(record.ObjectKey, "http://") || strings.HasPrefix(record.ObjectKey, "https://") {
		resp.DownloadLink = record.ObjectKey
	} else if app.S3 != nil {
		link, err := storage.GenerateDownloadLink(ctx, app.S3, record.ObjectKey)
		if err != nil {
			logger.Warn("Failed to presign download link", "document", record.ID, "err", err)
		} else {
			resp.DownloadLink = link
		}
	}

	return c.JSON(http.StatusOK, resp)
}

package routes

import (
	"encoding/json"
	"net/http"

	"github.com/irt-labs/studygraph/internal/queue"
	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateDocumentHandler enqueues an ingest job for an uploaded study
// document. The document itself must already sit in the S3 bucket; the
// worker fetches it by key.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentBody struct {
		Name      string `json:"name" validate:"required"`
		SourceKey string `json:"source_key" validate:"required"`
	}

	type createDocumentResponse struct {
		Message      string `json:"message"`
		DocumentName string `json:"document_name,omitempty"`
	}

	data := new(createDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App

	msg := queue.QueueIngestMsg{
		Message:      "Ingest document",
		DocumentName: data.Name,
		SourceKey:    data.SourceKey,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("Failed to publish ingest message", "document", data.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Queued document for ingestion", "document", data.Name)
	return c.JSON(http.StatusAccepted, createDocumentResponse{
		Message:      "Document queued for ingestion",
		DocumentName: data.Name,
	})
}

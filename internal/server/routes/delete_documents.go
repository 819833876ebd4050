package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/irt-labs/studygraph/internal/queue"
	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"
	pgxstore "github.com/irt-labs/studygraph/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// DeleteDocumentHandler enqueues a cascade delete for one document. The
// actual removal runs on the worker so the request returns immediately.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Missing document name",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graphStore := pgxstore.NewGraphDBStore(app.DBConn)
	if _, err := graphStore.GetDocument(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, deleteDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.QueueDeleteMsg{
		Message:      "Delete document",
		DocumentName: name,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal delete message", "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.PublishFIFO(app.Queue, queue.DeleteQueue, msgBytes); err != nil {
		logger.Error("Failed to publish delete message", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Queued document for deletion", "document", name)
	return c.JSON(http.StatusAccepted, deleteDocumentResponse{
		Message: "Document queued for deletion",
	})
}

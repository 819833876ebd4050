package routes

import (
	"errors"
	"net/http"

	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"
	pgxstore "github.com/irt-labs/studygraph/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// GetDocumentsHandler lists every known document with its pipeline status.
func GetDocumentsHandler(c echo.Context) error {
	type getDocumentsResponse struct {
		Message   string            `json:"message"`
		Documents []common.Document `json:"documents"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graphStore := pgxstore.NewGraphDBStore(app.DBConn)
	documents, err := graphStore.ListDocuments(ctx)
	if err != nil {
		logger.Error("Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentsResponse{
		Message:   "Documents retrieved",
		Documents: documents,
	})
}

// GetDocumentHandler returns one document by name.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentResponse struct {
		Message  string           `json:"message"`
		Document *common.Document `json:"document,omitempty"`
	}

	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Missing document name",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graphStore := pgxstore.NewGraphDBStore(app.DBConn)
	document, err := graphStore.GetDocument(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentResponse{
		Message:  "Document retrieved",
		Document: document,
	})
}

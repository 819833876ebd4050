package routes

import (
	"errors"
	"net/http"

	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/export"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"
	pgxstore "github.com/irt-labs/studygraph/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// GetDocumentExportHandler returns the citation-annotated triple export for
// one committed document.
func GetDocumentExportHandler(c echo.Context) error {
	type exportErrorResponse struct {
		Message string `json:"message"`
	}

	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, exportErrorResponse{
			Message: "Missing document name",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graphStore := pgxstore.NewGraphDBStore(app.DBConn)
	document, err := graphStore.GetDocument(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, exportErrorResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, exportErrorResponse{
			Message: "Internal server error",
		})
	}
	if document.Status != common.StatusCommitted {
		return c.JSON(http.StatusConflict, exportErrorResponse{
			Message: "Document is not committed",
		})
	}

	chunks, err := graphStore.GetChunks(ctx, name)
	if err != nil {
		logger.Error("Failed to load chunks", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, exportErrorResponse{
			Message: "Internal server error",
		})
	}
	triples, err := graphStore.GetTriples(ctx, name)
	if err != nil {
		logger.Error("Failed to load triples", "document", name, "err", err)
		return c.JSON(http.StatusInternalServerError, exportErrorResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, export.Build(name, chunks, triples))
}

package server

import (
	"github.com/irt-labs/studygraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler)
	apiRoutes.GET("/documents/:name", routes.GetDocumentHandler)
	apiRoutes.POST("/documents", routes.CreateDocumentHandler)
	apiRoutes.DELETE("/documents/:name", routes.DeleteDocumentHandler)
	apiRoutes.GET("/documents/:name/export", routes.GetDocumentExportHandler)

	// Search route
	apiRoutes.POST("/search", routes.SearchChunksHandler)

	// Statistics and maintenance routes
	apiRoutes.GET("/statistics", routes.GetStatisticsHandler)
	apiRoutes.POST("/reconcile", routes.ReconcileHandler)
}

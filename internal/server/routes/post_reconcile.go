package routes

import (
	"net/http"

	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReconcileHandler runs a consistency pass: repairs documents whose metadata
// sync was interrupted, sweeps orphaned graph rows and rebuilds the
// statistics snapshot.
func ReconcileHandler(c echo.Context) error {
	type reconcileResponse struct {
		Message           string                     `json:"message"`
		RepairedDocuments int                        `json:"repaired_documents"`
		OrphanedChunks    int64                      `json:"orphaned_chunks"`
		OrphanedTriples   int64                      `json:"orphaned_triples"`
		OrphanedCitations int64                      `json:"orphaned_citations"`
		Statistics        *common.StatisticsSnapshot `json:"statistics,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	report, err := app.Aggregator.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconciliation failed", "err", err)
		return c.JSON(http.StatusInternalServerError, reconcileResponse{
			Message: "Internal server error",
		})
	}

	logger.Info(
		"Reconciliation finished",
		"repaired", report.RepairedDocuments,
		"orphaned_chunks", report.Orphans.Chunks,
		"orphaned_triples", report.Orphans.Triples,
		"orphaned_citations", report.Orphans.Citations,
	)

	return c.JSON(http.StatusOK, reconcileResponse{
		Message:           "Reconciliation finished",
		RepairedDocuments: report.RepairedDocuments,
		OrphanedChunks:    report.Orphans.Chunks,
		OrphanedTriples:   report.Orphans.Triples,
		OrphanedCitations: report.Orphans.Citations,
		Statistics:        &report.Snapshot,
	})
}

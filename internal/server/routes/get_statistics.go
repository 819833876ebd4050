package routes

import (
	"net/http"

	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetStatisticsHandler returns the aggregate ingestion statistics snapshot.
func GetStatisticsHandler(c echo.Context) error {
	type getStatisticsResponse struct {
		Message    string                     `json:"message"`
		Statistics *common.StatisticsSnapshot `json:"statistics,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	snapshot, err := app.Aggregator.Snapshot(ctx)
	if err != nil {
		logger.Error("Failed to load statistics", "err", err)
		return c.JSON(http.StatusInternalServerError, getStatisticsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getStatisticsResponse{
		Message:    "Statistics retrieved",
		Statistics: &snapshot,
	})
}

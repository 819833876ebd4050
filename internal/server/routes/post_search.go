package routes

import (
	"net/http"

	"github.com/irt-labs/studygraph/internal/server/middleware"
	"github.com/irt-labs/studygraph/pkg/graph"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"
	pgxstore "github.com/irt-labs/studygraph/pkg/store/pgx"

	"github.com/labstack/echo/v4"
)

// SearchChunksHandler embeds the query text and returns the stored chunks
// closest to it, best match first.
func SearchChunksHandler(c echo.Context) error {
	type searchBody struct {
		Query string `json:"query" validate:"required"`
		Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
	}

	type searchResponse struct {
		Message string             `json:"message"`
		Matches []store.ChunkMatch `json:"matches"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graphStore := pgxstore.NewGraphDBStore(app.DBConn)
	searcher := graph.NewSearcher(graphStore, app.AiClient)

	matches, err := searcher.Search(ctx, data.Query, data.Limit)
	if err != nil {
		logger.Error("Chunk search failed", "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{
			Message: "Internal server error",
		})
	}
	if matches == nil {
		matches = []store.ChunkMatch{}
	}

	return c.JSON(http.StatusOK, searchResponse{
		Message: "Search finished",
		Matches: matches,
	})
}

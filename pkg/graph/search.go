package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/irt-labs/studygraph/pkg/ai"
	"github.com/irt-labs/studygraph/pkg/store"
)

const DefaultSearchLimit = 10

// ErrEmptyQuery reports a search request with no text to embed.
var ErrEmptyQuery = errors.New("search query is empty")

// Searcher answers free-text queries against the stored chunks by embedding
// the query and ranking chunks by cosine similarity.
type Searcher struct {
	graphStore store.GraphStore
	client     ai.GraphAIClient
}

func NewSearcher(graphStore store.GraphStore, client ai.GraphAIClient) *Searcher {
	return &Searcher{graphStore: graphStore, client: client}
}

// Search embeds query and returns the limit nearest chunks, best first.
// A non-positive limit selects DefaultSearchLimit.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]store.ChunkMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.client.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, err
	}
	return s.graphStore.SearchChunks(ctx, embedding, limit)
}

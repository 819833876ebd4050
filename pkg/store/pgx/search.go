package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/store"
)

// SearchChunks orders chunks by cosine distance to embedding and returns
// the closest limit matches. Chunks whose embedding generation was skipped
// or failed carry a NULL vector and are excluded.
func (s *GraphDBStore) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]store.ChunkMatch, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, document_name, idx, content, page_start, page_end,
			paragraph_start, paragraph_end, line_start, line_end, kind,
			token_count, oversized, approximate, extraction_incomplete,
			1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var matches []store.ChunkMatch
	for rows.Next() {
		var match store.ChunkMatch
		var kind string
		err := rows.Scan(&match.Chunk.ID, &match.Chunk.DocumentName, &match.Chunk.Index,
			&match.Chunk.Content, &match.Chunk.PageStart, &match.Chunk.PageEnd,
			&match.Chunk.ParagraphStart, &match.Chunk.ParagraphEnd,
			&match.Chunk.LineStart, &match.Chunk.LineEnd, &kind,
			&match.Chunk.TokenCount, &match.Chunk.Oversized, &match.Chunk.Approximate,
			&match.Chunk.ExtractionIncomplete, &match.Similarity)
		if err != nil {
			return nil, err
		}
		match.Chunk.Kind = common.ChunkKind(kind)
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

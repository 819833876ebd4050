package pgx

import (
	"context"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/common"
)

// GetChunks reads a document's chunks in index order. Embeddings are not
// loaded; readers of chunk text and citations never need them.
func (s *GraphDBStore) GetChunks(ctx context.Context, documentName string) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, document_name, idx, content, page_start, page_end,
			paragraph_start, paragraph_end, line_start, line_end, kind,
			token_count, oversized, approximate, extraction_incomplete
		 FROM chunks WHERE document_name = $1 ORDER BY idx`, documentName)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks of %s: %w", documentName, err)
	}
	defer rows.Close()

	var chunks []common.Chunk
	for rows.Next() {
		var chunk common.Chunk
		var kind string
		err := rows.Scan(&chunk.ID, &chunk.DocumentName, &chunk.Index, &chunk.Content,
			&chunk.PageStart, &chunk.PageEnd, &chunk.ParagraphStart, &chunk.ParagraphEnd,
			&chunk.LineStart, &chunk.LineEnd, &kind, &chunk.TokenCount,
			&chunk.Oversized, &chunk.Approximate, &chunk.ExtractionIncomplete)
		if err != nil {
			return nil, err
		}
		chunk.Kind = common.ChunkKind(kind)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// GetTriples reads a document's triples with their citations attached.
func (s *GraphDBStore) GetTriples(ctx context.Context, documentName string) ([]common.Triple, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, chunk_id, subject, predicate, object, confidence
		 FROM triples WHERE document_name = $1 ORDER BY id`, documentName)
	if err != nil {
		return nil, fmt.Errorf("failed to read triples of %s: %w", documentName, err)
	}
	defer rows.Close()

	var triples []common.Triple
	index := make(map[string]int)
	for rows.Next() {
		var triple common.Triple
		err := rows.Scan(&triple.ID, &triple.ChunkID, &triple.Subject,
			&triple.Predicate, &triple.Object, &triple.Confidence)
		if err != nil {
			return nil, err
		}
		index[triple.ID] = len(triples)
		triples = append(triples, triple)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(triples) == 0 {
		return nil, nil
	}

	citationRows, err := s.conn.Query(ctx,
		`SELECT c.triple_id, c.page, c.paragraph, c.line
		 FROM citations c
		 JOIN triples t ON t.id = c.triple_id
		 WHERE t.document_name = $1
		 ORDER BY c.id`, documentName)
	if err != nil {
		return nil, fmt.Errorf("failed to read citations of %s: %w", documentName, err)
	}
	defer citationRows.Close()

	for citationRows.Next() {
		var tripleID string
		var citation common.Citation
		if err := citationRows.Scan(&tripleID, &citation.Page, &citation.Paragraph, &citation.Line); err != nil {
			return nil, err
		}
		if i, ok := index[tripleID]; ok {
			triples[i].Citations = append(triples[i].Citations, citation)
		}
	}
	return triples, citationRows.Err()
}

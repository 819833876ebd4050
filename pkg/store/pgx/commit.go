package pgx

import (
	"context"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const insertBatchSize = 1000

const insertChunkSQL = `
INSERT INTO chunks (id, document_name, idx, content, page_start, page_end,
	paragraph_start, paragraph_end, line_start, line_end, kind, token_count,
	embedding, oversized, approximate, extraction_incomplete)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO NOTHING`

const insertTripleSQL = `
INSERT INTO triples (id, chunk_id, document_name, subject, predicate, object, confidence)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

const insertCitationSQL = `
INSERT INTO citations (triple_id, page, paragraph, line)
VALUES ($1, $2, $3, $4)`

// CommitDocument writes the complete extraction result in one transaction.
// The document must be in committing state and stays there; the writer
// flips it to committed only after the metadata store is synced too, so a
// reader never sees a committed document with half its graph missing.
func (s *GraphDBStore) CommitDocument(
	ctx context.Context,
	doc common.Document,
	chunks []common.Chunk,
	triples []common.Triple,
) error {
	logger.Debug("[Store][CommitDocument] Writing document graph",
		"document", doc.Name, "chunks", len(chunks), "triples", len(triples))

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET page_count = $2, total_chunks = $3, total_tokens = $4, cost = $5
		 WHERE name = $1 AND status = $6`,
		doc.Name, doc.PageCount, doc.TotalChunks, doc.TotalTokens, doc.Cost,
		string(common.StatusCommitting))
	if err != nil {
		return fmt.Errorf("failed to finalize document %s: %w", doc.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStatusConflict
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := insertTriples(ctx, tx, doc.Name, triples); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertChunks(ctx context.Context, tx pgxv5.Tx, chunks []common.Chunk) error {
	return store.ChunkRange(len(chunks), insertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, chunk := range chunks[start:end] {
			var embedding any
			if len(chunk.Embedding) > 0 {
				embedding = pgvector.NewVector(chunk.Embedding)
			}
			batch.Queue(insertChunkSQL,
				chunk.ID, chunk.DocumentName, chunk.Index, chunk.Content,
				chunk.PageStart, chunk.PageEnd, chunk.ParagraphStart, chunk.ParagraphEnd,
				chunk.LineStart, chunk.LineEnd, string(chunk.Kind), chunk.TokenCount,
				embedding, chunk.Oversized, chunk.Approximate, chunk.ExtractionIncomplete)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

func insertTriples(ctx context.Context, tx pgxv5.Tx, documentName string, triples []common.Triple) error {
	err := store.ChunkRange(len(triples), insertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, triple := range triples[start:end] {
			batch.Queue(insertTripleSQL,
				triple.ID, triple.ChunkID, documentName,
				triple.Subject, triple.Predicate, triple.Object, triple.Confidence)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert triples: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var citations int
	for _, triple := range triples {
		citations += len(triple.Citations)
	}
	if citations == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	queued := 0
	for _, triple := range triples {
		for _, c := range triple.Citations {
			batch.Queue(insertCitationSQL, triple.ID, c.Page, c.Paragraph, c.Line)
			queued++
			if queued == insertBatchSize {
				if err := tx.SendBatch(ctx, batch).Close(); err != nil {
					return fmt.Errorf("failed to insert citations: %w", err)
				}
				batch = &pgxv5.Batch{}
				queued = 0
			}
		}
	}
	if queued > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert citations: %w", err)
		}
	}
	return nil
}

package pgx

import (
	"context"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// GatherClosure reads everything reachable from a document in one place so
// the following delete reports exact counts, not estimates.
func (s *GraphDBStore) GatherClosure(ctx context.Context, name string) (*store.Closure, error) {
	doc, err := s.GetDocument(ctx, name)
	if err != nil {
		return nil, err
	}
	closure := &store.Closure{Document: *doc}

	rows, err := s.conn.Query(ctx,
		`SELECT id FROM chunks WHERE document_name = $1 ORDER BY idx`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to gather chunks of %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		closure.ChunkIDs = append(closure.ChunkIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tripleRows, err := s.conn.Query(ctx,
		`SELECT id FROM triples WHERE document_name = $1 ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to gather triples of %s: %w", name, err)
	}
	defer tripleRows.Close()
	for tripleRows.Next() {
		var id string
		if err := tripleRows.Scan(&id); err != nil {
			return nil, err
		}
		closure.TripleIDs = append(closure.TripleIDs, id)
	}
	if err := tripleRows.Err(); err != nil {
		return nil, err
	}

	err = s.conn.QueryRow(ctx,
		`SELECT count(*) FROM citations c
		 JOIN triples t ON t.id = c.triple_id
		 WHERE t.document_name = $1`, name).Scan(&closure.Citations)
	if err != nil {
		return nil, fmt.Errorf("failed to count citations of %s: %w", name, err)
	}

	return closure, nil
}

// DeleteClosure removes the gathered rows depth-first in one transaction:
// citations, then triples, then chunks, then the document itself.
func (s *GraphDBStore) DeleteClosure(ctx context.Context, closure *store.Closure) error {
	name := closure.Document.Name
	logger.Debug("[Store][DeleteClosure] Cascading delete",
		"document", name, "chunks", len(closure.ChunkIDs), "triples", len(closure.TripleIDs))

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteDependents(ctx, tx, name); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}

	return tx.Commit(ctx)
}

// PurgeDocumentRows drops a document's dependent rows but keeps the
// document itself, so a retry-reset starts from a clean slate.
func (s *GraphDBStore) PurgeDocumentRows(ctx context.Context, name string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteDependents(ctx, tx, name); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func deleteDependents(ctx context.Context, tx pgxv5.Tx, name string) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM citations WHERE triple_id IN
			(SELECT id FROM triples WHERE document_name = $1)`, name)
	if err != nil {
		return fmt.Errorf("failed to delete citations of %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM triples WHERE document_name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete triples of %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", name, err)
	}
	return nil
}

// SweepOrphans removes rows whose parent vanished, walking parent tables
// first so each pass also catches the orphans the previous pass exposed.
func (s *GraphDBStore) SweepOrphans(ctx context.Context) (store.OrphanReport, error) {
	var report store.OrphanReport

	tag, err := s.conn.Exec(ctx,
		`DELETE FROM chunks WHERE NOT EXISTS
			(SELECT 1 FROM documents d WHERE d.name = chunks.document_name)`)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphaned chunks: %w", err)
	}
	report.Chunks = tag.RowsAffected()

	tag, err = s.conn.Exec(ctx,
		`DELETE FROM triples WHERE
			NOT EXISTS (SELECT 1 FROM documents d WHERE d.name = triples.document_name)
			OR NOT EXISTS (SELECT 1 FROM chunks c WHERE c.id = triples.chunk_id)`)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphaned triples: %w", err)
	}
	report.Triples = tag.RowsAffected()

	tag, err = s.conn.Exec(ctx,
		`DELETE FROM citations WHERE NOT EXISTS
			(SELECT 1 FROM triples t WHERE t.id = citations.triple_id)`)
	if err != nil {
		return report, fmt.Errorf("failed to sweep orphaned citations: %w", err)
	}
	report.Citations = tag.RowsAffected()

	if report.Chunks > 0 || report.Triples > 0 || report.Citations > 0 {
		logger.Info("[Store][SweepOrphans] Removed orphaned rows",
			"chunks", report.Chunks, "triples", report.Triples, "citations", report.Citations)
	}
	return report, nil
}

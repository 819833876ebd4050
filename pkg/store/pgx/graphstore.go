// Package pgx implements the graph store on PostgreSQL with pgvector for
// chunk embeddings.
package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStore implements store.GraphStore on a pgx connection or pool.
type GraphDBStore struct {
	conn pgxIConn
}

func NewGraphDBStore(conn pgxIConn) *GraphDBStore {
	return &GraphDBStore{conn: conn}
}

const upsertDocumentSQL = `
INSERT INTO documents (name, source_path, uploaded_at, page_count, total_chunks, total_tokens, cost, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (name) DO UPDATE SET
	source_path = EXCLUDED.source_path,
	uploaded_at = EXCLUDED.uploaded_at,
	page_count = EXCLUDED.page_count,
	total_chunks = EXCLUDED.total_chunks,
	total_tokens = EXCLUDED.total_tokens,
	cost = EXCLUDED.cost,
	status = EXCLUDED.status`

func (s *GraphDBStore) UpsertDocument(ctx context.Context, doc common.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(ctx, upsertDocumentSQL,
		doc.Name, doc.SourcePath, doc.UploadedAt, doc.PageCount,
		doc.TotalChunks, doc.TotalTokens, doc.Cost, string(doc.Status))
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Name, err)
	}
	return nil
}

const selectDocumentSQL = `
SELECT name, source_path, uploaded_at, page_count, total_chunks, total_tokens, cost, status
FROM documents`

func scanDocument(row pgxv5.Row) (*common.Document, error) {
	var doc common.Document
	var status string
	err := row.Scan(&doc.Name, &doc.SourcePath, &doc.UploadedAt, &doc.PageCount,
		&doc.TotalChunks, &doc.TotalTokens, &doc.Cost, &status)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc.Status = common.DocumentStatus(status)
	return &doc, nil
}

func (s *GraphDBStore) GetDocument(ctx context.Context, name string) (*common.Document, error) {
	row := s.conn.QueryRow(ctx, selectDocumentSQL+` WHERE name = $1`, name)
	return scanDocument(row)
}

func (s *GraphDBStore) ListDocuments(ctx context.Context) ([]common.Document, error) {
	rows, err := s.conn.Query(ctx, selectDocumentSQL+` ORDER BY uploaded_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []common.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateStatus is a compare-and-set: the update only lands when the stored
// status still matches `from`.
func (s *GraphDBStore) UpdateStatus(ctx context.Context, name string, from, to common.DocumentStatus) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE documents SET status = $3 WHERE name = $1 AND status = $2`,
		name, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetDocument(ctx, name); err != nil {
			return err
		}
		return store.ErrStatusConflict
	}
	return nil
}

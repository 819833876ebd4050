// Package store defines the graph-store boundary. The graph store owns the
// document, chunk, triple and citation rows; document metadata lives in the
// separate metadata store behind pkg/meta.
package store

import (
	"context"
	"errors"

	"github.com/irt-labs/studygraph/pkg/common"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrStatusConflict is returned when a compare-and-set status update
	// finds the document in a different state than expected.
	ErrStatusConflict = errors.New("document status changed concurrently")
)

// Closure is everything reachable from one document, gathered in a single
// read so a cascade delete knows the exact counts it will remove.
type Closure struct {
	Document  common.Document
	ChunkIDs  []string
	TripleIDs []string
	Citations int64
}

// Delta converts the closure into the negative statistics change a cascade
// delete must apply.
func (c *Closure) Delta() common.StatisticsDelta {
	return common.StatisticsDelta{
		Documents: 1,
		Chunks:    int64(len(c.ChunkIDs)),
		Triples:   int64(len(c.TripleIDs)),
		Tokens:    int64(c.Document.TotalTokens),
		Cost:      c.Document.Cost,
	}.Negate()
}

// ChunkMatch pairs a chunk with its similarity to a search embedding,
// where 1 means identical direction and 0 means orthogonal.
type ChunkMatch struct {
	Chunk      common.Chunk `json:"chunk"`
	Similarity float64      `json:"similarity"`
}

// OrphanReport counts rows removed by a sweep of interrupted cascades.
type OrphanReport struct {
	Chunks    int64
	Triples   int64
	Citations int64
}

// GraphStore persists the knowledge graph. Implementations must make
// CommitDocument atomic: either every chunk, triple and citation lands, or
// nothing changes.
type GraphStore interface {
	UpsertDocument(ctx context.Context, doc common.Document) error
	GetDocument(ctx context.Context, name string) (*common.Document, error)
	ListDocuments(ctx context.Context) ([]common.Document, error)

	// UpdateStatus moves a document from one status to another, failing
	// with ErrStatusConflict when the stored status is not `from`.
	UpdateStatus(ctx context.Context, name string, from, to common.DocumentStatus) error

	// CommitDocument writes the full extraction result in one scoped
	// transaction. The document must be committing and stays there; the
	// caller flips it to committed once the metadata store is synced.
	CommitDocument(ctx context.Context, doc common.Document, chunks []common.Chunk, triples []common.Triple) error

	// GatherClosure reads the document and every dependent row ID in one
	// shot, capturing the counts a following delete must report.
	GatherClosure(ctx context.Context, name string) (*Closure, error)

	// DeleteClosure removes the gathered rows depth-first (citations,
	// triples, chunks, document) in one transaction.
	DeleteClosure(ctx context.Context, closure *Closure) error

	// PurgeDocumentRows drops a document's chunks, triples and citations
	// but keeps the document row, used by retry-reset before re-ingest.
	PurgeDocumentRows(ctx context.Context, name string) error

	// GetChunks and GetTriples read a committed document back for export.
	GetChunks(ctx context.Context, documentName string) ([]common.Chunk, error)
	GetTriples(ctx context.Context, documentName string) ([]common.Triple, error)

	// SearchChunks returns the limit chunks nearest to embedding by
	// cosine distance, best first. Chunks stored without a vector are
	// never matched.
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkMatch, error)

	// SweepOrphans deletes rows whose parent vanished in an interrupted
	// cascade and reports what it removed.
	SweepOrphans(ctx context.Context) (OrphanReport, error)
}

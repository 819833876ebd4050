package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/stats"
	"github.com/irt-labs/studygraph/pkg/store"
)

// ErrMetadataPending reports a commit whose graph-store half landed but
// whose metadata-store half did not. The extracted knowledge is kept; the
// document carries the metadata_pending flag until reconciliation repairs
// it. Callers must not retry the commit.
var ErrMetadataPending = errors.New("graph committed, metadata sync pending")

// Writer runs the staged commit across the two stores: first the graph
// rows in one document-scoped transaction, then the upload record and
// statistics delta, and only then the flip to committed.
type Writer struct {
	graphStore store.GraphStore
	metaStore  meta.MetaStore
	aggregator *stats.Aggregator
}

func NewWriter(graphStore store.GraphStore, metaStore meta.MetaStore, aggregator *stats.Aggregator) *Writer {
	return &Writer{
		graphStore: graphStore,
		metaStore:  metaStore,
		aggregator: aggregator,
	}
}

// Commit publishes a fully processed document. The document must be in
// committing state. Re-committing an already committed document is a
// detected no-op before any write.
func (w *Writer) Commit(
	ctx context.Context,
	doc common.Document,
	chunks []common.Chunk,
	triples []common.Triple,
) error {
	existing, err := w.graphStore.GetDocument(ctx, doc.Name)
	if err != nil {
		return err
	}
	if existing.Status == common.StatusCommitted {
		logger.Info("document already committed, skipping", "document", doc.Name)
		return nil
	}
	if existing.Status != common.StatusCommitting {
		return fmt.Errorf("cannot commit document %s in status %s: %w",
			doc.Name, existing.Status, store.ErrStatusConflict)
	}

	deduped := DedupeTriples(triples)
	if dropped := len(triples) - len(deduped); dropped > 0 {
		logger.Debug("deduplicated overlap triples", "document", doc.Name, "dropped", dropped)
	}

	if err := w.graphStore.CommitDocument(ctx, doc, chunks, deduped); err != nil {
		return fmt.Errorf("graph store commit of %s failed: %w", doc.Name, err)
	}

	if err := w.syncMetadata(ctx, doc, len(chunks), len(deduped)); err != nil {
		logger.Error("metadata sync failed after graph commit",
			"document", doc.Name, "error", err)
		if ferr := w.graphStore.UpdateStatus(ctx, doc.Name,
			common.StatusCommitting, common.StatusMetadataPending); ferr != nil {
			return fmt.Errorf("failed to flag metadata_pending for %s: %w", doc.Name, ferr)
		}
		return fmt.Errorf("%w: %s", ErrMetadataPending, doc.Name)
	}

	if err := w.graphStore.UpdateStatus(ctx, doc.Name,
		common.StatusCommitting, common.StatusCommitted); err != nil {
		return err
	}

	logger.Info("document committed",
		"document", doc.Name, "chunks", len(chunks), "triples", len(deduped))
	return nil
}

func (w *Writer) syncMetadata(ctx context.Context, doc common.Document, chunks, triples int) error {
	record := common.UploadRecord{
		DocumentName: doc.Name,
		UploadedAt:   doc.UploadedAt,
		TotalChunks:  chunks,
		TotalTriples: triples,
		TokensUsed:   doc.TotalTokens,
		Cost:         doc.Cost,
		Status:       string(common.StatusCommitted),
	}
	if err := w.metaStore.UpsertUploadRecord(ctx, record); err != nil {
		return err
	}

	_, err := w.aggregator.ApplyDelta(ctx, common.StatisticsDelta{
		Documents: 1,
		Chunks:    int64(chunks),
		Triples:   int64(triples),
		Tokens:    int64(doc.TotalTokens),
		Cost:      doc.Cost,
	})
	return err
}

package graph

import (
	"context"
	"errors"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/stats"
	"github.com/irt-labs/studygraph/pkg/store"
)

// DeletionCoordinator removes a document and everything it owns from both
// stores: the dependency closure is gathered in one read so the statistics
// decrement is the exact count removed, never a recomputation.
type DeletionCoordinator struct {
	graphStore store.GraphStore
	metaStore  meta.MetaStore
	aggregator *stats.Aggregator
}

func NewDeletionCoordinator(graphStore store.GraphStore, metaStore meta.MetaStore, aggregator *stats.Aggregator) *DeletionCoordinator {
	return &DeletionCoordinator{
		graphStore: graphStore,
		metaStore:  metaStore,
		aggregator: aggregator,
	}
}

// Delete cascades over one document. The returned delta is the (negative)
// statistics change that was applied; a document that never reached the
// snapshot produces a zero delta.
func (d *DeletionCoordinator) Delete(ctx context.Context, name string) (common.StatisticsDelta, error) {
	var zero common.StatisticsDelta

	closure, err := d.graphStore.GatherClosure(ctx, name)
	if err != nil {
		return zero, err
	}

	// A record exists only for documents counted in the snapshot; its
	// absence means the document failed before metadata sync and must
	// not be decremented.
	counted := true
	if _, err := d.metaStore.GetUploadRecord(ctx, name); err != nil {
		if !errors.Is(err, meta.ErrRecordNotFound) {
			return zero, err
		}
		counted = false
	}

	if err := d.graphStore.DeleteClosure(ctx, closure); err != nil {
		return zero, err
	}
	if err := d.metaStore.DeleteUploadRecord(ctx, name); err != nil {
		return zero, err
	}

	delta := zero
	if counted {
		delta = closure.Delta()
		if _, err := d.aggregator.ApplyDelta(ctx, delta); err != nil {
			return zero, err
		}
	}

	logger.Info("document deleted",
		"document", name,
		"chunks", len(closure.ChunkIDs),
		"triples", len(closure.TripleIDs),
		"citations", closure.Citations)
	return delta, nil
}

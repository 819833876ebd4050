// Package stats owns the process-wide statistics snapshot. All mutation
// funnels through the Aggregator so concurrent commits and deletes cannot
// interleave their read-modify-write cycles, and Reconcile can rebuild the
// snapshot from upload records whenever the two stores drift.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/store"
)

type Aggregator struct {
	mu         sync.Mutex
	metaStore  meta.MetaStore
	graphStore store.GraphStore
	now        func() time.Time
}

func NewAggregator(metaStore meta.MetaStore, graphStore store.GraphStore) *Aggregator {
	return &Aggregator{
		metaStore:  metaStore,
		graphStore: graphStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current aggregate.
func (a *Aggregator) Snapshot(ctx context.Context) (common.StatisticsSnapshot, error) {
	return a.metaStore.GetSnapshot(ctx)
}

// ApplyDelta applies one signed change to the snapshot. The read, the
// arithmetic and the write happen under one lock, so two concurrent deltas
// can never both start from the same snapshot.
func (a *Aggregator) ApplyDelta(ctx context.Context, delta common.StatisticsDelta) (common.StatisticsSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot, err := a.metaStore.GetSnapshot(ctx)
	if err != nil {
		return common.StatisticsSnapshot{}, err
	}
	snapshot = snapshot.Add(delta, a.now())
	if err := a.metaStore.ReplaceSnapshot(ctx, snapshot); err != nil {
		return common.StatisticsSnapshot{}, err
	}
	return snapshot, nil
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	RepairedDocuments int
	Orphans           store.OrphanReport
	Snapshot          common.StatisticsSnapshot
}

// Reconcile repairs documents stuck in metadata_pending, sweeps orphaned
// graph rows, then rebuilds the snapshot from the upload records. It is
// safe to run at any time; a pass over a consistent system changes nothing
// but the snapshot timestamp.
func (a *Aggregator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	docs, err := a.graphStore.ListDocuments(ctx)
	if err != nil {
		return report, err
	}
	for _, doc := range docs {
		if doc.Status != common.StatusMetadataPending {
			continue
		}
		if err := a.repairDocument(ctx, doc); err != nil {
			return report, err
		}
		report.RepairedDocuments++
	}

	report.Orphans, err = a.graphStore.SweepOrphans(ctx)
	if err != nil {
		return report, err
	}

	snapshot, err := a.rebuildSnapshot(ctx)
	if err != nil {
		return report, err
	}
	report.Snapshot = snapshot

	logger.Info("reconciliation pass completed",
		"repaired", report.RepairedDocuments,
		"orphaned_chunks", report.Orphans.Chunks,
		"orphaned_triples", report.Orphans.Triples)
	return report, nil
}

// repairDocument finishes the metadata half of an interrupted staged
// commit: the graph rows landed but the upload record never did.
func (a *Aggregator) repairDocument(ctx context.Context, doc common.Document) error {
	closure, err := a.graphStore.GatherClosure(ctx, doc.Name)
	if err != nil {
		return err
	}

	record := common.UploadRecord{
		DocumentName: doc.Name,
		UploadedAt:   doc.UploadedAt,
		TotalChunks:  len(closure.ChunkIDs),
		TotalTriples: len(closure.TripleIDs),
		TokensUsed:   doc.TotalTokens,
		Cost:         doc.Cost,
		Status:       string(common.StatusCommitted),
	}
	if err := a.metaStore.UpsertUploadRecord(ctx, record); err != nil {
		return err
	}
	if err := a.graphStore.UpdateStatus(ctx, doc.Name,
		common.StatusMetadataPending, common.StatusCommitted); err != nil {
		return err
	}

	logger.Info("repaired interrupted metadata sync", "document", doc.Name)
	return nil
}

// rebuildSnapshot recomputes the aggregate from the upload records, the
// authoritative per-document ledger, and replaces the stored snapshot.
func (a *Aggregator) rebuildSnapshot(ctx context.Context) (common.StatisticsSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.metaStore.ListUploadRecords(ctx)
	if err != nil {
		return common.StatisticsSnapshot{}, err
	}

	snapshot := common.StatisticsSnapshot{UpdatedAt: a.now()}
	for _, record := range records {
		if record.Status != string(common.StatusCommitted) {
			continue
		}
		snapshot.TotalDocuments++
		snapshot.TotalChunks += int64(record.TotalChunks)
		snapshot.TotalTriples += int64(record.TotalTriples)
		snapshot.TotalTokens += int64(record.TokensUsed)
		snapshot.TotalCost += record.Cost
	}

	if err := a.metaStore.ReplaceSnapshot(ctx, snapshot); err != nil {
		return common.StatisticsSnapshot{}, err
	}
	return snapshot, nil
}

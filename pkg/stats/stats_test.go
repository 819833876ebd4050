package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/store"
)

type fakeMetaStore struct {
	mu       sync.Mutex
	records  map[string]common.UploadRecord
	snapshot common.StatisticsSnapshot
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{records: make(map[string]common.UploadRecord)}
}

func (f *fakeMetaStore) UpsertUploadRecord(ctx context.Context, record common.UploadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.DocumentName] = record
	return nil
}

func (f *fakeMetaStore) GetUploadRecord(ctx context.Context, name string) (*common.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[name]
	if !ok {
		return nil, meta.ErrRecordNotFound
	}
	return &record, nil
}

func (f *fakeMetaStore) ListUploadRecords(ctx context.Context) ([]common.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []common.UploadRecord
	for _, record := range f.records {
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeMetaStore) DeleteUploadRecord(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, name)
	return nil
}

func (f *fakeMetaStore) GetSnapshot(ctx context.Context) (common.StatisticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeMetaStore) ReplaceSnapshot(ctx context.Context, snapshot common.StatisticsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
	return nil
}

type fakeGraphStore struct {
	mu       sync.Mutex
	docs     map[string]common.Document
	closures map[string]*store.Closure
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{
		docs:     make(map[string]common.Document),
		closures: make(map[string]*store.Closure),
	}
}

func (f *fakeGraphStore) UpsertDocument(ctx context.Context, doc common.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.Name] = doc
	return nil
}

func (f *fakeGraphStore) GetDocument(ctx context.Context, name string) (*common.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeGraphStore) ListDocuments(ctx context.Context) ([]common.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []common.Document
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (f *fakeGraphStore) UpdateStatus(ctx context.Context, name string, from, to common.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[name]
	if !ok {
		return store.ErrNotFound
	}
	if doc.Status != from {
		return store.ErrStatusConflict
	}
	doc.Status = to
	f.docs[name] = doc
	return nil
}

func (f *fakeGraphStore) CommitDocument(ctx context.Context, doc common.Document, chunks []common.Chunk, triples []common.Triple) error {
	return nil
}

func (f *fakeGraphStore) GatherClosure(ctx context.Context, name string) (*store.Closure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.closures[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return closure, nil
}

func (f *fakeGraphStore) DeleteClosure(ctx context.Context, closure *store.Closure) error { return nil }
func (f *fakeGraphStore) PurgeDocumentRows(ctx context.Context, name string) error        { return nil }
func (f *fakeGraphStore) GetChunks(ctx context.Context, name string) ([]common.Chunk, error) {
	return nil, nil
}
func (f *fakeGraphStore) GetTriples(ctx context.Context, name string) ([]common.Triple, error) {
	return nil, nil
}
func (f *fakeGraphStore) SweepOrphans(ctx context.Context) (store.OrphanReport, error) {
	return store.OrphanReport{}, nil
}
func (f *fakeGraphStore) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]store.ChunkMatch, error) {
	return nil, nil
}

func TestApplyDeltaSerializesConcurrentWrites(t *testing.T) {
	aggregator := NewAggregator(newFakeMetaStore(), newFakeGraphStore())
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := aggregator.ApplyDelta(ctx, common.StatisticsDelta{
				Documents: 1, Chunks: 2, Triples: 3, Tokens: 100, Cost: 0.5,
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	snapshot, err := aggregator.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.TotalDocuments != workers || snapshot.TotalChunks != 2*workers ||
		snapshot.TotalTriples != 3*workers || snapshot.TotalTokens != 100*workers {
		t.Errorf("lost updates under concurrency: %+v", snapshot)
	}
}

func TestApplyNegativeDeltaOnDelete(t *testing.T) {
	metaStore := newFakeMetaStore()
	metaStore.snapshot = common.StatisticsSnapshot{
		TotalDocuments: 2, TotalChunks: 10, TotalTriples: 20, TotalTokens: 5000, TotalCost: 1.5,
	}
	aggregator := NewAggregator(metaStore, newFakeGraphStore())

	closure := &store.Closure{
		Document:  common.Document{Name: "doc", TotalTokens: 2000, Cost: 0.5},
		ChunkIDs:  []string{"a", "b", "c"},
		TripleIDs: []string{"t1", "t2"},
	}
	snapshot, err := aggregator.ApplyDelta(context.Background(), closure.Delta())
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.TotalDocuments != 1 || snapshot.TotalChunks != 7 ||
		snapshot.TotalTriples != 18 || snapshot.TotalTokens != 3000 || snapshot.TotalCost != 1.0 {
		t.Errorf("delete delta not applied exactly: %+v", snapshot)
	}
}

func TestReconcileRepairsMetadataPending(t *testing.T) {
	metaStore := newFakeMetaStore()
	graphStore := newFakeGraphStore()
	ctx := context.Background()

	uploadedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := common.Document{
		Name: "protocol.txt", UploadedAt: uploadedAt,
		TotalTokens: 4200, Cost: 0.02, Status: common.StatusMetadataPending,
	}
	graphStore.docs[doc.Name] = doc
	graphStore.closures[doc.Name] = &store.Closure{
		Document:  doc,
		ChunkIDs:  []string{"c0", "c1"},
		TripleIDs: []string{"t0", "t1", "t2"},
	}

	aggregator := NewAggregator(metaStore, graphStore)
	report, err := aggregator.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.RepairedDocuments != 1 {
		t.Errorf("expected 1 repaired document, got %d", report.RepairedDocuments)
	}

	record, err := metaStore.GetUploadRecord(ctx, doc.Name)
	if err != nil {
		t.Fatalf("upload record not created: %v", err)
	}
	if record.TotalChunks != 2 || record.TotalTriples != 3 || record.TokensUsed != 4200 {
		t.Errorf("repaired record wrong: %+v", record)
	}
	if record.Status != string(common.StatusCommitted) {
		t.Errorf("repaired record status: %s", record.Status)
	}

	repaired, _ := graphStore.GetDocument(ctx, doc.Name)
	if repaired.Status != common.StatusCommitted {
		t.Errorf("document not flipped to committed: %s", repaired.Status)
	}

	if report.Snapshot.TotalDocuments != 1 || report.Snapshot.TotalTriples != 3 {
		t.Errorf("snapshot not rebuilt from records: %+v", report.Snapshot)
	}
}

func TestReconcileRebuildsDriftedSnapshot(t *testing.T) {
	metaStore := newFakeMetaStore()
	graphStore := newFakeGraphStore()
	ctx := context.Background()

	metaStore.records["a"] = common.UploadRecord{
		DocumentName: "a", TotalChunks: 4, TotalTriples: 8, TokensUsed: 1000, Cost: 0.1,
		Status: string(common.StatusCommitted),
	}
	metaStore.records["b"] = common.UploadRecord{
		DocumentName: "b", TotalChunks: 2, TotalTriples: 2, TokensUsed: 500, Cost: 0.05,
		Status: string(common.StatusFailed),
	}
	// Drifted aggregate that matches neither record.
	metaStore.snapshot = common.StatisticsSnapshot{TotalDocuments: 99, TotalTriples: 999}

	aggregator := NewAggregator(metaStore, graphStore)
	report, err := aggregator.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Only the committed record counts.
	if report.Snapshot.TotalDocuments != 1 || report.Snapshot.TotalChunks != 4 ||
		report.Snapshot.TotalTriples != 8 || report.Snapshot.TotalTokens != 1000 {
		t.Errorf("snapshot not rebuilt correctly: %+v", report.Snapshot)
	}

	stored, _ := metaStore.GetSnapshot(ctx)
	if stored.TotalDocuments != 1 {
		t.Errorf("rebuilt snapshot not persisted: %+v", stored)
	}
}

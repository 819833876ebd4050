// Package graph orchestrates document ingestion: span extraction, chunking,
// concurrent embedding and triple extraction, and the staged commit into
// the two stores.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/irt-labs/studygraph/internal/util"
	"github.com/irt-labs/studygraph/pkg/ai"
	"github.com/irt-labs/studygraph/pkg/chunker"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/cost"
	"github.com/irt-labs/studygraph/pkg/extract"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/source"
	"github.com/irt-labs/studygraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultParallelMax = 4
	DefaultMaxRetries  = 3
)

// ErrEmptyDocument reports a document that produced no chunks without the
// pipeline being configured to accept empty documents.
var ErrEmptyDocument = errors.New("document produced no chunks")

// ErrDocumentBusy reports an ingest request for a document that is already
// moving through the pipeline.
var ErrDocumentBusy = errors.New("document is already being processed")

type PipelineConfig struct {
	ParallelMax int
	MaxRetries  int
	// AllowEmpty commits documents with zero chunks instead of failing
	// them. Off by default; an empty clinical protocol is almost always
	// an extraction bug.
	AllowEmpty bool
}

type Pipeline struct {
	spans       source.SpanSource
	chunks      *chunker.Chunker
	extractor   *extract.TripleExtractor
	client      ai.GraphAIClient
	graphStore  store.GraphStore
	writer      *Writer
	tracker     *cost.Tracker
	parallelMax int
	maxRetries  int
	allowEmpty  bool
}

func NewPipeline(
	spans source.SpanSource,
	chunks *chunker.Chunker,
	extractor *extract.TripleExtractor,
	client ai.GraphAIClient,
	graphStore store.GraphStore,
	writer *Writer,
	tracker *cost.Tracker,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.ParallelMax <= 0 {
		cfg.ParallelMax = DefaultParallelMax
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Pipeline{
		spans:       spans,
		chunks:      chunks,
		extractor:   extractor,
		client:      client,
		graphStore:  graphStore,
		writer:      writer,
		tracker:     tracker,
		parallelMax: cfg.ParallelMax,
		maxRetries:  cfg.MaxRetries,
		allowEmpty:  cfg.AllowEmpty,
	}
}

// Process ingests one document end to end. Any failure before the staged
// commit leaves the document in failed state with no graph rows visible;
// ErrMetadataPending passes through so the caller knows not to retry.
func (p *Pipeline) Process(ctx context.Context, in source.Input) error {
	doc, err := p.prepareDocument(ctx, in)
	if err != nil {
		return err
	}
	if doc == nil {
		// Already committed, idempotent no-op.
		return nil
	}

	current := common.StatusPending
	advance := func(to common.DocumentStatus) error {
		if err := p.graphStore.UpdateStatus(ctx, doc.Name, current, to); err != nil {
			return err
		}
		current = to
		return nil
	}
	fail := func(cause error) error {
		// Status flips must outlive the cancellation that caused them.
		flipCtx := context.WithoutCancel(ctx)
		if err := p.graphStore.UpdateStatus(flipCtx, doc.Name, current, common.StatusFailed); err != nil {
			logger.Error("failed to mark document failed", "document", doc.Name, "error", err)
		}
		return cause
	}

	if err := advance(common.StatusChunking); err != nil {
		return err
	}

	spans, err := p.spans.Extract(ctx, in)
	if err != nil {
		return fail(&source.ExtractionError{Document: doc.Name, Err: err})
	}
	chunks, err := p.chunks.Chunk(doc.Name, spans)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 && !p.allowEmpty {
		return fail(fmt.Errorf("%w: %s", ErrEmptyDocument, doc.Name))
	}

	if err := advance(common.StatusExtracting); err != nil {
		return fail(err)
	}

	triples, err := p.processChunks(ctx, chunks)
	if err != nil {
		return fail(err)
	}

	p.finalizeCounts(doc, chunks)

	if err := advance(common.StatusCommitting); err != nil {
		return fail(err)
	}

	if err := p.writer.Commit(ctx, *doc, chunks, triples); err != nil {
		if errors.Is(err, ErrMetadataPending) {
			return err
		}
		return fail(err)
	}
	return nil
}

// prepareDocument resolves the document row the run starts from. A new
// name gets a pending row; a failed document is retry-reset, discarding
// any partially written rows first; a committed document short-circuits
// to nil; anything in flight is refused.
func (p *Pipeline) prepareDocument(ctx context.Context, in source.Input) (*common.Document, error) {
	doc, err := p.graphStore.GetDocument(ctx, in.Name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		doc = &common.Document{
			Name:       in.Name,
			SourcePath: in.Path,
			Status:     common.StatusPending,
		}
		if err := p.graphStore.UpsertDocument(ctx, *doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	switch doc.Status {
	case common.StatusCommitted:
		logger.Info("document already committed, skipping ingest", "document", doc.Name)
		return nil, nil
	case common.StatusPending:
		return doc, nil
	case common.StatusFailed:
		if err := p.graphStore.PurgeDocumentRows(ctx, doc.Name); err != nil {
			return nil, err
		}
		if err := p.graphStore.UpdateStatus(ctx, doc.Name,
			common.StatusFailed, common.StatusPending); err != nil {
			return nil, err
		}
		doc.Status = common.StatusPending
		logger.Info("retrying failed document", "document", doc.Name)
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrDocumentBusy, doc.Name, doc.Status)
	}
}

// processChunks embeds and extracts every chunk under one bounded pool.
// Chunks keep their sequence index no matter which order the calls finish
// in: triples are gathered per index and flattened in chunk order.
func (p *Pipeline) processChunks(ctx context.Context, chunks []common.Chunk) ([]common.Triple, error) {
	p.client.ResetMetrics()

	perChunk := make([][]common.Triple, len(chunks))
	var mu sync.Mutex

	group, gCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.parallelMax)

	for i := range chunks {
		group.Go(func() error {
			embedding, err := util.RetryWithContext(gCtx, p.maxRetries, func(ctx context.Context) ([]float32, error) {
				vec, err := p.client.GenerateEmbedding(ctx, []byte(chunks[i].Content))
				if err != nil && ai.IsPermanent(err) {
					// An API rejection will not heal on retry.
					return nil, util.Permanent(err)
				}
				return vec, err
			})
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				// Exhausted retries degrade the chunk, not the document.
				logger.Warn("embedding failed after retries, storing chunk without vector",
					"chunk", chunks[i].ID, "error", err)
			}

			res, err := p.extractor.ExtractChunk(gCtx, chunks[i], "")
			if err != nil {
				return err
			}

			mu.Lock()
			chunks[i].Embedding = embedding
			chunks[i].ExtractionIncomplete = res.Incomplete
			perChunk[i] = res.Triples
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var triples []common.Triple
	for _, batch := range perChunk {
		triples = append(triples, batch...)
	}
	return triples, nil
}

// finalizeCounts fills the document's aggregate fields from the processed
// chunks and this run's model usage.
func (p *Pipeline) finalizeCounts(doc *common.Document, chunks []common.Chunk) {
	chunkTokens := 0
	pageCount := 0
	for _, chunk := range chunks {
		chunkTokens += chunk.TokenCount
		if chunk.PageEnd > pageCount {
			pageCount = chunk.PageEnd
		}
	}

	metrics := p.client.GetMetrics()
	usage := cost.Usage{
		ExtractionTokens: metrics.TotalTokens,
		EmbeddingTokens:  chunkTokens,
	}

	doc.TotalChunks = len(chunks)
	doc.PageCount = pageCount
	doc.TotalTokens = metrics.TotalTokens + chunkTokens
	doc.Cost = p.tracker.Price(usage).TotalCost
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/irt-labs/studygraph/internal/storage"
	"github.com/irt-labs/studygraph/internal/util"
	"github.com/irt-labs/studygraph/pkg/ai"
	"github.com/irt-labs/studygraph/pkg/chunker"
	"github.com/irt-labs/studygraph/pkg/cost"
	"github.com/irt-labs/studygraph/pkg/extract"
	"github.com/irt-labs/studygraph/pkg/graph"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/source"
	"github.com/irt-labs/studygraph/pkg/stats"
	"github.com/irt-labs/studygraph/pkg/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProcessIngestMessage runs the full ingestion pipeline for one document:
// fetch from S3, chunk, extract, staged commit. A nil return acks the
// message; any error sends it through the retry queue. The stores and the
// aggregator are shared across messages; statistics deltas from parallel
// workers serialize on the aggregator's lock.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.GraphAIClient,
	graphStore store.GraphStore,
	metaStore meta.MetaStore,
	aggregator *stats.Aggregator,
	msg string,
) error {
	data := new(QueueIngestMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.DocumentName == "" || data.SourceKey == "" {
		return fmt.Errorf("ingest message missing document_name or source_key")
	}

	logger.Info("[Queue] Ingesting document", "document", data.DocumentName, "key", data.SourceKey)

	raw, err := storage.GetFile(ctx, s3Client, data.SourceKey)
	if err != nil {
		return fmt.Errorf("failed to fetch source document: %w", err)
	}

	writer := graph.NewWriter(graphStore, metaStore, aggregator)

	chunks := chunker.New(chunker.Config{
		MaxTokens:     int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", chunker.DefaultMaxTokens)),
		OverlapTokens: int(util.GetEnvNumeric("CHUNK_OVERLAP_TOKENS", chunker.DefaultOverlapTokens)),
		Encoder:       util.GetEnvString("TOKEN_ENCODER", chunker.DefaultEncoder),
	})
	extractor := extract.New(aiClient, extract.Config{
		MaxRetries: int(util.GetEnvNumeric("EXTRACT_MAX_RETRIES", extract.DefaultMaxRetries)),
	})
	tracker := cost.NewTracker(cost.RatesFromEnv())

	pipeline := graph.NewPipeline(
		source.NewTextSpanSource(),
		chunks,
		extractor,
		aiClient,
		graphStore,
		writer,
		tracker,
		graph.PipelineConfig{
			ParallelMax: int(util.GetEnvNumeric("PARALLEL_MAX", graph.DefaultParallelMax)),
			MaxRetries:  int(util.GetEnvNumeric("EMBED_MAX_RETRIES", graph.DefaultMaxRetries)),
		},
	)

	start := time.Now()
	err = pipeline.Process(ctx, source.Input{
		Name: data.DocumentName,
		Path: data.SourceKey,
		Data: raw,
	})

	switch {
	case err == nil:
		logger.Info("[Queue] Document ingested", "document", data.DocumentName, "duration", time.Since(start).Round(time.Second))
		return nil
	case errors.Is(err, graph.ErrMetadataPending):
		// Graph rows are committed; reconciliation will finish the
		// metadata side. Retrying the message would re-run extraction.
		logger.Warn("[Queue] Metadata sync pending, leaving for reconciliation", "document", data.DocumentName)
		return nil
	default:
		return err
	}
}

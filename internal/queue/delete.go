package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/irt-labs/studygraph/internal/storage"
	"github.com/irt-labs/studygraph/pkg/graph"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/meta"
	"github.com/irt-labs/studygraph/pkg/stats"
	"github.com/irt-labs/studygraph/pkg/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProcessDeleteMessage removes one document with its full closure from both
// stores, then drops the source file from the bucket. Deleting a document
// that no longer exists acks cleanly so replays and duplicate requests stay
// harmless.
func ProcessDeleteMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	graphStore store.GraphStore,
	metaStore meta.MetaStore,
	aggregator *stats.Aggregator,
	msg string,
) error {
	data := new(QueueDeleteMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.DocumentName == "" {
		return fmt.Errorf("delete message missing document_name")
	}

	// Read the source path before the cascade removes the row.
	var sourcePath string
	if doc, err := graphStore.GetDocument(ctx, data.DocumentName); err == nil {
		sourcePath = doc.SourcePath
	}

	coordinator := graph.NewDeletionCoordinator(graphStore, metaStore, aggregator)

	delta, err := coordinator.Delete(ctx, data.DocumentName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("[Queue] Document already gone", "document", data.DocumentName)
			return nil
		}
		return err
	}

	if sourcePath != "" {
		if err := storage.DeleteFile(ctx, s3Client, sourcePath); err != nil {
			// The graph rows are gone; a stray bucket object is not
			// worth requeueing the whole message for.
			logger.Warn("[Queue] Failed to delete source file", "document", data.DocumentName, "key", sourcePath, "err", err)
		}
	}

	logger.Info(
		"[Queue] Document deleted",
		"document", data.DocumentName,
		"documents", delta.Documents,
		"chunks", delta.Chunks,
		"triples", delta.Triples,
		"tokens", delta.Tokens,
	)
	return nil
}

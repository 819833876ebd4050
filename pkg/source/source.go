package source

import (
	"context"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/common"
)

// Input identifies one document to extract: the stable document name, the
// storage path it was fetched from, and the raw bytes.
type Input struct {
	Name string
	Path string
	Data []byte
}

// SpanSource is the boundary to text extraction. Implementations must yield
// spans in physical document order; chunking and everything downstream
// depends on that ordering.
type SpanSource interface {
	Extract(ctx context.Context, in Input) ([]common.Span, error)
}

// ExtractionError reports a document that could not be read at all. It is
// fatal for that document; nothing is committed.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("source extraction failed for %q: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NormalizePositions fills missing page/paragraph metadata from the nearest
// preceding positioned span and flags the patched spans as approximate.
// Spans before the first positioned span inherit from the first one found.
// The input slice is modified in place and returned.
func NormalizePositions(spans []common.Span) []common.Span {
	lastPage, lastParagraph := 0, 0
	firstKnown := -1
	for i := range spans {
		if spans[i].Page > 0 {
			if firstKnown < 0 {
				firstKnown = i
			}
			lastPage = spans[i].Page
			lastParagraph = spans[i].Paragraph
			continue
		}
		if lastPage == 0 {
			continue // patched in the backfill pass below
		}
		spans[i].Page = lastPage
		spans[i].Paragraph = lastParagraph
		spans[i].Approximate = true
	}

	if firstKnown > 0 {
		for i := 0; i < firstKnown; i++ {
			spans[i].Page = spans[firstKnown].Page
			spans[i].Paragraph = spans[firstKnown].Paragraph
			spans[i].Approximate = true
		}
	}
	return spans
}

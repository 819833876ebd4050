package extract

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/irt-labs/studygraph/pkg/ai"
	"github.com/irt-labs/studygraph/pkg/common"
)

// fakeClient replays scripted responses in order. A nil script entry is a
// transport failure; a non-nil entry is unmarshalled into the out value.
type fakeClient struct {
	mu      sync.Mutex
	script  []*extractResponse
	calls   int
	metrics ai.ModelMetrics
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++
	f.metrics.InputTokens += 100
	f.metrics.OutputTokens += 50
	f.metrics.TotalTokens += 150

	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	entry := f.script[idx]
	if entry == nil {
		return errors.New("malformed response")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return make([]float32, 4), nil
}

func (f *fakeClient) ResetMetrics() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = ai.ModelMetrics{}
}

func (f *fakeClient) GetMetrics() ai.ModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func testChunk() common.Chunk {
	line := 3
	return common.Chunk{
		ID:             "doc:0",
		DocumentName:   "doc",
		Content:        "Metformin reduces HbA1c in patients with type 2 diabetes.",
		PageStart:      2,
		PageEnd:        2,
		ParagraphStart: 1,
		ParagraphEnd:   1,
		LineStart:      &line,
		LineEnd:        &line,
	}
}

func validResponse() *extractResponse {
	return &extractResponse{Triples: []extractTriple{
		{Subject: "Metformin", Predicate: "reduces", Object: "HbA1c", Confidence: 0.92},
	}}
}

func TestExtractChunkRecoversAfterMalformedResponses(t *testing.T) {
	client := &fakeClient{script: []*extractResponse{
		nil, // transport-level failure
		{Triples: []extractTriple{{Subject: "", Predicate: "reduces", Object: "HbA1c"}}}, // all invalid
		validResponse(),
	}}
	e := New(client, Config{MaxRetries: 3})

	res, err := e.ExtractChunk(context.Background(), testChunk(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Incomplete {
		t.Fatal("chunk downgraded despite eventual success")
	}
	if res.Attempts != 3 || client.calls != 3 {
		t.Errorf("expected 3 attempts, got attempts=%d calls=%d", res.Attempts, client.calls)
	}
	if len(res.Triples) != 1 {
		t.Fatalf("expected 1 triple, got %d", len(res.Triples))
	}
	if res.Triples[0].Subject != "Metformin" || res.Triples[0].Confidence != 0.92 {
		t.Errorf("unexpected triple: %+v", res.Triples[0])
	}

	// Every attempt pays for its tokens, including the failed ones.
	if got := client.GetMetrics().TotalTokens; got != 450 {
		t.Errorf("expected 450 tokens across 3 attempts, got %d", got)
	}
}

func TestExtractChunkExhaustsRetries(t *testing.T) {
	client := &fakeClient{script: []*extractResponse{nil}}
	e := New(client, Config{MaxRetries: 3})

	res, err := e.ExtractChunk(context.Background(), testChunk(), "")
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if !res.Incomplete {
		t.Fatal("expected chunk marked incomplete")
	}
	if res.Attempts != 3 || client.calls != 3 {
		t.Errorf("expected 3 attempts, got attempts=%d calls=%d", res.Attempts, client.calls)
	}
	if len(res.Triples) != 0 {
		t.Errorf("incomplete chunk must carry zero triples, got %d", len(res.Triples))
	}
}

func TestExtractChunkEmptyResponseIsNotRetried(t *testing.T) {
	client := &fakeClient{script: []*extractResponse{{}}}
	e := New(client, Config{MaxRetries: 3})

	res, err := e.ExtractChunk(context.Background(), testChunk(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Incomplete || res.Attempts != 1 || client.calls != 1 {
		t.Errorf("a legitimately empty response must be accepted first try: %+v calls=%d", res, client.calls)
	}
}

func TestValidateConfidenceAndFields(t *testing.T) {
	client := &fakeClient{script: []*extractResponse{{Triples: []extractTriple{
		{Subject: "  Metformin ", Predicate: "treats", Object: "diabetes", Confidence: 1.7},
		{Subject: "Placebo", Predicate: "compared with", Object: "Metformin"}, // omitted score
		{Subject: "", Predicate: "treats", Object: "diabetes", Confidence: 0.9},
	}}}}
	e := New(client, Config{})

	res, err := e.ExtractChunk(context.Background(), testChunk(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Triples) != 2 {
		t.Fatalf("expected 2 valid triples, got %d", len(res.Triples))
	}
	if res.Triples[0].Subject != "Metformin" {
		t.Errorf("fields not trimmed: %q", res.Triples[0].Subject)
	}
	if res.Triples[0].Confidence != 1 {
		t.Errorf("confidence not clamped to 1, got %v", res.Triples[0].Confidence)
	}
	if res.Triples[1].Confidence != heuristicConfidence {
		t.Errorf("omitted confidence should default to %v, got %v",
			heuristicConfidence, res.Triples[1].Confidence)
	}
	for _, triple := range res.Triples {
		if triple.ChunkID != "doc:0" {
			t.Errorf("triple not keyed to chunk: %+v", triple)
		}
		if len(triple.Citations) != 1 || triple.Citations[0].Page != 2 {
			t.Errorf("unexpected citations: %+v", triple.Citations)
		}
	}
}

func TestChunkCitationsSpanningRange(t *testing.T) {
	chunk := testChunk()
	chunk.PageEnd = 3
	chunk.ParagraphEnd = 2
	chunk.LineEnd = nil

	citations := chunkCitations(chunk)
	if len(citations) != 2 {
		t.Fatalf("expected start and end citations, got %d", len(citations))
	}
	if citations[0].Page != 2 || citations[1].Page != 3 {
		t.Errorf("unexpected pages: %+v", citations)
	}
	if citations[0].Line == nil || citations[1].Line != nil {
		t.Errorf("line pointers not preserved: %+v", citations)
	}
}

func TestExtractChunkCancelled(t *testing.T) {
	client := &fakeClient{script: []*extractResponse{nil}}
	e := New(client, Config{MaxRetries: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractChunk(ctx, testChunk(), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}


package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/irt-labs/studygraph/pkg/common"
)

func intp(v int) *int { return &v }

func TestBuildOneRecordPerCitation(t *testing.T) {
	triples := []common.Triple{
		{
			Subject: "Metformin", Predicate: "reduces", Object: "HbA1c", Confidence: 0.9,
			Citations: []common.Citation{
				{Page: 2, Paragraph: 1, Line: intp(4)},
				{Page: 3, Paragraph: 1, Line: nil},
			},
		},
	}

	got := Build("protocol.txt", nil, triples)
	if got.TripleCount != 1 {
		t.Errorf("triple count: got %d, want 1", got.TripleCount)
	}
	if len(got.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got.Records))
	}
	if got.Records[0].Page != 2 || got.Records[1].Page != 3 {
		t.Errorf("records out of position order: %+v", got.Records)
	}
	if got.Records[0].Line == nil || *got.Records[0].Line != 4 {
		t.Errorf("line lost: %+v", got.Records[0])
	}
	if got.Records[1].Line != nil {
		t.Errorf("nil line must stay nil: %+v", got.Records[1])
	}
}

func TestBuildFallsBackToChunkPosition(t *testing.T) {
	chunks := []common.Chunk{
		{ID: "doc:0", PageStart: 5, ParagraphStart: 2, LineStart: intp(1)},
	}
	triples := []common.Triple{
		{ChunkID: "doc:0", Subject: "s", Predicate: "p", Object: "o", Confidence: 0.5},
		{ChunkID: "missing", Subject: "x", Predicate: "y", Object: "z", Confidence: 0.5},
	}

	got := Build("doc", chunks, triples)
	if len(got.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got.Records))
	}
	// Unpositioned triple sorts first at page zero.
	if got.Records[0].Page != 0 || got.Records[0].Subject != "x" {
		t.Errorf("unknown chunk should export unpositioned: %+v", got.Records[0])
	}
	if got.Records[1].Page != 5 || got.Records[1].Paragraph != 2 {
		t.Errorf("chunk fallback position lost: %+v", got.Records[1])
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	records := []Record{
		{Subject: "s", Predicate: "p", Object: "o", Confidence: 0.75, Page: 1, Paragraph: 2, Line: intp(3)},
		{Subject: "s2", Predicate: "p2", Object: "o2", Confidence: 0.3, Page: 4, Paragraph: 1, Line: nil},
	}

	raw, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"line":null`) {
		t.Errorf("missing line must serialize as null: %s", raw)
	}
	if !strings.Contains(string(raw), `"line":3`) {
		t.Errorf("present line must serialize as a number: %s", raw)
	}

	var back []Record
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 records back, got %d", len(back))
	}
	if back[0].Line == nil || *back[0].Line != 3 || back[1].Line != nil {
		t.Errorf("line pointers did not round-trip: %+v", back)
	}
	if back[0].Confidence != 0.75 {
		t.Errorf("confidence did not round-trip: %v", back[0].Confidence)
	}
}

func TestBuildDeterministicOrder(t *testing.T) {
	triples := []common.Triple{
		{Subject: "b", Predicate: "p", Object: "o", Confidence: 1, Citations: []common.Citation{{Page: 1, Paragraph: 1}}},
		{Subject: "a", Predicate: "p", Object: "o", Confidence: 1, Citations: []common.Citation{{Page: 1, Paragraph: 1}}},
		{Subject: "c", Predicate: "p", Object: "o", Confidence: 1, Citations: []common.Citation{{Page: 1, Paragraph: 1, Line: intp(2)}}},
	}

	got := Build("doc", nil, triples)
	order := []string{got.Records[0].Subject, got.Records[1].Subject, got.Records[2].Subject}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("unexpected order: %v", order)
	}
}

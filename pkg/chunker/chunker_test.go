package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/irt-labs/studygraph/pkg/common"
)

// newWordCounting returns a chunker pinned to the word-count token
// estimate so tests do not depend on a tiktoken encoding being available.
func newWordCounting(maxTokens, overlapTokens int) *Chunker {
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		enc:           nil,
	}
}

// words builds a span of n distinct words, 1.3 tokens per word under the
// fallback counter (10 words = 13 tokens).
func wordSpan(n, page, paragraph int, kind common.SpanKind) common.Span {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return common.Span{
		Text:      strings.Join(parts, " "),
		Page:      page,
		Paragraph: paragraph,
		Kind:      kind,
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := newWordCounting(30, 10)
	chunks, err := c.Chunk("doc", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkSingleParagraph(t *testing.T) {
	c := newWordCounting(100, 10)
	span := common.Span{Text: "alpha beta gamma", Page: 1, Paragraph: 2, Line: 5, Kind: common.SpanParagraph}

	chunks, err := c.Chunk("protocol.txt", []common.Span{span})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	got := chunks[0]
	if got.ID != "protocol.txt:0" || got.Index != 0 {
		t.Errorf("unexpected identity: id=%q index=%d", got.ID, got.Index)
	}
	if got.Content != "alpha beta gamma" {
		t.Errorf("unexpected content %q", got.Content)
	}
	if got.Kind != common.ChunkParagraph {
		t.Errorf("expected paragraph kind, got %q", got.Kind)
	}
	if got.PageStart != 1 || got.PageEnd != 1 || got.ParagraphStart != 2 || got.ParagraphEnd != 2 {
		t.Errorf("unexpected citation range: %+v", got)
	}
	if got.LineStart == nil || *got.LineStart != 5 || got.LineEnd == nil || *got.LineEnd != 5 {
		t.Errorf("unexpected line range: start=%v end=%v", got.LineStart, got.LineEnd)
	}
	if got.TokenCount != 3 { // 3 words * 1.3 = 3.9 -> 3
		t.Errorf("expected token count 3, got %d", got.TokenCount)
	}
}

func TestChunkSplitsAtBudgetWithOverlap(t *testing.T) {
	c := newWordCounting(30, 15)

	// Four 13-token paragraphs: two fit per chunk, and the trailing
	// paragraph of each chunk fits the overlap budget and carries into
	// the next.
	spans := []common.Span{
		wordSpan(10, 1, 1, common.SpanParagraph),
		wordSpan(10, 1, 2, common.SpanParagraph),
		wordSpan(10, 2, 1, common.SpanParagraph),
		wordSpan(10, 2, 2, common.SpanParagraph),
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	// Chunk 1 starts with the overlap span carried from chunk 0, so its
	// citation range begins where chunk 0 ended.
	if !strings.HasPrefix(chunks[1].Content, spans[1].Text) {
		t.Errorf("chunk 1 does not start with overlap span: %q", chunks[1].Content)
	}
	if chunks[1].PageStart != 1 || chunks[1].ParagraphStart != 2 {
		t.Errorf("overlap lost citation position: page=%d paragraph=%d",
			chunks[1].PageStart, chunks[1].ParagraphStart)
	}
	if chunks[1].PageEnd != 2 || chunks[1].ParagraphEnd != 1 {
		t.Errorf("unexpected chunk 1 end: page=%d paragraph=%d",
			chunks[1].PageEnd, chunks[1].ParagraphEnd)
	}
	if chunks[2].PageEnd != 2 || chunks[2].ParagraphEnd != 2 {
		t.Errorf("unexpected final chunk range: %+v", chunks[2])
	}

	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.Oversized {
			t.Errorf("chunk %d unexpectedly oversized", i)
		}
	}
}

func TestChunkOverlapRespectsTokenMaximum(t *testing.T) {
	c := newWordCounting(100, 20)

	// The middle paragraph (58 words, 75 tokens) closes chunk 0 at 85
	// tokens. It is far larger than the overlap budget, so it must not
	// be carried into chunk 1; carrying it whole would push chunk 1 past
	// the maximum without the oversized flag.
	spans := []common.Span{
		wordSpan(8, 1, 1, common.SpanParagraph),
		wordSpan(58, 1, 2, common.SpanParagraph),
		wordSpan(46, 2, 1, common.SpanParagraph),
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !chunk.Oversized && chunk.TokenCount > 100 {
			t.Errorf("chunk %d has %d tokens over the maximum without the oversized flag",
				i, chunk.TokenCount)
		}
	}
	if chunks[1].Content != spans[2].Text {
		t.Errorf("oversized tail span leaked into chunk 1: %q", chunks[1].Content)
	}
}

func TestChunkCarryDroppedWhenNextUnitFills(t *testing.T) {
	c := newWordCounting(30, 15)

	// Chunk 0 leaves a 13-token carry, but the next paragraph alone is
	// 26 tokens: keeping the carry would exceed the maximum, so it is
	// dropped rather than emitted over budget.
	spans := []common.Span{
		wordSpan(10, 1, 1, common.SpanParagraph),
		wordSpan(10, 1, 2, common.SpanParagraph),
		wordSpan(20, 2, 1, common.SpanParagraph),
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != spans[2].Text {
		t.Errorf("carry kept despite blowing the budget: %q", chunks[1].Content)
	}
	if chunks[1].TokenCount > 30 {
		t.Errorf("chunk 1 over budget at %d tokens", chunks[1].TokenCount)
	}
}

func TestTableStaysAtomicAcrossPages(t *testing.T) {
	c := newWordCounting(100, 10)

	spans := []common.Span{
		{Text: "intro paragraph before the table", Page: 2, Paragraph: 1, Kind: common.SpanParagraph},
		{Text: "Arm", Page: 2, Paragraph: 2, Kind: common.SpanTableCell},
		{Text: "Dose", Page: 2, Paragraph: 2, Kind: common.SpanTableCell},
		{Text: "Placebo", Page: 2, Paragraph: 3, Kind: common.SpanTableCell},
		{Text: "0 mg", Page: 2, Paragraph: 3, Kind: common.SpanTableCell},
		{Text: "Treatment", Page: 3, Paragraph: 1, Kind: common.SpanTableCell},
		{Text: "50 mg", Page: 3, Paragraph: 1, Kind: common.SpanTableCell},
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected table and intro in one chunk, got %d", len(chunks))
	}

	got := chunks[0]
	if got.PageStart != 2 || got.PageEnd != 3 {
		t.Errorf("table page range lost: start=%d end=%d", got.PageStart, got.PageEnd)
	}
	want := "intro paragraph before the table\nArm | Dose\nPlacebo | 0 mg\nTreatment | 50 mg"
	if got.Content != want {
		t.Errorf("unexpected content:\n%q\nwant:\n%q", got.Content, want)
	}
}

func TestOversizedTableEmitsFlaggedChunk(t *testing.T) {
	c := newWordCounting(30, 10)

	spans := []common.Span{
		wordSpan(10, 1, 1, common.SpanParagraph),
	}
	for row := 0; row < 4; row++ {
		spans = append(spans,
			wordSpan(10, 2, row+1, common.SpanTableCell),
			wordSpan(10, 2, row+1, common.SpanTableCell),
		)
	}
	spans = append(spans, wordSpan(10, 3, 1, common.SpanParagraph))

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].Oversized || chunks[0].Kind != common.ChunkParagraph {
		t.Errorf("unexpected leading chunk: %+v", chunks[0])
	}
	if !chunks[1].Oversized || chunks[1].Kind != common.ChunkTable {
		t.Errorf("table chunk not flagged oversized: %+v", chunks[1])
	}
	if chunks[1].PageStart != 2 || chunks[1].PageEnd != 2 {
		t.Errorf("unexpected table citation range: %+v", chunks[1])
	}
	// No narrative overlap leaks out of the table into the next chunk.
	if chunks[2].PageStart != 3 {
		t.Errorf("overlap carried out of table: %+v", chunks[2])
	}
}

func TestBulletRunKeepsKind(t *testing.T) {
	c := newWordCounting(100, 10)

	spans := []common.Span{
		{Text: "primary endpoint reached", Page: 1, Paragraph: 1, Kind: common.SpanBullet},
		{Text: "no serious adverse events", Page: 1, Paragraph: 2, Kind: common.SpanBullet},
		{Text: "enrollment completed early", Page: 1, Paragraph: 3, Kind: common.SpanBullet},
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Kind != common.ChunkBullets {
		t.Errorf("expected bullet kind, got %q", chunks[0].Kind)
	}
}

func TestApproximateSpanFlagsChunk(t *testing.T) {
	c := newWordCounting(100, 10)

	spans := []common.Span{
		{Text: "positioned text", Page: 1, Paragraph: 1, Kind: common.SpanParagraph},
		{Text: "inherited position", Page: 1, Paragraph: 1, Kind: common.SpanParagraph, Approximate: true},
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || !chunks[0].Approximate {
		t.Fatalf("expected single approximate chunk, got %+v", chunks)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := newWordCounting(30, 10)

	var spans []common.Span
	for i := 0; i < 12; i++ {
		kind := common.SpanParagraph
		if i%5 == 0 {
			kind = common.SpanBullet
		}
		spans = append(spans, wordSpan(7+i%4, i/4+1, i%4+1, kind))
	}

	first, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("chunking is not deterministic")
	}
}

func TestCountTokensFallback(t *testing.T) {
	c := newWordCounting(100, 10)
	if got := c.CountTokens("one two three four five six seven eight nine ten"); got != 13 {
		t.Errorf("expected 13 tokens for 10 words, got %d", got)
	}
	if got := c.CountTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{})
	if c.maxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", c.maxTokens)
	}
	if c.overlapTokens != DefaultOverlapTokens {
		t.Errorf("expected default overlap, got %d", c.overlapTokens)
	}

	c = New(Config{MaxTokens: 100, OverlapTokens: 100})
	if c.overlapTokens != 50 {
		t.Errorf("expected overlap capped at half the budget, got %d", c.overlapTokens)
	}

	c = New(Config{MaxTokens: 100, OverlapTokens: -1})
	if c.overlapTokens != 0 {
		t.Errorf("expected negative overlap to disable the carry, got %d", c.overlapTokens)
	}
}

func TestChunkNoOverlapWhenDisabled(t *testing.T) {
	c := newWordCounting(30, 0)

	spans := []common.Span{
		wordSpan(10, 1, 1, common.SpanParagraph),
		wordSpan(10, 1, 2, common.SpanParagraph),
		wordSpan(10, 2, 1, common.SpanParagraph),
	}

	chunks, err := c.Chunk("doc", spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != spans[2].Text {
		t.Errorf("overlap carried despite being disabled: %q", chunks[1].Content)
	}
}

// Package chunker turns a positioned-span stream into citation-addressable
// chunks sized for extraction. Tables and bullet runs are kept atomic so
// their structure survives into the prompt; everything else accumulates up
// to the token budget with a span-aligned overlap carried between chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultMaxTokens     = 1000
	DefaultOverlapTokens = 200
	DefaultEncoder       = "cl100k_base"

	// Fallback token estimate when no encoder is available: roughly 1.3
	// tokens per whitespace word for English prose.
	fallbackTokensPerWord = 1.3
)

type Config struct {
	MaxTokens int
	// OverlapTokens bounds the span carry between consecutive narrative
	// chunks. Zero selects the default; a negative value disables the
	// overlap entirely.
	OverlapTokens int
	Encoder       string
}

type Chunker struct {
	maxTokens     int
	overlapTokens int
	enc           *tiktoken.Tiktoken
}

// New builds a Chunker from cfg, filling in defaults for zero values. The
// encoder is resolved once; if tiktoken cannot provide it the chunker falls
// back to a word-count estimate instead of failing.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapTokens == 0 {
		cfg.OverlapTokens = DefaultOverlapTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 2
	}
	if cfg.Encoder == "" {
		cfg.Encoder = DefaultEncoder
	}

	enc, err := tiktoken.GetEncoding(cfg.Encoder)
	if err != nil {
		enc = nil
	}

	return &Chunker{
		maxTokens:     cfg.MaxTokens,
		overlapTokens: cfg.OverlapTokens,
		enc:           enc,
	}
}

// CountTokens returns the token count for text under the configured
// encoder, or the word-count fallback estimate when the encoder is
// unavailable.
func (c *Chunker) CountTokens(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	words := len(strings.Fields(text))
	return int(float64(words) * fallbackTokensPerWord)
}

// unit is an indivisible group of spans: a whole table, a run of bullets,
// or a single paragraph/heading span. Units never split across chunks.
type unit struct {
	spans  []common.Span
	kind   common.ChunkKind
	tokens int
}

// Chunk partitions spans into chunks for docName. The result is
// deterministic for a given span sequence and configuration: chunk IDs are
// derived from the document name and chunk index, not generated.
//
// An empty span sequence yields no chunks and no error.
func (c *Chunker) Chunk(docName string, spans []common.Span) ([]common.Chunk, error) {
	if len(spans) == 0 {
		return nil, nil
	}

	units := c.groupUnits(spans)

	var chunks []common.Chunk
	var current []common.Span
	var carry []common.Span
	currentTokens := 0

	flushChunk := func(kind common.ChunkKind, oversized bool) {
		if len(current) == 0 {
			return
		}

		content := renderContent(current)
		chunk := common.Chunk{
			ID:           fmt.Sprintf("%s:%d", docName, len(chunks)),
			DocumentName: docName,
			Index:        len(chunks),
			Content:      content,
			Kind:         kind,
			TokenCount:   c.CountTokens(content),
			Oversized:    oversized,
		}
		applyCitationRange(&chunk, current)
		chunks = append(chunks, chunk)

		if oversized || kind == common.ChunkTable {
			// Structured units are self-contained; repeating their
			// tail as narrative overlap only bloats citation ranges.
			carry = nil
		} else {
			carry = c.trailingOverlap(current)
		}
		current = nil
		currentTokens = 0
	}

	// absorbCarry seeds an empty buffer with the previous chunk's
	// overlap. Carry plus the incoming unit must still fit the budget,
	// so the oldest carry spans drop first when the unit leaves no room.
	absorbCarry := func(unitTokens int) {
		if len(current) != 0 || len(carry) == 0 {
			return
		}
		for len(carry) > 0 && c.sumTokens(carry)+unitTokens > c.maxTokens {
			carry = carry[1:]
		}
		current = append(current, carry...)
		currentTokens = c.sumTokens(carry)
		carry = nil
	}

	for _, u := range units {
		if u.tokens > c.maxTokens {
			flushChunk(chunkKind(current), false)
			current = u.spans
			flushChunk(u.kind, true)
			continue
		}

		if currentTokens+u.tokens > c.maxTokens && len(current) > 0 {
			flushChunk(chunkKind(current), false)
		}

		absorbCarry(u.tokens)

		current = append(current, u.spans...)
		currentTokens += u.tokens
	}

	flushChunk(chunkKind(current), false)

	return chunks, nil
}

// groupUnits merges consecutive table cells and consecutive bullets into
// atomic units and wraps every other span as a unit of its own.
func (c *Chunker) groupUnits(spans []common.Span) []unit {
	var units []unit

	for i := 0; i < len(spans); {
		s := spans[i]
		switch s.Kind {
		case common.SpanTableCell, common.SpanBullet:
			j := i
			for j < len(spans) && spans[j].Kind == s.Kind {
				j++
			}
			run := spans[i:j]
			kind := common.ChunkTable
			if s.Kind == common.SpanBullet {
				kind = common.ChunkBullets
			}
			units = append(units, unit{
				spans:  run,
				kind:   kind,
				tokens: c.sumTokens(run),
			})
			i = j
		default:
			units = append(units, unit{
				spans:  spans[i : i+1],
				kind:   common.ChunkParagraph,
				tokens: c.CountTokens(s.Text),
			})
			i++
		}
	}

	return units
}

func (c *Chunker) sumTokens(spans []common.Span) int {
	total := 0
	for _, s := range spans {
		total += c.CountTokens(s.Text)
	}
	return total
}

// trailingOverlap selects whole spans from the tail of a flushed chunk, as
// many as fit inside the overlap budget. A tail span larger than the budget
// is never carried, and at least the first span always stays behind so
// progress is guaranteed.
func (c *Chunker) trailingOverlap(spans []common.Span) []common.Span {
	if c.overlapTokens <= 0 || len(spans) < 2 {
		return nil
	}

	tokens := 0
	start := len(spans)
	for start > 1 {
		t := c.CountTokens(spans[start-1].Text)
		if tokens+t > c.overlapTokens {
			break
		}
		tokens += t
		start--
	}
	if tokens == 0 {
		return nil
	}

	tail := make([]common.Span, len(spans)-start)
	copy(tail, spans[start:])
	return tail
}

// chunkKind reports the kind for a mixed buffer: pure bullet buffers keep
// the bullet kind, everything else is narrative.
func chunkKind(spans []common.Span) common.ChunkKind {
	if len(spans) == 0 {
		return common.ChunkParagraph
	}
	for _, s := range spans {
		if s.Kind != common.SpanBullet {
			return common.ChunkParagraph
		}
	}
	return common.ChunkBullets
}

// renderContent rebuilds readable text from spans. Table cells sharing a
// page and paragraph are rejoined into pipe-delimited rows; all other
// spans are newline-separated.
func renderContent(spans []common.Span) string {
	var b strings.Builder
	var row []string
	rowPage, rowPara := -1, -1

	flushRow := func() {
		if len(row) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.Join(row, " | "))
		row = nil
	}

	for _, s := range spans {
		if s.Kind == common.SpanTableCell {
			if s.Page != rowPage || s.Paragraph != rowPara {
				flushRow()
				rowPage, rowPara = s.Page, s.Paragraph
			}
			row = append(row, s.Text)
			continue
		}
		flushRow()
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Text)
	}
	flushRow()

	return b.String()
}

// applyCitationRange records the citation window covered by spans: the
// minimum and maximum page, the paragraph bounds on those boundary pages,
// and line bounds where the extractor reported them.
func applyCitationRange(chunk *common.Chunk, spans []common.Span) {
	chunk.PageStart = spans[0].Page
	chunk.PageEnd = spans[0].Page
	for _, s := range spans {
		if s.Page < chunk.PageStart {
			chunk.PageStart = s.Page
		}
		if s.Page > chunk.PageEnd {
			chunk.PageEnd = s.Page
		}
		if s.Approximate {
			chunk.Approximate = true
		}
	}

	first, last := true, true
	for _, s := range spans {
		if s.Page == chunk.PageStart {
			if first || s.Paragraph < chunk.ParagraphStart {
				chunk.ParagraphStart = s.Paragraph
				first = false
			}
			if s.Line > 0 && (chunk.LineStart == nil || s.Line < *chunk.LineStart) {
				line := s.Line
				chunk.LineStart = &line
			}
		}
		if s.Page == chunk.PageEnd {
			if last || s.Paragraph > chunk.ParagraphEnd {
				chunk.ParagraphEnd = s.Paragraph
				last = false
			}
			if s.Line > 0 && (chunk.LineEnd == nil || s.Line > *chunk.LineEnd) {
				line := s.Line
				chunk.LineEnd = &line
			}
		}
	}
}

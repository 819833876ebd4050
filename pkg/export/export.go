// Package export flattens a document's triples into citation records fit
// for external review. The mapping is pure: no store access, no mutation.
package export

import (
	"sort"

	"github.com/irt-labs/studygraph/pkg/common"
)

// Record is one exported assertion with its source position. Line is null
// in the JSON output when no line number was captured at extraction time.
type Record struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Page       int     `json:"page"`
	Paragraph  int     `json:"paragraph"`
	Line       *int    `json:"line"`
}

// Export is the full export payload for one document.
type Export struct {
	DocumentName string   `json:"document_name"`
	TripleCount  int      `json:"triple_count"`
	Records      []Record `json:"records"`
}

// Build flattens triples into export records, one per citation. A triple
// without citations falls back to the start position of its source chunk;
// if the chunk is unknown too, the triple is exported unpositioned at page
// zero rather than dropped.
//
// Records are ordered by position, then subject, so output is stable
// across runs.
func Build(documentName string, chunks []common.Chunk, triples []common.Triple) Export {
	byID := make(map[string]common.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	records := make([]Record, 0, len(triples))
	for _, triple := range triples {
		citations := triple.Citations
		if len(citations) == 0 {
			citations = []common.Citation{fallbackCitation(byID, triple.ChunkID)}
		}
		for _, c := range citations {
			records = append(records, Record{
				Subject:    triple.Subject,
				Predicate:  triple.Predicate,
				Object:     triple.Object,
				Confidence: triple.Confidence,
				Page:       c.Page,
				Paragraph:  c.Paragraph,
				Line:       c.Line,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Paragraph != b.Paragraph {
			return a.Paragraph < b.Paragraph
		}
		al, bl := lineOrZero(a.Line), lineOrZero(b.Line)
		if al != bl {
			return al < bl
		}
		return a.Subject < b.Subject
	})

	return Export{
		DocumentName: documentName,
		TripleCount:  len(triples),
		Records:      records,
	}
}

func fallbackCitation(chunks map[string]common.Chunk, chunkID string) common.Citation {
	chunk, ok := chunks[chunkID]
	if !ok {
		return common.Citation{}
	}
	return common.Citation{
		Page:      chunk.PageStart,
		Paragraph: chunk.ParagraphStart,
		Line:      chunk.LineStart,
	}
}

func lineOrZero(line *int) int {
	if line == nil {
		return 0
	}
	return *line
}

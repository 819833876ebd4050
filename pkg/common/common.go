package common

import "time"

// SpanKind classifies the structural role of a positioned text span as
// reported by the source extractor.
type SpanKind string

const (
	SpanParagraph SpanKind = "paragraph"
	SpanBullet    SpanKind = "bullet"
	SpanTableCell SpanKind = "table_cell"
	SpanHeading   SpanKind = "heading"
)

// ChunkKind classifies the structural unit a chunk was built from. Table and
// bullet chunks are emitted whole so their layout survives extraction.
type ChunkKind string

const (
	ChunkParagraph ChunkKind = "paragraph"
	ChunkTable     ChunkKind = "table"
	ChunkBullets   ChunkKind = "bullet"
)

// Span is a positioned piece of document text. Spans are produced by a
// source extractor in physical document order and are the only input the
// chunker sees.
//
// Line is zero when the extractor could not determine a line number.
// Approximate marks spans whose position was inherited from a neighbouring
// span because their own metadata was missing.
type Span struct {
	Text        string   `json:"text"`
	Page        int      `json:"page"`
	Paragraph   int      `json:"paragraph"`
	Line        int      `json:"line,omitempty"`
	Kind        SpanKind `json:"kind"`
	Approximate bool     `json:"approximate,omitempty"`
}

// Citation ties a chunk or triple back to its position in the source
// document. Line is optional; a nil Line means the line number was not
// available at extraction time.
type Citation struct {
	Page      int  `json:"page"`
	Paragraph int  `json:"paragraph"`
	Line      *int `json:"line"`
}

// Chunk is a citation-addressable unit of document text, sized and
// overlapped for extraction. The citation range covers every constituent
// span, including overlap spans carried from the previous chunk.
type Chunk struct {
	ID           string `json:"id"`
	DocumentName string `json:"document_name"`
	Index        int    `json:"index"`
	Content      string `json:"content"`

	PageStart      int  `json:"page_start"`
	PageEnd        int  `json:"page_end"`
	ParagraphStart int  `json:"paragraph_start"`
	ParagraphEnd   int  `json:"paragraph_end"`
	LineStart      *int `json:"line_start"`
	LineEnd        *int `json:"line_end"`

	Kind       ChunkKind `json:"kind"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`

	// Oversized marks a chunk built from an atomic unit (table or bullet
	// group) that alone exceeds the configured token maximum.
	Oversized bool `json:"oversized,omitempty"`
	// Approximate marks a chunk whose citation range includes spans with
	// inherited position metadata.
	Approximate bool `json:"approximate,omitempty"`
	// ExtractionIncomplete is set when triple extraction exhausted its
	// retries for this chunk and zero triples were kept.
	ExtractionIncomplete bool `json:"extraction_incomplete,omitempty"`
}

// Triple is a subject-predicate-object assertion extracted from exactly one
// chunk. Confidence is always within [0,1]. A triple may carry multiple
// citations when the supporting claim spans lines.
type Triple struct {
	ID         string     `json:"id"`
	ChunkID    string     `json:"chunk_id"`
	Subject    string     `json:"subject"`
	Predicate  string     `json:"predicate"`
	Object     string     `json:"object"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations,omitempty"`
}

// Document is the graph-store root node for one ingested document. Name is
// the stable identity; everything else mutates as the pipeline advances.
type Document struct {
	Name        string         `json:"name"`
	SourcePath  string         `json:"source_path"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	PageCount   int            `json:"page_count"`
	TotalChunks int            `json:"total_chunks"`
	TotalTokens int            `json:"total_tokens"`
	Cost        float64        `json:"cost"`
	Status      DocumentStatus `json:"status"`
}

// UploadRecord is the metadata-store shadow of a Document, one-to-one.
type UploadRecord struct {
	DocumentName string    `json:"document_name" bson:"document_name"`
	UploadedAt   time.Time `json:"uploaded_at" bson:"uploaded_at"`
	TotalChunks  int       `json:"total_chunks" bson:"total_chunks"`
	TotalTriples int       `json:"total_triples" bson:"total_triples"`
	TokensUsed   int       `json:"tokens_used" bson:"tokens_used"`
	Cost         float64   `json:"cost" bson:"cost"`
	Status       string    `json:"status" bson:"status"`
}

// StatisticsSnapshot is the singleton process-wide aggregate kept in the
// metadata store. It is mutated only through the aggregator.
type StatisticsSnapshot struct {
	TotalDocuments int64     `json:"total_documents" bson:"total_documents"`
	TotalChunks    int64     `json:"total_chunks" bson:"total_chunks"`
	TotalTriples   int64     `json:"total_triples" bson:"total_triples"`
	TotalTokens    int64     `json:"total_tokens" bson:"total_tokens"`
	TotalCost      float64   `json:"total_cost" bson:"total_cost"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// StatisticsDelta is a signed change applied to the snapshot on commit or
// delete. Deletion applies the exact negative of the counts removed.
type StatisticsDelta struct {
	Documents int64
	Chunks    int64
	Triples   int64
	Tokens    int64
	Cost      float64
}

// Add returns the snapshot with the delta applied.
func (s StatisticsSnapshot) Add(d StatisticsDelta, now time.Time) StatisticsSnapshot {
	s.TotalDocuments += d.Documents
	s.TotalChunks += d.Chunks
	s.TotalTriples += d.Triples
	s.TotalTokens += d.Tokens
	s.TotalCost += d.Cost
	s.UpdatedAt = now
	return s
}

// Negate returns the delta with every count flipped, used by cascade delete.
func (d StatisticsDelta) Negate() StatisticsDelta {
	return StatisticsDelta{
		Documents: -d.Documents,
		Chunks:    -d.Chunks,
		Triples:   -d.Triples,
		Tokens:    -d.Tokens,
		Cost:      -d.Cost,
	}
}

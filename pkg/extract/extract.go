// Package extract runs schema-constrained triple extraction over chunks.
// Malformed model output is retried a bounded number of times with a
// corrective instruction; a chunk whose retries are exhausted is downgraded
// to extraction-incomplete instead of failing the document.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/irt-labs/studygraph/pkg/ai"
	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultMaxRetries = 3

	// Confidence assigned when the model omits or zeroes the score.
	heuristicConfidence = 0.30
)

type extractTriple struct {
	Subject    string  `json:"subject" jsonschema_description:"Subject entity, exact wording from the text"`
	Predicate  string  `json:"predicate" jsonschema_description:"Short verb phrase naming the relationship"`
	Object     string  `json:"object" jsonschema_description:"Object entity, exact wording from the text"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence in the extracted relationship, between 0 and 1"`
}

type extractResponse struct {
	Triples []extractTriple `json:"triples" jsonschema_description:"Factual relationships stated in the text"`
}

type Config struct {
	MaxRetries int
	Model      string
}

type TripleExtractor struct {
	client     ai.GraphAIClient
	maxRetries int
	model      string
}

func New(client ai.GraphAIClient, cfg Config) *TripleExtractor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &TripleExtractor{
		client:     client,
		maxRetries: cfg.MaxRetries,
		model:      cfg.Model,
	}
}

// Result is the per-chunk extraction outcome. Incomplete marks a chunk
// whose retries were exhausted without a usable response; it carries zero
// triples and the document proceeds without them.
type Result struct {
	Triples    []common.Triple
	Incomplete bool
	Attempts   int
}

// ExtractChunk runs one chunk through the model. overlapContext is the
// neighbouring text supplied for reference only; it may be empty.
//
// The returned error is nil for exhausted retries (the Result carries the
// downgrade); it is non-nil only for cancellation or ID generation failure.
func (e *TripleExtractor) ExtractChunk(ctx context.Context, chunk common.Chunk, overlapContext string) (Result, error) {
	prompt := chunk.Content
	if strings.TrimSpace(overlapContext) != "" {
		prompt = contextPreamble + overlapContext + "\n\nText to analyze:\n" + chunk.Content
	}

	var res Result
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		res.Attempts = attempt

		system := systemPrompt
		if attempt > 1 {
			system += correctiveInstruction
		}

		opts := []ai.GenerateOption{ai.WithSystemPrompts(system)}
		if e.model != "" {
			opts = append(opts, ai.WithModel(e.model))
		}

		var parsed extractResponse
		err := e.client.GenerateCompletionWithFormat(
			ctx,
			"extract_clinical_triples",
			"Extract subject-predicate-object relationships from clinical study text.",
			prompt,
			&parsed,
			opts...,
		)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			lastErr = err
			if ai.IsPermanent(err) {
				// The backend rejected the request outright; more
				// attempts return the same answer.
				logger.Warn("triple extraction rejected by backend",
					"chunk", chunk.ID, "error", err)
				break
			}
			logger.Warn("triple extraction attempt failed",
				"chunk", chunk.ID, "attempt", attempt, "error", err)
			continue
		}

		triples, err := e.validate(chunk, parsed.Triples)
		if err != nil {
			return res, err
		}
		if len(triples) == 0 && len(parsed.Triples) > 0 {
			// Every triple in the response violated the schema rules.
			lastErr = fmt.Errorf("response contained %d triples, none valid", len(parsed.Triples))
			logger.Warn("triple extraction returned only invalid triples",
				"chunk", chunk.ID, "attempt", attempt)
			continue
		}

		res.Triples = triples
		return res, nil
	}

	logger.Warn("triple extraction exhausted retries, chunk marked incomplete",
		"chunk", chunk.ID, "attempts", res.Attempts, "error", lastErr)
	res.Incomplete = true
	return res, nil
}

// validate keeps triples with non-empty fields, clamps confidence into
// [0,1], substitutes the heuristic default for omitted scores, and attaches
// the chunk's citation range.
func (e *TripleExtractor) validate(chunk common.Chunk, raw []extractTriple) ([]common.Triple, error) {
	citations := chunkCitations(chunk)

	var out []common.Triple
	for _, t := range raw {
		subject := strings.TrimSpace(t.Subject)
		predicate := strings.TrimSpace(t.Predicate)
		object := strings.TrimSpace(t.Object)
		if subject == "" || predicate == "" || object == "" {
			continue
		}

		confidence := t.Confidence
		switch {
		case confidence <= 0:
			confidence = heuristicConfidence
		case confidence > 1:
			confidence = 1
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate triple ID: %w", err)
		}

		out = append(out, common.Triple{
			ID:         id,
			ChunkID:    chunk.ID,
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Confidence: confidence,
			Citations:  citations,
		})
	}

	return out, nil
}

// chunkCitations maps a chunk's citation range onto triple citations: the
// start position, plus the end position when the chunk spans further.
func chunkCitations(chunk common.Chunk) []common.Citation {
	start := common.Citation{
		Page:      chunk.PageStart,
		Paragraph: chunk.ParagraphStart,
		Line:      chunk.LineStart,
	}
	if chunk.PageEnd == chunk.PageStart && chunk.ParagraphEnd == chunk.ParagraphStart {
		return []common.Citation{start}
	}
	end := common.Citation{
		Page:      chunk.PageEnd,
		Paragraph: chunk.ParagraphEnd,
		Line:      chunk.LineEnd,
	}
	return []common.Citation{start, end}
}

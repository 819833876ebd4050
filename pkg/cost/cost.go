// Package cost prices token usage against a per-1K-token rate table. The
// tracker is pure arithmetic; usage numbers come from the AI client metrics
// and the chunker.
package cost

import (
	"github.com/irt-labs/studygraph/internal/util"
)

// Default per-1K-token rates. Local models price at zero.
const (
	DefaultExtractionRate = 0.0015 // gpt-3.5-turbo class
	DefaultPremiumRate    = 0.03   // gpt-4 class
	DefaultEmbeddingRate  = 0.0001
)

// Rates holds the per-1K-token prices in effect for one tracker.
type Rates struct {
	Extraction float64
	Premium    float64
	Embedding  float64
}

// RatesFromEnv reads rate overrides from COST_RATE_EXTRACTION,
// COST_RATE_PREMIUM and COST_RATE_EMBEDDING, falling back to the defaults.
func RatesFromEnv() Rates {
	return Rates{
		Extraction: util.GetEnvFloat("COST_RATE_EXTRACTION", DefaultExtractionRate),
		Premium:    util.GetEnvFloat("COST_RATE_PREMIUM", DefaultPremiumRate),
		Embedding:  util.GetEnvFloat("COST_RATE_EMBEDDING", DefaultEmbeddingRate),
	}
}

// Usage is the token consumption of one document run.
type Usage struct {
	ExtractionTokens int
	PremiumTokens    int
	EmbeddingTokens  int
}

// Breakdown itemizes the price of a Usage.
type Breakdown struct {
	ExtractionCost float64 `json:"extraction_cost"`
	EmbeddingCost  float64 `json:"embedding_cost"`
	TotalCost      float64 `json:"total_cost"`
	TokensUsed     int     `json:"tokens_used"`
}

type Tracker struct {
	rates Rates
}

func NewTracker(rates Rates) *Tracker {
	if rates.Extraction == 0 && rates.Premium == 0 && rates.Embedding == 0 {
		rates = Rates{
			Extraction: DefaultExtractionRate,
			Premium:    DefaultPremiumRate,
			Embedding:  DefaultEmbeddingRate,
		}
	}
	return &Tracker{rates: rates}
}

// Price itemizes the cost of usage under the tracker's rate table.
func (t *Tracker) Price(usage Usage) Breakdown {
	extraction := float64(usage.ExtractionTokens) / 1000 * t.rates.Extraction
	extraction += float64(usage.PremiumTokens) / 1000 * t.rates.Premium
	embedding := float64(usage.EmbeddingTokens) / 1000 * t.rates.Embedding

	return Breakdown{
		ExtractionCost: extraction,
		EmbeddingCost:  embedding,
		TotalCost:      extraction + embedding,
		TokensUsed:     usage.ExtractionTokens + usage.PremiumTokens + usage.EmbeddingTokens,
	}
}

// Estimate prices a token count before processing, assuming every token is
// spent once on extraction and once on embedding.
func (t *Tracker) Estimate(tokens int) float64 {
	return t.Price(Usage{ExtractionTokens: tokens, EmbeddingTokens: tokens}).TotalCost
}

package cost

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestPriceDefaults(t *testing.T) {
	tracker := NewTracker(Rates{})

	got := tracker.Price(Usage{
		ExtractionTokens: 2000,
		EmbeddingTokens:  10000,
	})

	if !almostEqual(got.ExtractionCost, 0.003) {
		t.Errorf("extraction cost: got %v, want 0.003", got.ExtractionCost)
	}
	if !almostEqual(got.EmbeddingCost, 0.001) {
		t.Errorf("embedding cost: got %v, want 0.001", got.EmbeddingCost)
	}
	if !almostEqual(got.TotalCost, 0.004) {
		t.Errorf("total cost: got %v, want 0.004", got.TotalCost)
	}
	if got.TokensUsed != 12000 {
		t.Errorf("tokens used: got %d, want 12000", got.TokensUsed)
	}
}

func TestPricePremiumModel(t *testing.T) {
	tracker := NewTracker(Rates{})

	got := tracker.Price(Usage{PremiumTokens: 1000})
	if !almostEqual(got.TotalCost, DefaultPremiumRate) {
		t.Errorf("premium cost: got %v, want %v", got.TotalCost, DefaultPremiumRate)
	}
}

func TestPriceZeroUsage(t *testing.T) {
	tracker := NewTracker(Rates{})

	got := tracker.Price(Usage{})
	if got.TotalCost != 0 || got.TokensUsed != 0 {
		t.Errorf("zero usage must price at zero: %+v", got)
	}
}

func TestLocalRatesPriceFree(t *testing.T) {
	// A partially-zero table is honoured as configured, not replaced by
	// defaults: local embeddings are free while extraction still costs.
	tracker := NewTracker(Rates{Extraction: 0.002, Embedding: 0})

	got := tracker.Price(Usage{ExtractionTokens: 500, EmbeddingTokens: 500})
	if !almostEqual(got.TotalCost, 0.001) {
		t.Errorf("got %v, want 0.001", got.TotalCost)
	}
	if got.EmbeddingCost != 0 {
		t.Errorf("local embedding must be free, got %v", got.EmbeddingCost)
	}
}

func TestEstimate(t *testing.T) {
	tracker := NewTracker(Rates{})

	// 1000 tokens extracted and embedded once each.
	want := DefaultExtractionRate + DefaultEmbeddingRate
	if got := tracker.Estimate(1000); !almostEqual(got, want) {
		t.Errorf("estimate: got %v, want %v", got, want)
	}
}

func TestRatesFromEnvOverride(t *testing.T) {
	t.Setenv("COST_RATE_EXTRACTION", "0.01")
	t.Setenv("COST_RATE_EMBEDDING", "not-a-number")

	rates := RatesFromEnv()
	if rates.Extraction != 0.01 {
		t.Errorf("override not applied: %v", rates.Extraction)
	}
	if rates.Embedding != DefaultEmbeddingRate {
		t.Errorf("invalid override must fall back to default: %v", rates.Embedding)
	}
	if rates.Premium != DefaultPremiumRate {
		t.Errorf("unset rate must default: %v", rates.Premium)
	}
}

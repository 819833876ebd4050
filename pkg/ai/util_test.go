package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type extractTestPayload struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Confidence float64 `json:"confidence"`
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  extractTestPayload
	}{
		{
			name:  "standard json",
			input: `{"subject": "aspirin", "predicate": "treats", "confidence": 0.9}`,
			want:  extractTestPayload{Subject: "aspirin", Predicate: "treats", Confidence: 0.9},
		},
		{
			name:  "double encoded",
			input: `"{\"subject\": \"aspirin\", \"predicate\": \"treats\", \"confidence\": 0.9}"`,
			want:  extractTestPayload{Subject: "aspirin", Predicate: "treats", Confidence: 0.9},
		},
		{
			name:  "unquoted keys repaired",
			input: `{subject: "aspirin", predicate: "treats", confidence: 0.9}`,
			want:  extractTestPayload{Subject: "aspirin", Predicate: "treats", Confidence: 0.9},
		},
		{
			name:  "trailing comma repaired",
			input: `{"subject": "aspirin", "predicate": "treats", "confidence": 0.9,}`,
			want:  extractTestPayload{Subject: "aspirin", Predicate: "treats", Confidence: 0.9},
		},
		{
			name:  "duplicate leading brace",
			input: `{{"subject": "aspirin", "predicate": "treats", "confidence": 0.9}`,
			want:  extractTestPayload{Subject: "aspirin", Predicate: "treats", Confidence: 0.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got extractTestPayload
			if err := UnmarshalFlexible(tt.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrepairable(t *testing.T) {
	var got extractTestPayload
	if err := UnmarshalFlexible("the model declined to answer", &got); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if !IsRetryable(fmt.Errorf("rate limited: %w", ErrTransient)) {
		t.Fatal("wrapped ErrTransient must be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded must be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Fatal("cancellation must not be retryable")
	}
	if IsRetryable(errors.New("malformed input")) {
		t.Fatal("arbitrary errors must not be retryable")
	}
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(nil) {
		t.Fatal("nil is not permanent")
	}
	if IsPermanent(errors.New("malformed response")) {
		t.Fatal("parse failures are not permanent, they get the corrective retry")
	}
	if IsPermanent(context.DeadlineExceeded) {
		t.Fatal("timeouts are not permanent")
	}
}

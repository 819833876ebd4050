package common

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{"pending to chunking", StatusPending, StatusChunking, true},
		{"chunking to extracting", StatusChunking, StatusExtracting, true},
		{"extracting to committing", StatusExtracting, StatusCommitting, true},
		{"committing to committed", StatusCommitting, StatusCommitted, true},
		{"committing to metadata_pending", StatusCommitting, StatusMetadataPending, true},
		{"metadata_pending to committed", StatusMetadataPending, StatusCommitted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"chunking to failed", StatusChunking, StatusFailed, true},
		{"extracting to failed", StatusExtracting, StatusFailed, true},
		{"committing to failed", StatusCommitting, StatusFailed, true},
		{"metadata_pending to failed", StatusMetadataPending, StatusFailed, true},
		{"retry reset", StatusFailed, StatusPending, true},

		{"no skipping chunking", StatusPending, StatusExtracting, false},
		{"no skipping extracting", StatusChunking, StatusCommitting, false},
		{"no direct commit", StatusPending, StatusCommitted, false},
		{"committed is terminal", StatusCommitted, StatusFailed, false},
		{"failed stays failed", StatusFailed, StatusFailed, false},
		{"no backward chunking", StatusExtracting, StatusChunking, false},
		{"metadata_pending only from committing", StatusExtracting, StatusMetadataPending, false},
		{"committed cannot reset", StatusCommitted, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	if !StatusCommitted.Terminal() || !StatusFailed.Terminal() {
		t.Fatal("committed and failed must be terminal")
	}
	for _, s := range []DocumentStatus{StatusPending, StatusChunking, StatusExtracting, StatusCommitting, StatusMetadataPending} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestSnapshotAddNegate(t *testing.T) {
	snap := StatisticsSnapshot{TotalDocuments: 2, TotalChunks: 10, TotalTriples: 30, TotalTokens: 5000, TotalCost: 1.5}
	delta := StatisticsDelta{Documents: 1, Chunks: 4, Triples: 12, Tokens: 800, Cost: 0.25}

	after := snap.Add(delta, snap.UpdatedAt)
	if after.TotalChunks != 14 || after.TotalDocuments != 3 || after.TotalTriples != 42 {
		t.Fatalf("unexpected snapshot after add: %+v", after)
	}

	restored := after.Add(delta.Negate(), snap.UpdatedAt)
	if restored != snap {
		t.Fatalf("add then negate must restore snapshot, got %+v want %+v", restored, snap)
	}
}

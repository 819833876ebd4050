package common

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusPending         DocumentStatus = "pending"
	StatusChunking        DocumentStatus = "chunking"
	StatusExtracting      DocumentStatus = "extracting"
	StatusCommitting      DocumentStatus = "committing"
	StatusCommitted       DocumentStatus = "committed"
	StatusMetadataPending DocumentStatus = "metadata_pending"
	StatusFailed          DocumentStatus = "failed"
)

// Terminal reports whether the status is an end state of the pipeline.
// metadata_pending is not terminal: reconciliation advances it to committed.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal status
// change. Statuses only advance forward; failed is reachable from any
// non-terminal state; metadata_pending is reachable only from committing;
// the single backward edge is the explicit retry-reset failed -> pending.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch next {
	case StatusFailed:
		return !s.Terminal()
	case StatusPending:
		return s == StatusFailed
	case StatusChunking:
		return s == StatusPending
	case StatusExtracting:
		return s == StatusChunking
	case StatusCommitting:
		return s == StatusExtracting
	case StatusCommitted:
		return s == StatusCommitting || s == StatusMetadataPending
	case StatusMetadataPending:
		return s == StatusCommitting
	}
	return false
}

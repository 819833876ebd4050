package queue

// QueueIngestMsg asks the worker to ingest one document. SourceKey is the
// object key of the uploaded file inside the configured S3 bucket.
type QueueIngestMsg struct {
	Message      string `json:"message"`
	DocumentName string `json:"document_name"`
	SourceKey    string `json:"source_key"`
}

// QueueDeleteMsg asks the worker to remove one document and everything
// derived from it.
type QueueDeleteMsg struct {
	Message      string `json:"message"`
	DocumentName string `json:"document_name"`
}

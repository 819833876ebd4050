// Package meta defines the metadata-store boundary: upload records and the
// statistics snapshot, kept physically separate from the graph store so the
// two can drift and be reconciled.
package meta

import (
	"context"
	"errors"

	"github.com/irt-labs/studygraph/pkg/common"
)

// ErrRecordNotFound is returned when no upload record exists for a document.
var ErrRecordNotFound = errors.New("upload record not found")

// MetaStore persists per-document upload records and the singleton
// statistics snapshot.
type MetaStore interface {
	UpsertUploadRecord(ctx context.Context, record common.UploadRecord) error
	GetUploadRecord(ctx context.Context, documentName string) (*common.UploadRecord, error)
	ListUploadRecords(ctx context.Context) ([]common.UploadRecord, error)
	DeleteUploadRecord(ctx context.Context, documentName string) error

	// GetSnapshot returns the current snapshot; a store with no snapshot
	// yet returns the zero value, not an error.
	GetSnapshot(ctx context.Context) (common.StatisticsSnapshot, error)
	ReplaceSnapshot(ctx context.Context, snapshot common.StatisticsSnapshot) error
}

// Package mongo implements the metadata store on MongoDB. Upload records
// live in one collection keyed by document name; the statistics snapshot is
// a singleton document in another.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/irt-labs/studygraph/pkg/common"
	"github.com/irt-labs/studygraph/pkg/meta"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	UploadsCollection    = "uploads"
	StatisticsCollection = "statistics"

	snapshotID = "global"
)

type MetaDBStore struct {
	uploads    *mongo.Collection
	statistics *mongo.Collection
}

func NewMetaDBStore(db *mongo.Database) *MetaDBStore {
	return &MetaDBStore{
		uploads:    db.Collection(UploadsCollection),
		statistics: db.Collection(StatisticsCollection),
	}
}

func (s *MetaDBStore) UpsertUploadRecord(ctx context.Context, record common.UploadRecord) error {
	_, err := s.uploads.ReplaceOne(ctx,
		bson.M{"document_name": record.DocumentName},
		record,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert upload record %s: %w", record.DocumentName, err)
	}
	return nil
}

func (s *MetaDBStore) GetUploadRecord(ctx context.Context, documentName string) (*common.UploadRecord, error) {
	var record common.UploadRecord
	err := s.uploads.FindOne(ctx, bson.M{"document_name": documentName}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, meta.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read upload record %s: %w", documentName, err)
	}
	return &record, nil
}

func (s *MetaDBStore) ListUploadRecords(ctx context.Context) ([]common.UploadRecord, error) {
	cursor, err := s.uploads.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list upload records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []common.UploadRecord
	for cursor.Next(ctx) {
		var record common.UploadRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, cursor.Err()
}

func (s *MetaDBStore) DeleteUploadRecord(ctx context.Context, documentName string) error {
	_, err := s.uploads.DeleteOne(ctx, bson.M{"document_name": documentName})
	if err != nil {
		return fmt.Errorf("failed to delete upload record %s: %w", documentName, err)
	}
	return nil
}

// snapshotDoc wraps the snapshot with the fixed singleton ID.
type snapshotDoc struct {
	ID                        string `bson:"_id"`
	common.StatisticsSnapshot `bson:",inline"`
}

func (s *MetaDBStore) GetSnapshot(ctx context.Context) (common.StatisticsSnapshot, error) {
	var doc snapshotDoc
	err := s.statistics.FindOne(ctx, bson.M{"_id": snapshotID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return common.StatisticsSnapshot{}, nil
		}
		return common.StatisticsSnapshot{}, fmt.Errorf("failed to read statistics snapshot: %w", err)
	}
	return doc.StatisticsSnapshot, nil
}

func (s *MetaDBStore) ReplaceSnapshot(ctx context.Context, snapshot common.StatisticsSnapshot) error {
	_, err := s.statistics.ReplaceOne(ctx,
		bson.M{"_id": snapshotID},
		snapshotDoc{ID: snapshotID, StatisticsSnapshot: snapshot},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace statistics snapshot: %w", err)
	}
	return nil
}

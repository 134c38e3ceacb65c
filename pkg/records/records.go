// Package records is the write path for parsed line records. Records are
// only ever inserted in batches; nothing in the service updates or deletes
// them.
package records

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record is one successfully parsed line.
type Record struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"record_id"`
	FileID      primitive.ObjectID `bson:"file_id"       json:"file_id"`
	JobID       primitive.ObjectID `bson:"job_id"        json:"job_id"`
	LineNumber  int                `bson:"line_number"   json:"line_number"`
	Data        any                `bson:"data"          json:"data"`
	ProcessedAt time.Time          `bson:"processed_at"  json:"processed_at"`
}

// Sink inserts parsed records into the parsed_records collection.
type Sink struct {
	coll *mongo.Collection
}

// New creates a sink over the parsed records collection.
func New(coll *mongo.Collection) *Sink {
	return &Sink{coll: coll}
}

// InsertBatch writes one batch of records. Inserts are unordered so one
// bad document does not discard the rest of the batch; the returned count
// is the number of documents actually written.
func (s *Sink) InsertBatch(ctx context.Context, batch []Record) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	docs := make([]any, len(batch))
	for i := range batch {
		if batch[i].ID.IsZero() {
			batch[i].ID = primitive.NewObjectID()
		}
		if batch[i].ProcessedAt.IsZero() {
			batch[i].ProcessedAt = now
		}
		docs[i] = batch[i]
	}

	res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil && len(res.InsertedIDs) > 0 && err != nil {
		// Partial write: report what landed, the caller decides whether
		// the remainder is fatal.
		return int64(len(res.InsertedIDs)), fmt.Errorf("partial batch insert: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert parsed records: %w", err)
	}
	return int64(len(res.InsertedIDs)), nil
}

// CountByJob returns how many records a job has inserted so far.
func (s *Sink) CountByJob(ctx context.Context, jobID primitive.ObjectID) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"job_id": jobID})
	if err != nil {
		return 0, fmt.Errorf("failed to count parsed records: %w", err)
	}
	return n, nil
}

// Package catalog owns file records: one per uploaded blob. It is the only
// component that mutates the files collection.
package catalog

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of a file record. It only ever advances
// uploaded → processed.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusProcessed Status = "processed"
)

// ErrNotFound is returned when no file record matches the query.
var ErrNotFound = errors.New("file not found")

// ErrInvalidTransition is returned when a status change would regress the
// lifecycle.
var ErrInvalidTransition = errors.New("invalid file status transition")

// File is one uploaded blob's metadata.
type File struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"file_id"`
	Key          string             `bson:"key"           json:"key"`
	OriginalName string             `bson:"original_name" json:"original_name"`
	Size         int64              `bson:"size"          json:"size"`
	ContentType  string             `bson:"content_type"  json:"content_type"`
	Status       Status             `bson:"status"        json:"status"`
	CreatedAt    time.Time          `bson:"created_at"    json:"created_at"`
}

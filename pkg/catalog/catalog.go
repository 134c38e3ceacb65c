package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Catalog provides CRUD over file records.
type Catalog struct {
	coll *mongo.Collection
}

// New creates a catalog over the files collection.
func New(coll *mongo.Collection) *Catalog {
	return &Catalog{coll: coll}
}

// Create inserts a new file record in state uploaded. Size must be the
// exact byte count observed while streaming to the object store.
func (c *Catalog) Create(ctx context.Context, key, originalName string, size int64, contentType string) (*File, error) {
	file := &File{
		ID:           primitive.NewObjectID(),
		Key:          key,
		OriginalName: originalName,
		Size:         size,
		ContentType:  contentType,
		Status:       StatusUploaded,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := c.coll.InsertOne(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to insert file record: %w", err)
	}
	return file, nil
}

// Get returns the file record with the given id.
func (c *Catalog) Get(ctx context.Context, id primitive.ObjectID) (*File, error) {
	var file File
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file record: %w", err)
	}
	return &file, nil
}

// GetByKey returns the file record with the given object store key.
func (c *Catalog) GetByKey(ctx context.Context, key string) (*File, error) {
	var file File
	err := c.coll.FindOne(ctx, bson.M{"key": key}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file record: %w", err)
	}
	return &file, nil
}

// SetStatus advances the file lifecycle. The only permitted transition is
// uploaded → processed; setting processed on an already processed file is
// a no-op.
func (c *Catalog) SetStatus(ctx context.Context, id primitive.ObjectID, status Status) error {
	if status != StatusProcessed {
		return fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, status)
	}

	res, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []Status{StatusUploaded, StatusProcessed}}},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns file records sorted newest first, optionally filtered by
// status. skip/limit implement pagination.
func (c *Catalog) List(ctx context.Context, skip, limit int64, status *Status) ([]*File, error) {
	filter := bson.M{}
	if status != nil {
		filter["status"] = *status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	defer cur.Close(ctx)

	files := make([]*File, 0)
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}
	return files, nil
}

// Package mongo provides the metadata store connection shared by the file
// catalog, the job queue, and the parsed-record sink.
//
// It owns the client lifecycle (pooled connection, liveness ping, teardown)
// and index creation for the three collections. All index creation is
// idempotent; Mongo treats an existing index with the same spec as a no-op.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fileflux/fileflux/internal/logger"
)

// Collection names.
const (
	CollectionFiles         = "files"
	CollectionJobs          = "jobs"
	CollectionParsedRecords = "parsed_records"
)

// Pool sizing.
const (
	minPoolSize    = 2
	maxPoolSize    = 10
	connectTimeout = 10 * time.Second
)

// DefaultDatabase is used when the connection URI carries no database path.
const DefaultDatabase = "fileflux"

// Store wraps the Mongo client and the service database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes a pooled connection, verifies it with a ping, and
// creates the collection indexes.
func Connect(ctx context.Context, uri string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMinPoolSize(minPoolSize).
		SetMaxPoolSize(maxPoolSize).
		SetConnectTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &Store{
		client: client,
		db:     client.Database(DatabaseFromURI(uri)),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info("metadata store connected", "database", store.db.Name())
	return store, nil
}

// DatabaseFromURI extracts the database name from a Mongo connection URI,
// falling back to DefaultDatabase when the URI has no path component.
func DatabaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return DefaultDatabase
	}
	return name
}

// Files returns the file catalog collection.
func (s *Store) Files() *mongo.Collection { return s.db.Collection(CollectionFiles) }

// Jobs returns the job queue collection.
func (s *Store) Jobs() *mongo.Collection { return s.db.Collection(CollectionJobs) }

// ParsedRecords returns the parsed record collection.
func (s *Store) ParsedRecords() *mongo.Collection { return s.db.Collection(CollectionParsedRecords) }

// Ping verifies store liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close tears down the connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ensureIndexes creates the indexes each collection relies on.
//
// The job queue indexes back the two hot scans: FIFO claim
// (state, queued_at) and the stale sweep (state, lock_until).
func (s *Store) ensureIndexes(ctx context.Context) error {
	fileIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := s.Files().Indexes().CreateMany(ctx, fileIndexes); err != nil {
		return fmt.Errorf("failed to create file indexes: %w", err)
	}

	jobIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "file_id", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "queued_at", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "lock_until", Value: 1}}},
		{Keys: bson.D{{Key: "worker_id", Value: 1}}},
	}
	if _, err := s.Jobs().Indexes().CreateMany(ctx, jobIndexes); err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}

	recordIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "file_id", Value: 1}, {Key: "job_id", Value: 1}}},
	}
	if _, err := s.ParsedRecords().Indexes().CreateMany(ctx, recordIndexes); err != nil {
		return fmt.Errorf("failed to create parsed record indexes: %w", err)
	}

	return nil
}

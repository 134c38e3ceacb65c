// Package object defines the object store contract used by the ingest
// pipeline (streaming puts) and the processing worker (streaming gets).
package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// PutResult describes a completed streaming upload.
type PutResult struct {
	// Key is the object key the body was stored under.
	Key string

	// ETag is the entity tag reported by the store.
	ETag string

	// Size is the exact number of bytes read from the body stream.
	Size int64
}

// Store is implemented by object store backends.
//
// PutStream uploads a body of unknown total length without buffering the
// whole payload; memory use is bounded by part size times upload
// concurrency. GetStream returns a consumer-driven byte stream the caller
// must close. Probe is a cheap reachability check.
type Store interface {
	PutStream(ctx context.Context, key string, body io.Reader, contentType string) (PutResult, error)
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)
	Probe(ctx context.Context) error
}

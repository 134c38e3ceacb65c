// Package s3 implements the object store contract on Amazon S3 or any
// S3-compatible endpoint (MinIO, LocalStack).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fileflux/fileflux/pkg/store/object"
)

// MinPartSize is the S3 minimum multipart part size (5 MiB).
const MinPartSize = 5 * 1024 * 1024

// DefaultMaxParallelParts bounds concurrent part uploads per put.
const DefaultMaxParallelParts = 4

// api is the subset of the S3 client the store uses. Narrowing the client
// keeps the store testable against a fake.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Store implements object.Store on S3.
//
// Uploads below one part size use a single PutObject call. Larger bodies
// stream through a multipart upload with bounded part concurrency, so
// resident memory is O(partSize × maxParallelParts) regardless of payload
// size. On any part failure the multipart upload is aborted; no orphan
// parts survive an error.
type Store struct {
	client           api
	bucket           string
	partSize         int
	maxParallelParts int
}

// Compile-time check that Store satisfies the object store contract.
var _ object.Store = (*Store)(nil)

// Config holds S3 store configuration.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. Accepts "s3://bucket/path" forms; the
	// scheme and any path are stripped.
	Bucket string

	// PartSize is the multipart part size in bytes. Must be >= 5 MiB.
	// Default: 5 MiB.
	PartSize int

	// MaxParallelParts bounds concurrent part uploads per put. Default: 4.
	MaxParallelParts int
}

// NewClient creates an S3 client from flat configuration values.
// An empty endpoint selects the default AWS endpoint for the region.
func NewClient(ctx context.Context, region, accessKeyID, secretAccessKey, endpoint string, forcePathStyle bool) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	if accessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
	})
	return client, nil
}

// New creates an S3-backed object store. The bucket must already exist;
// reachability is verified with a HeadBucket probe.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	bucket := NormalizeBucket(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = MinPartSize
	}
	if partSize < MinPartSize {
		return nil, fmt.Errorf("part size must be at least 5MiB, got %d bytes", partSize)
	}

	maxParallel := cfg.MaxParallelParts
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallelParts
	}

	store := &Store{
		client:           cfg.Client,
		bucket:           bucket,
		partSize:         partSize,
		maxParallelParts: maxParallel,
	}

	if err := store.Probe(ctx); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", bucket, err)
	}
	return store, nil
}

// NormalizeBucket strips an optional "s3://" scheme and any path component
// from a configured bucket value, returning the bare bucket name.
func NormalizeBucket(bucket string) string {
	bucket = strings.TrimSpace(bucket)
	bucket = strings.TrimPrefix(bucket, "s3://")
	if i := strings.IndexByte(bucket, '/'); i >= 0 {
		bucket = bucket[:i]
	}
	return bucket
}

// Probe checks bucket reachability with a HeadBucket request.
func (s *Store) Probe(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", s.bucket, err)
	}
	return nil
}

// GetStream returns the object body as a readable stream. The caller must
// close the returned reader.
func (s *Store) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return out.Body, nil
}

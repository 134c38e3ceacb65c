package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records calls and reassembles uploaded bytes so tests can verify
// the streaming protocol without a real bucket.
type fakeS3 struct {
	mu            sync.Mutex
	putObjects    map[string][]byte
	parts         map[int32][]byte
	created       int
	completed     int
	aborted       int
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	failPart      int32 // fail this part number once, 0 = never
	failPut       bool
	headBucketErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		putObjects: make(map[string][]byte),
		parts:      make(map[int32][]byte),
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("put refused")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.putObjects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &awss3.PutObjectOutput{ETag: aws.String(`"single"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.putObjects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no such key")
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.headBucketErr != nil {
		return nil, f.headBucketErr
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, _ *awss3.CreateMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	return &awss3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *awss3.UploadPartInput, _ ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	pn := aws.ToInt32(in.PartNumber)
	if pn == f.failPart {
		return nil, fmt.Errorf("part %d refused", pn)
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.parts[pn] = data
	f.mu.Unlock()
	return &awss3.UploadPartOutput{ETag: aws.String(fmt.Sprintf(`"part-%d"`, pn))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *awss3.CompleteMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	f.completed++
	f.mu.Unlock()
	return &awss3.CompleteMultipartUploadOutput{ETag: aws.String(`"multi"`)}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, _ *awss3.AbortMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	f.aborted++
	f.mu.Unlock()
	return &awss3.AbortMultipartUploadOutput{}, nil
}

// assembled returns the multipart body reassembled in part order.
func (f *fakeS3) assembled() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for pn := int32(1); ; pn++ {
		data, ok := f.parts[pn]
		if !ok {
			return out
		}
		out = append(out, data...)
	}
}

func newTestStore(fake *fakeS3, partSize int) *Store {
	return &Store{
		client:           fake,
		bucket:           "test-bucket",
		partSize:         partSize,
		maxParallelParts: DefaultMaxParallelParts,
	}
}

// testPartSize keeps test payloads small. Production enforces the 5 MiB
// S3 minimum in New.
const testPartSize = 8 * 1024

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestPutStream_SmallBodyUsesPutObject(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	body := patterned(100)
	res, err := store.PutStream(context.Background(), "k1", bytes.NewReader(body), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "k1", res.Key)
	assert.Equal(t, int64(100), res.Size)
	assert.Equal(t, body, fake.putObjects["k1"])
	assert.Zero(t, fake.created, "small upload must not open a multipart session")
}

func TestPutStream_EmptyBody(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	res, err := store.PutStream(context.Background(), "empty", bytes.NewReader(nil), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Size)
	assert.Empty(t, fake.putObjects["empty"])
}

func TestPutStream_MultipartRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	// 3 full parts plus a partial tail.
	body := patterned(3*testPartSize + 123)
	res, err := store.PutStream(context.Background(), "big", bytes.NewReader(body), "application/json")
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), res.Size)
	assert.Equal(t, 1, fake.created)
	assert.Equal(t, 1, fake.completed)
	assert.Zero(t, fake.aborted)
	assert.Equal(t, body, fake.assembled(), "reassembled parts must equal the input verbatim")
}

func TestPutStream_ExactPartBoundary(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	body := patterned(2 * testPartSize)
	res, err := store.PutStream(context.Background(), "exact", bytes.NewReader(body), "text/csv")
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), res.Size)
	assert.Equal(t, body, fake.assembled())
	fake.mu.Lock()
	assert.Len(t, fake.parts, 2)
	fake.mu.Unlock()
}

func TestPutStream_BoundedConcurrency(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	body := patterned(20 * testPartSize)
	_, err := store.PutStream(context.Background(), "wide", bytes.NewReader(body), "text/plain")
	require.NoError(t, err)

	assert.LessOrEqual(t, fake.maxInFlight.Load(), int32(DefaultMaxParallelParts))
}

func TestPutStream_PartFailureAborts(t *testing.T) {
	fake := newFakeS3()
	fake.failPart = 2
	store := newTestStore(fake, testPartSize)

	body := patterned(4 * testPartSize)
	_, err := store.PutStream(context.Background(), "doomed", bytes.NewReader(body), "text/plain")
	require.Error(t, err)

	assert.Equal(t, 1, fake.aborted, "failed multipart upload must be aborted")
	assert.Zero(t, fake.completed)
}

func TestPutStream_BodyReadError(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	body := io.MultiReader(
		bytes.NewReader(patterned(testPartSize+10)),
		&failingReader{err: errors.New("client hung up")},
	)
	_, err := store.PutStream(context.Background(), "cutoff", body, "text/plain")
	require.Error(t, err)
	assert.Equal(t, 1, fake.aborted)
}

func TestPutStream_SingleBodyReadError(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	_, err := store.PutStream(context.Background(), "k", &failingReader{err: errors.New("boom")}, "text/plain")
	require.Error(t, err)
	assert.Zero(t, fake.created)
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestGetStream_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)

	body := patterned(512)
	_, err := store.PutStream(context.Background(), "rt", bytes.NewReader(body), "text/plain")
	require.NoError(t, err)

	rc, err := store.GetStream(context.Background(), "rt")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestProbe(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(fake, testPartSize)
	assert.NoError(t, store.Probe(context.Background()))

	fake.headBucketErr = errors.New("no such bucket")
	assert.Error(t, store.Probe(context.Background()))
}

func TestNormalizeBucket(t *testing.T) {
	tests := []struct{ in, want string }{
		{"my-bucket", "my-bucket"},
		{"s3://my-bucket", "my-bucket"},
		{"s3://my-bucket/some/prefix", "my-bucket"},
		{"my-bucket/trailing", "my-bucket"},
		{"  s3://padded  ", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBucket(tt.in))
		})
	}
}

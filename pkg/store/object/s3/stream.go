package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/bufpool"
	"github.com/fileflux/fileflux/pkg/store/object"
)

// PutStream uploads a body of unknown length under the given key.
//
// Bodies that fit in a single part go through PutObject. Anything larger
// streams through a multipart upload: parts of partSize bytes are read
// sequentially from the body and uploaded with at most maxParallelParts in
// flight. Reading pauses while all upload slots are busy, so the inbound
// stream experiences natural back-pressure.
//
// On any failure the multipart upload is aborted before returning.
func (s *Store) PutStream(ctx context.Context, key string, body io.Reader, contentType string) (object.PutResult, error) {
	first := bufpool.Get(s.partSize)
	defer bufpool.Put(first)

	n, err := io.ReadFull(body, first)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		// Whole body fits in one part.
		return s.putSingle(ctx, key, first[:n], contentType)
	case err != nil:
		return object.PutResult{}, fmt.Errorf("failed to read upload body: %w", err)
	}

	return s.putMultipart(ctx, key, first, body, contentType)
}

// putSingle uploads a small body with one PutObject call.
func (s *Store) putSingle(ctx context.Context, key string, data []byte, contentType string) (object.PutResult, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return object.PutResult{}, fmt.Errorf("failed to put object %q: %w", key, err)
	}

	return object.PutResult{
		Key:  key,
		ETag: aws.ToString(out.ETag),
		Size: int64(len(data)),
	}, nil
}

// putMultipart streams the remaining body through a multipart upload.
// firstPart is a full part already read from the body; its buffer is owned
// by the caller and must not be retained past the upload of part 1.
func (s *Store) putMultipart(ctx context.Context, key string, firstPart []byte, body io.Reader, contentType string) (object.PutResult, error) {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return object.PutResult{}, fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)

	logger.Debug("multipart upload started",
		logger.KeyKey, key, "upload_id", uploadID, "part_size", s.partSize)

	var (
		mu        sync.Mutex
		completed []types.CompletedPart
		firstErr  error
		wg        sync.WaitGroup
		slots     = make(chan struct{}, s.maxParallelParts)
	)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	uploadPart := func(partNumber int32, data []byte) {
		defer wg.Done()
		defer bufpool.Put(data)
		defer func() { <-slots }()

		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(data),
		})
		if err != nil {
			setErr(fmt.Errorf("failed to upload part %d: %w", partNumber, err))
			return
		}

		mu.Lock()
		completed = append(completed, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		mu.Unlock()
	}

	// Part 1 is the buffer the caller already filled. Copy it into a pooled
	// buffer so every in-flight part owns its own memory.
	total := int64(len(firstPart))
	partNumber := int32(1)
	part := bufpool.Get(len(firstPart))
	copy(part, firstPart)
	slots <- struct{}{}
	wg.Add(1)
	go uploadPart(partNumber, part)

	// Read and dispatch the remaining parts. Acquiring a slot blocks while
	// maxParallelParts uploads are in flight, which stops the reads.
	for !failed() {
		buf := bufpool.Get(s.partSize)
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			total += int64(n)
			partNumber++
			slots <- struct{}{}
			wg.Add(1)
			go uploadPart(partNumber, buf[:n])
		} else {
			bufpool.Put(buf)
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			setErr(fmt.Errorf("failed to read upload body: %w", err))
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		s.abort(ctx, key, uploadID)
		return object.PutResult{}, firstErr
	}

	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		s.abort(ctx, key, uploadID)
		return object.PutResult{}, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	logger.Debug("multipart upload completed",
		logger.KeyKey, key, "parts", len(completed), logger.KeySize, total)

	return object.PutResult{
		Key:  key,
		ETag: aws.ToString(out.ETag),
		Size: total,
	}, nil
}

// abort cancels an in-progress multipart upload. Idempotent: a missing
// upload is not an error.
func (s *Store) abort(ctx context.Context, key, uploadID string) {
	// The original context may already be cancelled; abort regardless so no
	// orphan parts accrue storage charges.
	_, err := s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			logger.Warn("failed to abort multipart upload",
				logger.KeyKey, key, "upload_id", uploadID, logger.KeyError, err)
		}
	}
}

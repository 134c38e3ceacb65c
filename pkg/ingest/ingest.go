// Package ingest streams multipart file uploads into the object store and
// registers them in the file catalog. The upload body is never buffered in
// full; memory stays bounded by the object store's part size regardless of
// file size.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/fileflux/fileflux/internal/bytesize"
	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/store/object"
)

// Sentinel errors mapped to HTTP responses by the API layer.
var (
	ErrNoFile          = errors.New("no file part in request")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// SizeLimitError is the ErrFileTooLarge variant carrying the configured
// cap, so the API layer can name the limit in its response.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("file exceeds maximum allowed size of %s", bytesize.ByteSize(e.Limit))
}

// Is matches ErrFileTooLarge so errors.Is keeps working at call sites.
func (e *SizeLimitError) Is(target error) bool { return target == ErrFileTooLarge }

// DefaultAllowedTypes is the upload MIME allow-list when none is configured.
var DefaultAllowedTypes = []string{
	"text/csv",
	"text/plain",
	"application/json",
	"application/x-ndjson",
}

// Config holds upload limits.
type Config struct {
	// MaxFileSize caps the upload body in bytes. Zero disables the cap.
	MaxFileSize int64

	// AllowedTypes is the MIME allow-list. Empty means DefaultAllowedTypes.
	AllowedTypes []string
}

// FileCreator is the slice of the catalog the ingestor needs.
type FileCreator interface {
	Create(ctx context.Context, key, originalName string, size int64, contentType string) (*catalog.File, error)
}

// Ingestor streams uploads to the object store and records them.
type Ingestor struct {
	objects object.Store
	files   FileCreator
	cfg     Config
}

// New creates an ingestor.
func New(objects object.Store, files FileCreator, cfg Config) *Ingestor {
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultAllowedTypes
	}
	return &Ingestor{objects: objects, files: files, cfg: cfg}
}

// Upload consumes the multipart stream, pushes the first file part to the
// object store, and creates the catalog record. The part is streamed as it
// arrives; an oversized body aborts the store upload mid-flight.
func (ing *Ingestor) Upload(ctx context.Context, mr *multipart.Reader) (*catalog.File, error) {
	part, err := nextFilePart(mr)
	if err != nil {
		return nil, err
	}
	defer part.Close()

	name := filepath.Base(part.FileName())
	contentType := partContentType(part, name)
	if !typeAllowed(contentType, ing.cfg.AllowedTypes) {
		// Drain so the client can finish writing before it reads the
		// rejection. Bounded to keep a hostile stream from pinning the
		// connection forever.
		drain(part, ing.cfg.MaxFileSize)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	key := object.GenerateKey(name)
	body := newCappedReader(part, ing.cfg.MaxFileSize)

	start := time.Now()
	put, err := ing.objects.PutStream(ctx, key, body, contentType)
	if err != nil {
		if errors.Is(body.err, ErrFileTooLarge) {
			return nil, body.err
		}
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	file, err := ing.files.Create(ctx, key, name, put.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to register upload: %w", err)
	}

	logger.Info("file uploaded",
		logger.KeyFileID, file.ID.Hex(),
		logger.KeyKey, key,
		logger.KeySize, put.Size,
		logger.KeyContentType, contentType,
		logger.KeyDurationMS, time.Since(start).Milliseconds())
	return file, nil
}

// nextFilePart advances the multipart stream to the first part carrying a
// filename, skipping plain form fields.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFile
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart stream: %w", err)
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// extTypes covers the line-oriented formats this service cares about. The
// platform mime table is consulted after this; it often lacks .csv and .txt.
var extTypes = map[string]string{
	".csv":    "text/csv",
	".tsv":    "text/tab-separated-values",
	".txt":    "text/plain",
	".log":    "text/plain",
	".json":   "application/json",
	".jsonl":  "application/x-ndjson",
	".ndjson": "application/x-ndjson",
}

// partContentType resolves the part's declared MIME type, falling back to
// the filename extension, then to application/octet-stream.
func partContentType(part *multipart.Part, name string) string {
	if ct := part.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := extTypes[ext]; ok {
		return mt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(contentType, strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

func drain(r io.Reader, max int64) {
	if max <= 0 {
		max = 64 << 20
	}
	_, _ = io.CopyN(io.Discard, r, max)
}

// cappedReader streams from the part while enforcing the size cap. The cap
// fires one byte past the limit so the store upload fails fast instead of
// silently truncating.
type cappedReader struct {
	r    io.Reader
	max  int64
	read int64
	err  error
}

func newCappedReader(r io.Reader, max int64) *cappedReader {
	return &cappedReader{r: r, max: max}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.max > 0 && c.read > c.max {
		c.err = &SizeLimitError{Limit: c.max}
		return n, c.err
	}
	return n, err
}

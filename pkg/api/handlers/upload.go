package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fileflux/fileflux/internal/bytesize"
	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/ingest"
	"github.com/fileflux/fileflux/pkg/metrics"
)

// Uploader is the slice of the ingest pipeline the handler drives.
type Uploader interface {
	Upload(ctx context.Context, mr *multipart.Reader) (*catalog.File, error)
}

// UploadHandler serves POST /upload.
type UploadHandler struct {
	ingestor Uploader
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(ingestor Uploader) *UploadHandler {
	return &UploadHandler{ingestor: ingestor}
}

type uploadResponse struct {
	FileID   string       `json:"file_id"`
	Key      string       `json:"key"`
	Message  string       `json:"message"`
	Metadata fileMetadata `json:"metadata"`
}

type fileMetadata struct {
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Upload streams the multipart body into the object store. The request body
// is consumed incrementally; nothing here buffers the full file.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		metrics.ObserveUpload("rejected", 0, time.Since(start))
		BadRequest(w, "Invalid content type. Expected multipart/form-data")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		metrics.ObserveUpload("rejected", 0, time.Since(start))
		BadRequest(w, "Malformed multipart request")
		return
	}

	file, err := h.ingestor.Upload(r.Context(), mr)
	if err != nil {
		h.writeUploadError(w, r, err, start)
		return
	}

	metrics.ObserveUpload("accepted", file.Size, time.Since(start))
	WriteJSON(w, http.StatusOK, uploadResponse{
		FileID:  file.ID.Hex(),
		Key:     file.Key,
		Message: "uploaded",
		Metadata: fileMetadata{
			OriginalName: file.OriginalName,
			Size:         file.Size,
			ContentType:  file.ContentType,
			Status:       string(file.Status),
			CreatedAt:    file.CreatedAt,
		},
	})
}

func (h *UploadHandler) writeUploadError(w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	switch {
	case errors.Is(err, ingest.ErrNoFile):
		metrics.ObserveUpload("rejected", 0, time.Since(start))
		BadRequest(w, "No file uploaded")
	case errors.Is(err, ingest.ErrUnsupportedType):
		metrics.ObserveUpload("rejected", 0, time.Since(start))
		BadRequest(w, "File type not allowed")
	case errors.Is(err, ingest.ErrFileTooLarge):
		metrics.ObserveUpload("too_large", 0, time.Since(start))
		msg := "File size exceeds maximum allowed size"
		var sizeErr *ingest.SizeLimitError
		if errors.As(err, &sizeErr) {
			msg = fmt.Sprintf("File size exceeds maximum allowed size of %s", bytesize.ByteSize(sizeErr.Limit))
		}
		WriteErrorMessage(w, http.StatusInternalServerError, "Upload failed", msg)
	default:
		metrics.ObserveUpload("failed", 0, time.Since(start))
		logger.Error("upload failed",
			logger.KeyRequestID, requestID(r),
			logger.KeyError, err)
		WriteErrorMessage(w, http.StatusInternalServerError, "Upload failed", "Failed to store uploaded file")
	}
}

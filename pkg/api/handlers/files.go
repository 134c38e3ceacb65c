package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/jobqueue"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// FileLister is the slice of the catalog the files handler needs.
type FileLister interface {
	Get(ctx context.Context, id primitive.ObjectID) (*catalog.File, error)
	List(ctx context.Context, skip, limit int64, status *catalog.Status) ([]*catalog.File, error)
}

// JobLister lists jobs attached to a file.
type JobLister interface {
	ListByFile(ctx context.Context, fileID primitive.ObjectID) ([]*jobqueue.Job, error)
}

// FilesHandler serves GET /files and GET /files/{fileID}.
type FilesHandler struct {
	files FileLister
	queue JobLister
}

// NewFilesHandler creates the files handler.
func NewFilesHandler(files FileLister, queue JobLister) *FilesHandler {
	return &FilesHandler{files: files, queue: queue}
}

type fileListResponse struct {
	Files []*catalog.File `json:"files"`
	Count int             `json:"count"`
	Skip  int64           `json:"skip"`
	Limit int64           `json:"limit"`
}

type fileDetailResponse struct {
	File *catalog.File   `json:"file"`
	Jobs []*jobqueue.Job `json:"jobs"`
}

// List returns file records newest first. Supports ?skip, ?limit, and
// ?status=uploaded|processed.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var status *catalog.Status
	switch s := catalog.Status(r.URL.Query().Get("status")); s {
	case catalog.StatusUploaded, catalog.StatusProcessed:
		status = &s
	case "":
	default:
		BadRequest(w, "Invalid status filter")
		return
	}

	files, err := h.files.List(r.Context(), skip, limit, status)
	if err != nil {
		logger.Error("failed to list files",
			logger.KeyRequestID, requestID(r),
			logger.KeyError, err)
		InternalServerError(w, "Failed to list files")
		return
	}

	WriteJSON(w, http.StatusOK, fileListResponse{
		Files: files,
		Count: len(files),
		Skip:  skip,
		Limit: limit,
	})
}

// Get returns one file record with its processing jobs, newest first.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseID(chi.URLParam(r, "fileID"))
	if !ok {
		BadRequest(w, "Invalid fileId format")
		return
	}

	file, err := h.files.Get(r.Context(), fileID)
	if errors.Is(err, catalog.ErrNotFound) {
		NotFound(w, "File not found")
		return
	}
	if err != nil {
		logger.Error("failed to load file",
			logger.KeyRequestID, requestID(r),
			logger.KeyFileID, fileID.Hex(),
			logger.KeyError, err)
		InternalServerError(w, "Failed to load file")
		return
	}

	jobs, err := h.queue.ListByFile(r.Context(), fileID)
	if err != nil {
		logger.Error("failed to list jobs for file",
			logger.KeyRequestID, requestID(r),
			logger.KeyFileID, fileID.Hex(),
			logger.KeyError, err)
		InternalServerError(w, "Failed to load file jobs")
		return
	}

	WriteJSON(w, http.StatusOK, fileDetailResponse{File: file, Jobs: jobs})
}

func queryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

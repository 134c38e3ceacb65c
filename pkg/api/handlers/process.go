package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/jobqueue"
)

// FileGetter is the slice of the catalog the process handler needs.
type FileGetter interface {
	Get(ctx context.Context, id primitive.ObjectID) (*catalog.File, error)
}

// JobCreator enqueues processing jobs.
type JobCreator interface {
	Create(ctx context.Context, fileID primitive.ObjectID) (*jobqueue.Job, error)
}

// ProcessHandler serves POST /process/{fileID}.
type ProcessHandler struct {
	files FileGetter
	queue JobCreator
}

// NewProcessHandler creates the process handler.
func NewProcessHandler(files FileGetter, queue JobCreator) *ProcessHandler {
	return &ProcessHandler{files: files, queue: queue}
}

type processResponse struct {
	JobID    string    `json:"job_id"`
	FileID   string    `json:"file_id"`
	State    string    `json:"state"`
	QueuedAt time.Time `json:"queued_at"`
	Message  string    `json:"message"`
}

// Process validates the file and enqueues a job for it. The job runs later
// on whichever worker claims it first.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
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

	job, err := h.queue.Create(r.Context(), file.ID)
	if err != nil {
		logger.Error("failed to enqueue job",
			logger.KeyRequestID, requestID(r),
			logger.KeyFileID, fileID.Hex(),
			logger.KeyError, err)
		InternalServerError(w, "Failed to queue processing job")
		return
	}

	logger.Info("processing job queued",
		logger.KeyJobID, job.ID.Hex(),
		logger.KeyFileID, file.ID.Hex())
	WriteJSON(w, http.StatusCreated, processResponse{
		JobID:    job.ID.Hex(),
		FileID:   file.ID.Hex(),
		State:    string(job.State),
		QueuedAt: job.QueuedAt,
		Message:  "Processing job queued",
	})
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/jobqueue"
)

// JobGetter reads job records.
type JobGetter interface {
	Get(ctx context.Context, jobID primitive.ObjectID) (*jobqueue.Job, error)
}

// JobsHandler serves GET /jobs/{jobID}.
type JobsHandler struct {
	queue JobGetter
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(queue JobGetter) *JobsHandler {
	return &JobsHandler{queue: queue}
}

type jobResponse struct {
	JobID      string                `json:"job_id"`
	FileID     string                `json:"file_id"`
	State      string                `json:"state"`
	Attempts   int                   `json:"attempts"`
	QueuedAt   time.Time             `json:"queued_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	WorkerID   *string               `json:"worker_id,omitempty"`
	Progress   jobqueue.Progress     `json:"progress"`
	ErrorCount int64                 `json:"error_count"`
	Errors     []jobqueue.ErrorEntry `json:"errors,omitempty"`
	Result     *jobqueue.Result      `json:"result,omitempty"`
}

// Get returns the full state of one job, including the bounded error tail.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(chi.URLParam(r, "jobID"))
	if !ok {
		BadRequest(w, "Invalid jobId format")
		return
	}

	job, err := h.queue.Get(r.Context(), jobID)
	if errors.Is(err, jobqueue.ErrNotFound) {
		NotFound(w, "Job not found")
		return
	}
	if err != nil {
		logger.Error("failed to load job",
			logger.KeyRequestID, requestID(r),
			logger.KeyJobID, jobID.Hex(),
			logger.KeyError, err)
		InternalServerError(w, "Failed to load job")
		return
	}

	WriteJSON(w, http.StatusOK, jobResponse{
		JobID:      job.ID.Hex(),
		FileID:     job.FileID.Hex(),
		State:      string(job.State),
		Attempts:   job.Attempts,
		QueuedAt:   job.QueuedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		WorkerID:   job.WorkerID,
		Progress:   job.Progress,
		ErrorCount: job.Progress.ErrorCount,
		Errors:     job.Errors,
		Result:     job.Result,
	})
}

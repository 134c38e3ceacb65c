package apiclient

import (
	"encoding/json"
	"net/url"
	"time"
)

// Progress mirrors the server's per-job counters.
type Progress struct {
	LinesProcessed  int64 `json:"lines_processed"`
	RecordsInserted int64 `json:"records_inserted"`
	ErrorCount      int64 `json:"error_count"`
}

// JobError is one entry of the bounded error tail.
type JobError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Result mirrors the server's terminal job outcome.
type Result struct {
	LinesProcessed  int64  `json:"lines_processed"`
	RecordsInserted int64  `json:"records_inserted"`
	ErrorCount      int64  `json:"error_count"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}

// Job mirrors the server's job representation.
type Job struct {
	JobID      string     `json:"job_id"`
	FileID     string     `json:"file_id"`
	State      string     `json:"state"`
	Attempts   int        `json:"attempts"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	WorkerID   *string    `json:"worker_id,omitempty"`
	Progress   Progress   `json:"progress"`
	ErrorCount int64      `json:"error_count"`
	Errors     []JobError `json:"errors,omitempty"`
	Result     *Result    `json:"result,omitempty"`
}

// ProcessResult is the response of POST /process/{fileID}.
type ProcessResult struct {
	JobID    string    `json:"job_id"`
	FileID   string    `json:"file_id"`
	State    string    `json:"state"`
	QueuedAt time.Time `json:"queued_at"`
	Message  string    `json:"message"`
}

// Process enqueues a processing job for the file.
func (c *Client) Process(fileID string) (*ProcessResult, error) {
	var out ProcessResult
	if err := c.post("/process/"+url.PathEscape(fileID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches one job.
func (c *Client) GetJob(jobID string) (*Job, error) {
	var out Job
	if err := c.get("/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health is the response of GET /healthz.
type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health extracts a health body from an error response, or nil if the
// body is not one. Degraded servers answer healthz with 503 and a
// regular health payload.
func (e *APIError) Health() *Health {
	var h Health
	if json.Unmarshal(e.Body, &h) != nil || h.Status == "" {
		return nil
	}
	return &h
}

// GetHealth fetches service health. A degraded service answers 503; the
// body is still recoverable through APIError.Health.
func (c *Client) GetHealth() (*Health, error) {
	var out Health
	if err := c.get("/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

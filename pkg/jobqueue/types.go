// Package jobqueue owns job records and every transition of the job state
// machine: queued → in_progress → (completed | failed). Routing all
// mutations through this package keeps the invariants in one place.
package jobqueue

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// State is the job lifecycle state.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrNoJob is returned by Claim when no queued job is available.
var ErrNoJob = errors.New("no queued job available")

// ErrNotFound is returned when no job matches the given id.
var ErrNotFound = errors.New("job not found")

// MaxErrorTail caps the per-job error list. When full, the oldest entries
// are evicted first.
const MaxErrorTail = 100

// StaleFailureMessage is recorded on jobs that exhausted their attempts
// during a stale-recovery pass.
const StaleFailureMessage = "exceeded maximum attempts and became stale"

// Progress is the per-job progress snapshot, updated once per batch flush.
type Progress struct {
	LinesProcessed  int64 `bson:"lines_processed"  json:"lines_processed"`
	RecordsInserted int64 `bson:"records_inserted" json:"records_inserted"`
	ErrorCount      int64 `bson:"error_count"      json:"error_count"`
}

// ErrorEntry is one retained per-line processing error.
type ErrorEntry struct {
	Message   string    `bson:"message"   json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Result is the terminal outcome of a job.
type Result struct {
	LinesProcessed  int64  `bson:"lines_processed"  json:"lines_processed"`
	RecordsInserted int64  `bson:"records_inserted" json:"records_inserted"`
	ErrorCount      int64  `bson:"error_count"      json:"error_count"`
	Success         bool   `bson:"success"          json:"success"`
	Error           string `bson:"error,omitempty"  json:"error,omitempty"`
	Stack           string `bson:"stack,omitempty"  json:"-"`
}

// Job is one unit of deferred processing against one file record.
type Job struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"         json:"job_id"`
	FileID     primitive.ObjectID `bson:"file_id"               json:"file_id"`
	State      State              `bson:"state"                 json:"state"`
	Attempts   int                `bson:"attempts"              json:"attempts"`
	QueuedAt   time.Time          `bson:"queued_at"             json:"queued_at"`
	StartedAt  *time.Time         `bson:"started_at,omitempty"  json:"started_at,omitempty"`
	FinishedAt *time.Time         `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	WorkerID   *string            `bson:"worker_id,omitempty"   json:"worker_id,omitempty"`
	LockUntil  *time.Time         `bson:"lock_until,omitempty"  json:"lock_until,omitempty"`
	Progress   Progress           `bson:"progress"              json:"progress"`
	Errors     []ErrorEntry       `bson:"errors,omitempty"      json:"errors,omitempty"`
	Result     *Result            `bson:"result,omitempty"      json:"result,omitempty"`
}

// Config holds queue timing and retry parameters.
type Config struct {
	// LockTimeout is the claim lease duration; extended on every progress
	// update.
	LockTimeout time.Duration

	// StaleThreshold marks in_progress jobs as stale once started_at is
	// older than this, regardless of lock state. Must exceed LockTimeout
	// so a freshly claimed job cannot be reset underneath its worker.
	StaleThreshold time.Duration

	// MaxAttempts bounds re-queues before a stale job is failed outright.
	MaxAttempts int
}

// DefaultConfig returns the standard queue parameters.
func DefaultConfig() Config {
	return Config{
		LockTimeout:    5 * time.Minute,
		StaleThreshold: 10 * time.Minute,
		MaxAttempts:    3,
	}
}

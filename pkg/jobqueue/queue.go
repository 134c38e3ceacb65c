package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fileflux/fileflux/internal/logger"
)

// Queue is the durable job queue over the jobs collection. All state
// transitions are single atomic Mongo operations, so any number of workers
// can share one queue without external coordination.
type Queue struct {
	coll *mongo.Collection
	cfg  Config
	now  func() time.Time
}

// New creates a queue over the jobs collection.
func New(coll *mongo.Collection, cfg Config) *Queue {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultConfig().StaleThreshold
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Queue{coll: coll, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Create enqueues a new job for the given file. Multiple jobs per file are
// allowed; each run inserts its own parsed records.
func (q *Queue) Create(ctx context.Context, fileID primitive.ObjectID) (*Job, error) {
	job := &Job{
		ID:       primitive.NewObjectID(),
		FileID:   fileID,
		State:    StateQueued,
		QueuedAt: q.now(),
	}
	if _, err := q.coll.InsertOne(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Claim atomically takes the oldest claimable job for the given worker:
// a queued job, or an in_progress job whose lock lease has expired and
// that still has attempts left. The claim sets the state, the worker
// identity, the start time, and a fresh lock lease in one
// FindOneAndUpdate, so two workers can never claim the same job. Expired
// leases being claimable means a killed worker's job re-enters
// circulation on the next claim pass, without waiting for a sweep.
// Returns ErrNoJob when nothing is claimable.
func (q *Queue) Claim(ctx context.Context, workerID string) (*Job, error) {
	now := q.now()

	opts := options.FindOneAndUpdate().
		SetSort(claimSort()).
		SetReturnDocument(options.After)

	var job Job
	err := q.coll.FindOneAndUpdate(ctx, claimFilter(now, q.cfg.MaxAttempts), claimUpdate(workerID, now, q.cfg.LockTimeout), opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	logger.Debug("job claimed",
		logger.KeyJobID, job.ID.Hex(),
		logger.KeyWorkerID, workerID,
		logger.KeyAttempts, job.Attempts)
	return &job, nil
}

// UpdateProgress overwrites the progress snapshot and extends the lock
// lease. Workers call this once per flushed batch, which keeps the lease
// alive for as long as the job makes forward progress.
func (q *Queue) UpdateProgress(ctx context.Context, jobID primitive.ObjectID, p Progress) error {
	res, err := q.coll.UpdateOne(ctx,
		bson.M{"_id": jobID, "state": StateInProgress},
		progressUpdate(p, q.now(), q.cfg.LockTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendError records one per-line processing error and bumps the error
// counter. Only the newest MaxErrorTail entries are retained.
func (q *Queue) AppendError(ctx context.Context, jobID primitive.ObjectID, message string) error {
	_, err := q.coll.UpdateOne(ctx,
		bson.M{"_id": jobID},
		appendErrorUpdate(ErrorEntry{Message: message, Timestamp: q.now()}),
	)
	if err != nil {
		return fmt.Errorf("failed to append job error: %w", err)
	}
	return nil
}

// Complete marks the job completed with its final result. The update is
// guarded on state so a job recovered by a stale sweep cannot be completed
// twice.
func (q *Queue) Complete(ctx context.Context, jobID primitive.ObjectID, result Result) error {
	result.Success = true
	res, err := q.coll.UpdateOne(ctx,
		bson.M{"_id": jobID, "state": StateInProgress},
		terminalUpdate(StateCompleted, result, q.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail marks the job failed, recording the failure message and an optional
// stack snapshot from the worker.
func (q *Queue) Fail(ctx context.Context, jobID primitive.ObjectID, result Result, failure string, stack string) error {
	result.Success = false
	result.Error = failure
	result.Stack = stack
	res, err := q.coll.UpdateOne(ctx,
		bson.M{"_id": jobID, "state": StateInProgress},
		terminalUpdate(StateFailed, result, q.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the job with the given id.
func (q *Queue) Get(ctx context.Context, jobID primitive.ObjectID) (*Job, error) {
	var job Job
	err := q.coll.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return &job, nil
}

// ListByFile returns all jobs for a file, newest first.
func (q *Queue) ListByFile(ctx context.Context, fileID primitive.ObjectID) ([]*Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "queued_at", Value: -1}})
	cur, err := q.coll.Find(ctx, bson.M{"file_id": fileID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer cur.Close(ctx)

	jobs := make([]*Job, 0)
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}
	return jobs, nil
}

// RecoverStale sweeps in_progress jobs whose worker went silent: the lock
// lease expired or the run exceeded StaleThreshold. Jobs with attempts
// left return to the queue; jobs out of attempts are failed. Runs at
// startup and may run periodically.
func (q *Queue) RecoverStale(ctx context.Context) (requeued, failed int64, err error) {
	now := q.now()

	resetRes, err := q.coll.UpdateMany(ctx,
		staleFilter(now, q.cfg.StaleThreshold, bson.M{"$lt": q.cfg.MaxAttempts}),
		staleResetUpdate(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}

	failRes, err := q.coll.UpdateMany(ctx,
		staleFilter(now, q.cfg.StaleThreshold, bson.M{"$gte": q.cfg.MaxAttempts}),
		staleFailUpdate(now),
	)
	if err != nil {
		return resetRes.ModifiedCount, 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	if resetRes.ModifiedCount > 0 || failRes.ModifiedCount > 0 {
		logger.Warn("recovered stale jobs",
			"requeued", resetRes.ModifiedCount,
			"failed", failRes.ModifiedCount)
	}
	return resetRes.ModifiedCount, failRes.ModifiedCount, nil
}

// The update and filter documents below are pure builders so the exact
// wire shape of each transition is unit-testable without a live Mongo.

func claimFilter(now time.Time, maxAttempts int) bson.M {
	return bson.M{
		"$or": []bson.M{
			{"state": StateQueued},
			{
				"state":      StateInProgress,
				"lock_until": bson.M{"$lt": now},
				"attempts":   bson.M{"$lt": maxAttempts},
			},
		},
	}
}

func claimSort() bson.D {
	return bson.D{{Key: "queued_at", Value: 1}, {Key: "_id", Value: 1}}
}

func claimUpdate(workerID string, now time.Time, lockTimeout time.Duration) bson.M {
	return bson.M{
		"$set": bson.M{
			"state":      StateInProgress,
			"worker_id":  workerID,
			"started_at": now,
			"lock_until": now.Add(lockTimeout),
		},
		"$inc": bson.M{"attempts": 1},
	}
}

func progressUpdate(p Progress, now time.Time, lockTimeout time.Duration) bson.M {
	return bson.M{
		"$set": bson.M{
			"progress":   p,
			"lock_until": now.Add(lockTimeout),
		},
	}
}

func appendErrorUpdate(entry ErrorEntry) bson.M {
	return bson.M{
		"$push": bson.M{
			"errors": bson.M{
				"$each":  []ErrorEntry{entry},
				"$slice": -MaxErrorTail,
			},
		},
		"$inc": bson.M{"progress.error_count": 1},
	}
}

func terminalUpdate(state State, result Result, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"state":       state,
			"finished_at": now,
			"result":      result,
			"progress": Progress{
				LinesProcessed:  result.LinesProcessed,
				RecordsInserted: result.RecordsInserted,
				ErrorCount:      result.ErrorCount,
			},
		},
	}
}

func staleFilter(now time.Time, staleThreshold time.Duration, attempts bson.M) bson.M {
	return bson.M{
		"state":    StateInProgress,
		"attempts": attempts,
		"$or": []bson.M{
			{"lock_until": bson.M{"$lt": now}},
			{"started_at": bson.M{"$lt": now.Add(-staleThreshold)}},
		},
	}
}

// staleResetUpdate returns a recovered job to the queue. queued_at is
// left untouched so the job keeps its original FIFO position.
func staleResetUpdate() bson.M {
	return bson.M{
		"$set": bson.M{
			"state": StateQueued,
		},
		"$unset": bson.M{
			"worker_id":  "",
			"started_at": "",
			"lock_until": "",
		},
	}
}

func staleFailUpdate(now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"state":          StateFailed,
			"finished_at":    now,
			"result.success": false,
			"result.error":   StaleFailureMessage,
		},
	}
}

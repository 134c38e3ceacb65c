// Package worker runs the background processing loop: claim a job, stream
// the file out of the object store, parse it line by line, and write parsed
// records in batches. Any number of workers can run against the same queue.
package worker

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/jobqueue"
	"github.com/fileflux/fileflux/pkg/metrics"
	"github.com/fileflux/fileflux/pkg/records"
	"github.com/fileflux/fileflux/pkg/store/object"
)

// jobQueue is the slice of the queue the worker drives.
type jobQueue interface {
	Claim(ctx context.Context, workerID string) (*jobqueue.Job, error)
	UpdateProgress(ctx context.Context, jobID primitive.ObjectID, p jobqueue.Progress) error
	AppendError(ctx context.Context, jobID primitive.ObjectID, message string) error
	Complete(ctx context.Context, jobID primitive.ObjectID, result jobqueue.Result) error
	Fail(ctx context.Context, jobID primitive.ObjectID, result jobqueue.Result, failure, stack string) error
	RecoverStale(ctx context.Context) (requeued, failed int64, err error)
}

// fileCatalog is the slice of the catalog the worker reads and advances.
type fileCatalog interface {
	Get(ctx context.Context, id primitive.ObjectID) (*catalog.File, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status catalog.Status) error
}

// recordSink receives parsed record batches.
type recordSink interface {
	InsertBatch(ctx context.Context, batch []records.Record) (int64, error)
}

// Config holds worker tuning parameters.
type Config struct {
	// WorkerID identifies this worker in job claims and logs.
	WorkerID string

	// PollInterval is the idle sleep between empty claim attempts. Claim
	// errors back off at twice this interval.
	PollInterval time.Duration

	// BatchSize is the number of parsed records buffered before a flush.
	BatchSize int

	// WritePause is an optional sleep after each flush to smooth write
	// load on the metadata store. Zero disables it.
	WritePause time.Duration

	// MaxLineBytes caps a single input line. Longer lines fail that line,
	// not the job.
	MaxLineBytes int

	// StaleSweep is the interval between stale-job sweeps run from the
	// claim loop. Expired leases are reclaimable directly, so the sweep
	// only has to fail jobs that ran out of attempts.
	StaleSweep time.Duration
}

// DefaultConfig returns the standard worker parameters.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		BatchSize:    1000,
		WritePause:   50 * time.Millisecond,
		MaxLineBytes: 1 << 20,
		StaleSweep:   time.Minute,
	}
}

// Worker claims and processes jobs until its context is cancelled.
type Worker struct {
	queue   jobQueue
	files   fileCatalog
	objects object.Store
	sink    recordSink
	cfg     Config
}

// New creates a worker.
func New(queue jobQueue, files fileCatalog, objects object.Store, sink recordSink, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}
	if cfg.StaleSweep <= 0 {
		cfg.StaleSweep = def.StaleSweep
	}
	return &Worker{queue: queue, files: files, objects: objects, sink: sink, cfg: cfg}
}

// Run is the claim loop. It exits only when ctx is cancelled; a job in
// flight finishes its current batch, records its progress, and leaves the
// rest to the stale sweep.
func (w *Worker) Run(ctx context.Context) {
	logger.Info("worker started",
		logger.KeyWorkerID, w.cfg.WorkerID,
		"poll_interval", w.cfg.PollInterval.String(),
		"batch_size", w.cfg.BatchSize)

	nextSweep := time.Now().Add(w.cfg.StaleSweep)
	for {
		if ctx.Err() != nil {
			logger.Info("worker stopped", logger.KeyWorkerID, w.cfg.WorkerID)
			return
		}

		if time.Now().After(nextSweep) {
			w.sweepStale(ctx)
			nextSweep = time.Now().Add(w.cfg.StaleSweep)
		}

		job, err := w.queue.Claim(ctx, w.cfg.WorkerID)
		switch {
		case err == nil:
			metrics.ObserveJobClaimed()
			w.process(ctx, job)
		case isNoJob(err):
			sleep(ctx, w.cfg.PollInterval)
		default:
			if ctx.Err() == nil {
				logger.Error("job claim failed", logger.KeyError, err)
			}
			sleep(ctx, 2*w.cfg.PollInterval)
		}
	}
}

// sweepStale fails in_progress jobs that are out of attempts and whose
// worker went silent. Jobs with attempts left come back through Claim's
// expired-lease branch, so the sweep exists for the terminal case.
func (w *Worker) sweepStale(ctx context.Context) {
	requeued, failed, err := w.queue.RecoverStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("stale job sweep failed", logger.KeyError, err)
		}
		return
	}
	metrics.ObserveJobsRequeued(requeued)
	if requeued > 0 || failed > 0 {
		logger.Info("stale job sweep finished", "requeued", requeued, "failed", failed)
	}
}

func isNoJob(err error) bool {
	return errors.Is(err, jobqueue.ErrNoJob)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

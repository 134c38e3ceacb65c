package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/bufpool"
	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/jobqueue"
	"github.com/fileflux/fileflux/pkg/lineparse"
	"github.com/fileflux/fileflux/pkg/metrics"
	"github.com/fileflux/fileflux/pkg/records"
)

// process runs one claimed job to a terminal state. A panic escaping the
// pipeline fails the job with a stack snapshot instead of taking down the
// worker.
func (w *Worker) process(ctx context.Context, job *jobqueue.Job) {
	start := time.Now()
	logger.Info("processing job",
		logger.KeyJobID, job.ID.Hex(),
		logger.KeyFileID, job.FileID.Hex(),
		logger.KeyWorkerID, w.cfg.WorkerID,
		logger.KeyAttempts, job.Attempts)

	var counters jobqueue.Progress
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			logger.Error("job panicked", logger.KeyJobID, job.ID.Hex(), logger.KeyError, msg)
			w.fail(ctx, job, counters, msg, string(debug.Stack()))
		}
	}()

	file, err := w.files.Get(ctx, job.FileID)
	if err != nil {
		w.fail(ctx, job, counters, fmt.Sprintf("file not found: %s", job.FileID.Hex()), "")
		return
	}

	stream, err := w.objects.GetStream(ctx, file.Key)
	if err != nil {
		w.fail(ctx, job, counters, fmt.Sprintf("failed to open file stream: %v", err), "")
		return
	}
	defer stream.Close()

	counters, err = w.consume(ctx, job, file, stream)
	if err != nil {
		w.fail(ctx, job, counters, err.Error(), "")
		return
	}

	if err := w.files.SetStatus(ctx, file.ID, catalog.StatusProcessed); err != nil {
		w.fail(ctx, job, counters, fmt.Sprintf("failed to mark file processed: %v", err), "")
		return
	}

	result := jobqueue.Result{
		LinesProcessed:  counters.LinesProcessed,
		RecordsInserted: counters.RecordsInserted,
		ErrorCount:      counters.ErrorCount,
	}
	if err := w.queue.Complete(ctx, job.ID, result); err != nil {
		logger.Error("failed to complete job", logger.KeyJobID, job.ID.Hex(), logger.KeyError, err)
		return
	}
	metrics.ObserveJobFinished(true, counters.LinesProcessed, counters.RecordsInserted, counters.ErrorCount, time.Since(start))

	logger.Info("job completed",
		logger.KeyJobID, job.ID.Hex(),
		logger.KeyFileID, file.ID.Hex(),
		"lines_processed", counters.LinesProcessed,
		"records_inserted", counters.RecordsInserted,
		"error_count", counters.ErrorCount,
		logger.KeyDurationMS, time.Since(start).Milliseconds())
}

// consume drives the line pipeline: scan, parse, validate, batch, flush.
// The scanner pulls from the object stream only between flushes, so sink
// back-pressure propagates upstream for free.
func (w *Worker) consume(ctx context.Context, job *jobqueue.Job, file *catalog.File, stream io.Reader) (jobqueue.Progress, error) {
	var counters jobqueue.Progress

	parse := lineparse.SelectParser(file.ContentType)
	batch := make([]records.Record, 0, w.cfg.BatchSize)

	buf := bufpool.Get(bufpool.DefaultSmallSize)
	defer bufpool.Put(buf)

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(buf, w.cfg.MaxLineBytes)

	lineNumber := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return counters, fmt.Errorf("processing interrupted: %w", err)
		}

		lineNumber++
		counters.LinesProcessed++

		res := parse(scanner.Text(), lineNumber)
		switch {
		case res.Skipped:
			continue
		case !res.OK:
			w.lineError(ctx, job, &counters, fmt.Sprintf("Line %d: %s", lineNumber, res.Err))
			continue
		case !lineparse.Validate(res.Data):
			w.lineError(ctx, job, &counters, fmt.Sprintf("Line %d: Invalid data format", lineNumber))
			continue
		}

		batch = append(batch, records.Record{
			FileID:     file.ID,
			JobID:      job.ID,
			LineNumber: lineNumber,
			Data:       res.Data,
		})
		if len(batch) >= w.cfg.BatchSize {
			w.flush(ctx, job, batch, &counters)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		// The partial batch is flushed so re-runs resume with less work;
		// the job itself is failed by the caller.
		w.flush(ctx, job, batch, &counters)
		return counters, fmt.Errorf("failed reading file stream: %w", err)
	}

	w.flush(ctx, job, batch, &counters)
	return counters, nil
}

// flush writes one batch and records progress. A failed flush degrades the
// job (the whole batch lands in error_count) rather than aborting it.
func (w *Worker) flush(ctx context.Context, job *jobqueue.Job, batch []records.Record, counters *jobqueue.Progress) {
	if len(batch) > 0 {
		inserted, err := w.sink.InsertBatch(ctx, batch)
		counters.RecordsInserted += inserted
		if err != nil {
			failedRows := int64(len(batch)) - inserted
			counters.ErrorCount += failedRows
			logger.Error("batch insert failed",
				logger.KeyJobID, job.ID.Hex(),
				"batch_size", len(batch),
				"failed_rows", failedRows,
				logger.KeyError, err)
			w.appendError(ctx, job, fmt.Sprintf("Batch insert failed (%d rows): %v", failedRows, err))
		}

		if w.cfg.WritePause > 0 {
			sleep(ctx, w.cfg.WritePause)
		}
	}

	// Progress doubles as the lease renewal, so it is reported even for
	// an empty final batch.
	if err := w.queue.UpdateProgress(ctx, job.ID, *counters); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to update job progress", logger.KeyJobID, job.ID.Hex(), logger.KeyError, err)
	}
}

// lineError records one malformed line without interrupting the pipeline.
func (w *Worker) lineError(ctx context.Context, job *jobqueue.Job, counters *jobqueue.Progress, message string) {
	counters.ErrorCount++
	w.appendError(ctx, job, message)
}

func (w *Worker) appendError(ctx context.Context, job *jobqueue.Job, message string) {
	if err := w.queue.AppendError(ctx, job.ID, message); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to append job error", logger.KeyJobID, job.ID.Hex(), logger.KeyError, err)
	}
}

func (w *Worker) fail(ctx context.Context, job *jobqueue.Job, counters jobqueue.Progress, failure, stack string) {
	result := jobqueue.Result{
		LinesProcessed:  counters.LinesProcessed,
		RecordsInserted: counters.RecordsInserted,
		ErrorCount:      counters.ErrorCount,
	}
	if err := w.queue.Fail(ctx, job.ID, result, failure, stack); err != nil {
		logger.Error("failed to mark job failed", logger.KeyJobID, job.ID.Hex(), logger.KeyError, err)
	}
	metrics.ObserveJobFinished(false, counters.LinesProcessed, counters.RecordsInserted, counters.ErrorCount, 0)
	logger.Warn("job failed",
		logger.KeyJobID, job.ID.Hex(),
		logger.KeyFileID, job.FileID.Hex(),
		logger.KeyError, failure)
}

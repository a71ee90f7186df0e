// Package worker runs background jobs stored in the jobs table.
//
// Jobs are dequeued with FOR UPDATE SKIP LOCKED, so any number of server
// processes can share one queue.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/packs/internal/metrics"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/google/uuid"
)

// Worker polls the jobs table and dispatches jobs to registered handlers.
type Worker struct {
	db       *sql.DB
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
	wakeCh chan struct{}
}

// New creates a Worker. Call Register for each job type, then Start.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		db:       db,
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
		stopCh:   make(chan struct{}),
		wakeCh:   make(chan struct{}, 1),
	}, nil
}

// Register adds a job handler. Registering a type twice replaces the
// earlier handler.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("overwriting job handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
}

// Start recovers stale jobs and launches the worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("failed to recover stale jobs", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}

	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
	)
}

// Wake asks an idle goroutine to poll now instead of waiting for the next
// tick. It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Stop signals the goroutines to exit and waits up to ShutdownTimeout for
// running jobs to finish.
func (w *Worker) Stop() {
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timed out, jobs may still be running")
	}
}

func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.queries.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}
	return nil
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", id)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wakeCh:
		}

		// Drain the queue before going back to sleep.
		for {
			err := w.processNext(ctx, logger)
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			if err != nil {
				logger.Error("failed to process job", "error", err)
				break
			}
			select {
			case <-w.stopCh:
				return
			default:
			}
		}
	}
}

// processNext dequeues and runs one job. It returns sql.ErrNoRows when the
// queue is empty.
func (w *Worker) processNext(ctx context.Context, logger *slog.Logger) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := w.queries.WithTx(tx)

	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return err
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dequeue: %w", err)
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Debug("processing job")

	start := time.Now()
	if err := w.execute(ctx, job); err != nil {
		metrics.JobFailed(job.JobType)
		logger.Error("job failed", "error", err, "permanent", IsPermanent(err))
		w.markFailed(ctx, job.ID, err)
		return nil
	}

	metrics.JobCompleted(job.JobType, time.Since(start))
	logger.Info("job completed", "duration", time.Since(start))
	if err := w.queries.UpdateJobCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type %q", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

// markFailed reschedules the job with backoff, or fails it for good when
// the error is permanent or attempts are used up.
func (w *Worker) markFailed(ctx context.Context, jobID uuid.UUID, jobErr error) {
	params := repository.UpdateJobFailedParams{
		ID:           jobID,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
		Permanent:    IsPermanent(jobErr),
	}
	if err := w.queries.UpdateJobFailed(ctx, params); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Notifier receives job lifecycle events, typically to fan them out to
// WebSocket clients.
type Notifier interface {
	JobProgress(jobID, stage string, progress int, message string)
	JobCompleted(jobID, inspectionID string)
	JobFailed(jobID string, err error)
}

// nopNotifier is used when no notifier is wired.
type nopNotifier struct{}

func (nopNotifier) JobProgress(string, string, int, string) {}
func (nopNotifier) JobCompleted(string, string)             {}
func (nopNotifier) JobFailed(string, error)                 {}

// Queue executes jobs on a fixed worker pool.
type Queue struct {
	jobs     chan *Job
	workers  int
	wg       sync.WaitGroup
	store    *memoryStore
	executor Executor
	notifier Notifier
	logger   *slog.Logger
	shutdown chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewQueue creates a queue backed by the given executor.
func NewQueue(workers int, executor Executor, notifier Notifier, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:     make(chan *Job, workers*2),
		workers:  workers,
		store:    newMemoryStore(),
		executor: executor,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop shuts the pool down, waiting up to timeout for in-flight jobs.
func (q *Queue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue accepts a pending job for execution.
func (q *Queue) Enqueue(job *Job) error {
	job.Status = StatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	q.store.put(job)

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("filename", job.Filename))
		return nil
	default:
		job.Status = StatusFailed
		job.Error = "job queue is full"
		q.store.put(job)
		return fmt.Errorf("job queue is full")
	}
}

// Get returns the current snapshot of a job.
func (q *Queue) Get(id string) (*Job, error) {
	return q.store.get(id)
}

// List returns jobs matching the filter, newest first.
func (q *Queue) List(filter Filter) []*Job {
	return q.store.list(filter)
}

// Cancel stops a pending or running job.
func (q *Queue) Cancel(id string) error {
	job, err := q.store.get(id)
	if err != nil {
		return err
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job %s cannot be cancelled in status %s", id, job.Status)
	}

	q.mu.Lock()
	cancel, running := q.cancels[id]
	q.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	job.Status = StatusCancelled
	now := time.Now().UTC()
	job.CompletedAt = &now
	q.store.put(job)
	return nil
}

// Prune removes terminal jobs older than the retention window and
// returns how many were dropped.
func (q *Queue) Prune(retention time.Duration) int {
	return q.store.prune(time.Now().UTC().Add(-retention))
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger := q.logger.With(slog.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case job := <-q.jobs:
			q.process(ctx, job, logger)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job, logger *slog.Logger) {
	// A cancelled job may still be sitting in the channel.
	if current, err := q.store.get(job.ID); err == nil && current.Status == StatusCancelled {
		return
	}

	logger = logger.With(slog.String("job_id", job.ID))
	logger.Info("job started", slog.String("filename", job.Filename))

	jobCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancels[job.ID] = cancel
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		delete(q.cancels, job.ID)
		q.mu.Unlock()

		if r := recover(); r != nil {
			logger.Error("job panicked", slog.Any("panic", r))
			q.fail(job, fmt.Errorf("internal error: %v", r))
		}
	}()

	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	job.Progress = 0
	q.store.put(job)

	progress := func(stage string, pct int, message string) {
		job.Stage = stage
		job.Progress = pct
		job.Message = message
		q.store.put(job)
		q.notifier.JobProgress(job.ID, stage, pct, message)
	}

	inspectionID, err := q.executor.Execute(jobCtx, job, progress)
	if err != nil {
		if jobCtx.Err() != nil {
			job.Status = StatusCancelled
			job.Error = jobCtx.Err().Error()
			completed := time.Now().UTC()
			job.CompletedAt = &completed
			q.store.put(job)
			logger.Info("job cancelled")
			return
		}
		q.fail(job, err)
		logger.Error("job failed", slog.String("error", err.Error()))
		return
	}

	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = "processing complete"
	job.InspectionID = inspectionID
	completed := time.Now().UTC()
	job.CompletedAt = &completed
	q.store.put(job)

	q.notifier.JobCompleted(job.ID, inspectionID)
	logger.Info("job completed", slog.String("inspection_id", inspectionID))
}

func (q *Queue) fail(job *Job, err error) {
	job.Status = StatusFailed
	job.Error = err.Error()
	completed := time.Now().UTC()
	job.CompletedAt = &completed
	q.store.put(job)
	q.notifier.JobFailed(job.ID, err)
}

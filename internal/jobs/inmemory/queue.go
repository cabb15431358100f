package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Queue. Zero values use defaults.
type Options struct {
	// BufferSize is how many jobs can wait before PublishAuditReceipt blocks.
	BufferSize int
	// Workers is the number of concurrent handlers.
	Workers int
	// MaxRetries applies to jobs that do not set their own.
	MaxRetries int
	// RetryBackoff is multiplied by the retry count before re-enqueueing.
	RetryBackoff time.Duration

	Logger zerolog.Logger
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// It suits single-instance deployments and tests.
type Queue struct {
	jobChan   chan *jobs.AuditReceiptJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers    int
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewQueue creates a new in-memory job queue with default worker settings.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return NewQueueWithOptions(store, Options{BufferSize: bufferSize, Logger: zerolog.Nop()})
}

// NewQueueWithOptions creates a new in-memory job queue.
func NewQueueWithOptions(store jobs.JobStore, opts Options) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = jobs.DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Queue{
		jobChan:    make(chan *jobs.AuditReceiptJob, opts.BufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		log:        opts.Logger,
	}
}

// PublishAuditReceipt implements the Publisher interface.
// It enqueues a receipt audit job for asynchronous processing. Defaults are
// filled in on job, and workers receive a copy, so the caller may keep
// reading job after the call returns.
func (q *Queue) PublishAuditReceipt(ctx context.Context, job *jobs.AuditReceiptJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	queued := *job

	// Sent without holding mu so Stop can close closeChan.
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, up to the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	q.log.Info().Int("workers", q.workers).Msg("Job queue started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.AuditReceiptJob, handler jobs.JobHandler) {
	log := q.log.With().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var retry *jobs.AuditReceiptJob
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Msg("Job completed")

	case !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		next := *job
		retry = &next

	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if retry != nil {
		// Linear backoff by retry count.
		backoff := time.Duration(retry.RetryCount) * q.backoff
		log.Warn().Err(err).Int("retry", retry.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")
		time.AfterFunc(backoff, func() {
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil
			if err := q.PublishAuditReceipt(ctx, retry); err != nil {
				log.Warn().Err(err).Msg("Failed to re-enqueue job")
			}
		})
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

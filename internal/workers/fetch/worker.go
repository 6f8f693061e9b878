package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/queue"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
)

// Options tunes worker retry and timing behavior.
type Options struct {
	PollTimeout  time.Duration // How long one dequeue blocks
	FetchTimeout time.Duration // Per-fetch context deadline
	MaxRetries   int           // Redeliveries before dead-lettering
	BackoffBase  time.Duration // Transient-failure backoff base, doubled per retry
}

// Worker drains the task queue: fetches article content, records outcomes in
// the article store and advances the owning job's ledger.
type Worker struct {
	id       string
	queue    interfaces.TaskQueue
	articles interfaces.ArticleStorage
	jobs     interfaces.JobStorage
	fetcher  interfaces.Fetcher
	opts     Options
	logger   arbor.ILogger
}

// NewWorker creates a new fetch worker
func NewWorker(id string, taskQueue interfaces.TaskQueue, articles interfaces.ArticleStorage, jobs interfaces.JobStorage, fetcher interfaces.Fetcher, opts Options, logger arbor.ILogger) *Worker {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}

	return &Worker{
		id:       id,
		queue:    taskQueue,
		articles: articles,
		jobs:     jobs,
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger,
	}
}

// Run loops until the context is cancelled or the queue stops.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Str("worker_id", w.id).Msg("Fetch worker started")

	for {
		task, err := w.queue.DequeueBlocking(ctx, w.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrNoTask) {
				select {
				case <-ctx.Done():
					w.logger.Info().Str("worker_id", w.id).Msg("Fetch worker stopping")
					return
				default:
					continue
				}
			}
			if errors.Is(err, queue.ErrQueueStopped) || errors.Is(err, context.Canceled) {
				w.logger.Info().Str("worker_id", w.id).Msg("Fetch worker stopping")
				return
			}
			w.logger.Error().Err(err).Str("worker_id", w.id).Msg("Dequeue failed")
			continue
		}

		w.process(ctx, task)
	}
}

// process runs one task through the fetch state machine.
func (w *Worker) process(ctx context.Context, task *models.TaskMessage) {
	start := time.Now()

	if err := w.articles.MarkFetching(ctx, task.ArticleID); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			// A duplicate delivery found the article already resolved.
			// Settle the ledger so the job can still complete.
			w.settleDuplicate(ctx, task)
			return
		}
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Msg("Failed to mark article fetching, abandoning attempt")
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.opts.FetchTimeout)
	result, err := w.fetcher.Fetch(fetchCtx, task.URL)
	cancel()

	if err == nil {
		w.succeed(ctx, task, result, time.Since(start))
		return
	}

	var ferr *models.FetchError
	if !errors.As(err, &ferr) {
		ferr = &models.FetchError{Kind: models.KindUnreachable, Detail: err.Error()}
	}

	if ferr.Permanent() {
		// Retrying cannot help; skip the budget and dead-letter now.
		w.logger.Warn().
			Str("worker_id", w.id).
			Str("url", task.URL).
			Str("kind", string(ferr.Kind)).
			Str("error", ferr.Error()).
			Msg("Permanent fetch failure")
		w.fail(ctx, task, ferr)
		return
	}

	// The retry count advances on every failed attempt, so a task is fetched
	// exactly MaxRetries times before dead-lettering.
	task.RetryCount++
	if task.RetryCount < w.opts.MaxRetries {
		w.retry(ctx, task, ferr)
		return
	}

	w.logger.Warn().
		Str("worker_id", w.id).
		Str("url", task.URL).
		Int("retry_count", task.RetryCount).
		Str("error", ferr.Error()).
		Msg("Retries exhausted")
	w.fail(ctx, task, ferr)
}

func (w *Worker) succeed(ctx context.Context, task *models.TaskMessage, result *models.FetchResult, took time.Duration) {
	if err := w.articles.MarkFetched(ctx, task.ArticleID, result.Title, result.ContentMarkdown); err != nil {
		// Content was fetched but the store write failed. The attempt is
		// abandoned; the stale reaper will return the article to PENDING.
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Msg("Failed to persist fetched article, abandoning attempt")
		return
	}
	// Reaper-requeued tasks have no owning job to account against.
	if task.JobID != "" {
		if err := w.jobs.IncrementCompleted(ctx, task.JobID); err != nil {
			w.logger.Error().Err(err).
				Str("worker_id", w.id).
				Str("job_id", task.JobID).
				Msg("Failed to increment completed count")
			return
		}
		w.tryComplete(ctx, task.JobID)
	}

	w.logger.Info().
		Str("worker_id", w.id).
		Str("job_id", task.JobID).
		Str("url", task.URL).
		Str("title", result.Title).
		Int64("duration_ms", took.Milliseconds()).
		Msg("Article fetched")
}

// retry sleeps the exponential backoff on this worker, then re-enqueues the
// task at its original priority. The caller already advanced the retry count.
func (w *Worker) retry(ctx context.Context, task *models.TaskMessage, ferr *models.FetchError) {
	if err := w.articles.ResetToPending(ctx, task.ArticleID); err != nil {
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Msg("Failed to reset article for retry, abandoning attempt")
		return
	}

	backoff := w.opts.BackoffBase << (task.RetryCount - 1)
	w.logger.Warn().
		Str("worker_id", w.id).
		Str("url", task.URL).
		Int("retry_count", task.RetryCount).
		Str("error", ferr.Error()).
		Int64("backoff_ms", backoff.Milliseconds()).
		Msg("Transient fetch failure, will retry")

	select {
	case <-ctx.Done():
		// Shutdown during backoff: the article is already back in PENDING,
		// re-enqueue without waiting so the task survives the restart.
	case <-time.After(backoff):
	}

	next := *task
	if err := w.queue.Enqueue(context.WithoutCancel(ctx), &next); err != nil {
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("url", task.URL).
			Msg("Failed to re-enqueue task")
	}
}

// fail records a terminal failure: article FAILED, ledger bumped, task
// dead-lettered exactly once.
func (w *Worker) fail(ctx context.Context, task *models.TaskMessage, ferr *models.FetchError) {
	if err := w.articles.MarkFailed(ctx, task.ArticleID, ferr.Error()); err != nil {
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Msg("Failed to mark article failed, abandoning attempt")
		return
	}
	if task.JobID != "" {
		if err := w.jobs.IncrementFailed(ctx, task.JobID); err != nil {
			w.logger.Error().Err(err).
				Str("worker_id", w.id).
				Str("job_id", task.JobID).
				Msg("Failed to increment failed count")
			return
		}
	}
	if err := w.queue.DeadLetter(ctx, &models.DeadLetterRecord{
		Task:       *task,
		FinalError: ferr.Error(),
		FailedAt:   time.Now(),
		WorkerID:   w.id,
	}); err != nil {
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("url", task.URL).
			Msg("Failed to dead letter task")
	}
	if task.JobID != "" {
		w.tryComplete(ctx, task.JobID)
	}
}

// settleDuplicate counts a redelivered task whose article already reached a
// terminal state.
func (w *Worker) settleDuplicate(ctx context.Context, task *models.TaskMessage) {
	if task.JobID == "" {
		return
	}
	article, err := w.articles.GetByID(ctx, task.ArticleID)
	if err != nil {
		w.logger.Error().Err(err).
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Msg("Failed to resolve duplicate task")
		return
	}

	switch article.Status {
	case models.ArticleStatusFetched:
		if err := w.jobs.IncrementCompleted(ctx, task.JobID); err != nil {
			w.logger.Error().Err(err).Str("job_id", task.JobID).Msg("Failed to settle duplicate as completed")
			return
		}
	case models.ArticleStatusFailed:
		if err := w.jobs.IncrementFailed(ctx, task.JobID); err != nil {
			w.logger.Error().Err(err).Str("job_id", task.JobID).Msg("Failed to settle duplicate as failed")
			return
		}
	default:
		// Another worker is mid-fetch for a different job. Its terminal write
		// settles that job's ledger, not this one's, so the task goes back on
		// the queue after a short delay to pick up the outcome.
		w.logger.Debug().
			Str("worker_id", w.id).
			Str("article_id", task.ArticleID).
			Str("status", string(article.Status)).
			Msg("Duplicate task for in-flight article, requeueing")
		select {
		case <-ctx.Done():
		case <-time.After(w.opts.BackoffBase):
		}
		next := *task
		if err := w.queue.Enqueue(context.WithoutCancel(ctx), &next); err != nil {
			w.logger.Error().Err(err).
				Str("worker_id", w.id).
				Str("url", task.URL).
				Msg("Failed to requeue task for in-flight article")
		}
		return
	}

	w.tryComplete(ctx, task.JobID)
}

func (w *Worker) tryComplete(ctx context.Context, jobID string) {
	done, err := w.jobs.TryComplete(ctx, jobID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			w.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to check job completion")
		}
		return
	}
	if done {
		w.logger.Info().Str("job_id", jobID).Msg("Job completed")
	}
}

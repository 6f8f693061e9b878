package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
)

// ErrJobNotFound is returned for status/results lookups on unknown jobs.
var ErrJobNotFound = errors.New("job not found")

// ErrEmptyBatch is returned when a submission carries no articles.
var ErrEmptyBatch = errors.New("batch must contain at least one article")

// Coordinator owns batch submission: deduplication against fetched content,
// job ledger creation and task dispatch onto the queue.
type Coordinator struct {
	articles interfaces.ArticleStorage
	jobs     interfaces.JobStorage
	queue    interfaces.TaskQueue
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCoordinator creates a new submission coordinator
func NewCoordinator(articles interfaces.ArticleStorage, jobs interfaces.JobStorage, queue interfaces.TaskQueue, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		articles: articles,
		jobs:     jobs,
		queue:    queue,
		validate: validator.New(),
		logger:   logger,
	}
}

// Submit classifies each submitted URL against the article store, creates the
// job ledger record, then enqueues one task per non-cached article. The job
// exists before the first enqueue, so workers can always resolve it.
func (c *Coordinator) Submit(ctx context.Context, submissions []models.ArticleSubmission) (*models.JobSubmitResponse, error) {
	if len(submissions) == 0 {
		return nil, ErrEmptyBatch
	}
	for i := range submissions {
		if err := c.validate.Struct(&submissions[i]); err != nil {
			return nil, fmt.Errorf("invalid submission %q: %w", submissions[i].URL, err)
		}
	}

	cachedCount := 0
	newCount := 0
	articleIDs := make([]string, 0, len(submissions))
	toEnqueue := make([]*models.TaskMessage, 0, len(submissions))

	for i := range submissions {
		sub := &submissions[i]

		articleID, cached, err := c.classify(ctx, sub)
		if err != nil {
			return nil, err
		}

		articleIDs = append(articleIDs, articleID)
		if cached {
			cachedCount++
			c.logger.Debug().Str("url", sub.URL).Msg("Submission cached")
			continue
		}

		newCount++
		toEnqueue = append(toEnqueue, &models.TaskMessage{
			ArticleID:  articleID,
			URL:        sub.URL,
			Source:     sub.Source,
			Category:   sub.Category,
			Priority:   sub.Priority,
			RetryCount: 0,
		})
	}

	job := &models.Job{
		ID:             common.NewJobID(),
		Status:         models.JobStatusPending,
		TotalArticles:  len(submissions),
		NewArticles:    newCount,
		CachedArticles: cachedCount,
		ArticleIDs:     articleIDs,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	for _, task := range toEnqueue {
		task.JobID = job.ID
		if err := c.queue.Enqueue(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to enqueue task for %s: %w", task.URL, err)
		}
	}

	// A batch resolved entirely from cache has no outstanding work.
	status := models.JobStatusInProgress
	if newCount == 0 {
		status = models.JobStatusCompleted
	}
	if err := c.jobs.SetStatus(ctx, job.ID, status); err != nil {
		return nil, fmt.Errorf("failed to set job status: %w", err)
	}

	// Workers may have settled every task already, in which case the status
	// write above was a no-op; report what the ledger actually says.
	if current, err := c.jobs.GetByID(ctx, job.ID); err == nil {
		status = current.Status
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("total", len(submissions)).
		Int("new", newCount).
		Int("cached", cachedCount).
		Msg("Job submitted")

	return &models.JobSubmitResponse{
		JobID:          job.ID,
		Status:         status,
		TotalArticles:  len(submissions),
		NewArticles:    newCount,
		CachedArticles: cachedCount,
		Message:        "Job submitted successfully",
	}, nil
}

// classify resolves one submission to an article id and reports whether the
// content was already fetched. New URLs are inserted; a lost create race is
// recovered by re-reading the winner's record.
func (c *Coordinator) classify(ctx context.Context, sub *models.ArticleSubmission) (string, bool, error) {
	existing, err := c.articles.GetByURL(ctx, sub.URL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", false, fmt.Errorf("failed to look up %s: %w", sub.URL, err)
	}

	if existing == nil {
		article := &models.Article{
			ID:       common.NewArticleID(),
			URL:      sub.URL,
			Source:   sub.Source,
			Category: sub.Category,
			Priority: sub.Priority,
			Status:   models.ArticleStatusPending,
		}
		err := c.articles.Create(ctx, article)
		if err == nil {
			return article.ID, false, nil
		}
		if !errors.Is(err, storage.ErrURLExists) {
			return "", false, fmt.Errorf("failed to create article for %s: %w", sub.URL, err)
		}
		// Lost the race; the winner's record is authoritative.
		existing, err = c.articles.GetByURL(ctx, sub.URL)
		if err != nil {
			return "", false, fmt.Errorf("failed to re-read %s after create race: %w", sub.URL, err)
		}
	}

	if existing.Status == models.ArticleStatusFetched {
		if err := c.articles.IncrementReferenceCount(ctx, existing.ID); err != nil {
			return "", false, fmt.Errorf("failed to bump reference count for %s: %w", existing.ID, err)
		}
		return existing.ID, true, nil
	}

	// A prior attempt failed: reset so the worker can claim it again.
	// PENDING and FETCHING records stay put; the new task will find them.
	if existing.Status == models.ArticleStatusFailed {
		if err := c.articles.ResetToPending(ctx, existing.ID); err != nil {
			return "", false, fmt.Errorf("failed to reset %s: %w", existing.ID, err)
		}
	}

	return existing.ID, false, nil
}

// Status reports the ledger view of a job.
func (c *Coordinator) Status(ctx context.Context, jobID string) (*models.JobStatusResponse, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return &models.JobStatusResponse{
		JobID:          job.ID,
		Status:         job.Status,
		TotalArticles:  job.TotalArticles,
		NewArticles:    job.NewArticles,
		CachedArticles: job.CachedArticles,
		CompletedCount: job.CompletedCount,
		FailedCount:    job.FailedCount,
		PendingCount:   job.PendingCount(),
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}, nil
}

// Results assembles the fetched and failed members of a job.
func (c *Coordinator) Results(ctx context.Context, jobID string) (*models.JobResultsResponse, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	articles, err := c.articles.GetByIDs(ctx, job.ArticleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load job articles: %w", err)
	}

	resp := &models.JobResultsResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Articles: make([]models.ArticleResult, 0, len(articles)),
		Failed:   make([]models.FailedArticle, 0),
	}

	for _, a := range articles {
		switch a.Status {
		case models.ArticleStatusFetched:
			resp.Articles = append(resp.Articles, models.ArticleResult{
				ID:              a.ID,
				URL:             a.URL,
				Source:          a.Source,
				Category:        a.Category,
				Title:           a.Title,
				ContentMarkdown: a.ContentMarkdown,
				Cached:          a.ReferenceCount > 1,
				FetchedAt:       a.FetchedAt,
			})
		case models.ArticleStatusFailed:
			resp.Failed = append(resp.Failed, models.FailedArticle{
				ID:          a.ID,
				URL:         a.URL,
				Error:       a.LastError,
				AttemptedAt: a.UpdatedAt,
			})
		}
	}

	return resp, nil
}

// ListJobs returns recent jobs for the ops surface.
func (c *Coordinator) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return c.jobs.List(ctx, limit)
}

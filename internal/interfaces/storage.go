package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ArticleStorage persists article records keyed by ID with URL uniqueness.
type ArticleStorage interface {
	// Create stores a new article. Returns ErrURLExists from the
	// implementation when the URL is already claimed; callers treat the
	// race as "someone else created it" and re-read.
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	GetByURL(ctx context.Context, url string) (*models.Article, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Article, error)

	// Lifecycle writes. Each validates the transition table before
	// persisting and returns ErrInvalidTransition on an illegal move.
	MarkFetching(ctx context.Context, id string) error
	MarkFetched(ctx context.Context, id, title, contentMarkdown string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	ResetToPending(ctx context.Context, id string) error

	// IncrementReferenceCount bumps the cache-hit counter, serialized
	// store-side.
	IncrementReferenceCount(ctx context.Context, id string) error

	// ListStale returns FETCHING articles untouched for longer than
	// threshold, for the maintenance reaper.
	ListStale(ctx context.Context, threshold time.Duration) ([]*models.Article, error)

	CountByStatus(ctx context.Context, status models.ArticleStatus) (int, error)
	Count(ctx context.Context) (int, error)
}

// JobStorage persists job ledger records with serialized counter updates.
type JobStorage interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, limit int) ([]*models.Job, error)

	// SetStatus updates the job status, stamping CompletedAt on COMPLETED.
	SetStatus(ctx context.Context, id string, status models.JobStatus) error

	// IncrementCompleted and IncrementFailed bump the respective counter
	// by one. The read-modify-write is serialized inside the store.
	IncrementCompleted(ctx context.Context, id string) error
	IncrementFailed(ctx context.Context, id string) error

	// TryComplete marks the job COMPLETED iff all work has settled and the
	// job is not already completed. Returns true only for the single
	// caller that performed the transition.
	TryComplete(ctx context.Context, id string) (bool, error)
}

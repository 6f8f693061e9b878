package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// JobStorage implements the JobStorage interface for Badger.
// Counter bumps and the completion check-and-set are serialized by a store
// mutex so concurrent workers never lose increments.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) List(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("ID").Ne("")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) SetStatus(ctx context.Context, id string, status models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	// COMPLETED is terminal. A worker can settle the whole batch between the
	// submitter's enqueues and its final status write; that write must not
	// demote the job or it stays open forever.
	if job.Status == models.JobStatusCompleted && status != models.JobStatusCompleted {
		return nil
	}

	now := time.Now()
	job.Status = status
	job.UpdatedAt = now
	if status == models.JobStatusCompleted && job.CompletedAt == nil {
		job.CompletedAt = &now
	}

	if err := s.db.Store().Update(id, &job); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

func (s *JobStorage) IncrementCompleted(ctx context.Context, id string) error {
	return s.increment(id, func(job *models.Job) {
		job.CompletedCount++
	})
}

func (s *JobStorage) IncrementFailed(ctx context.Context, id string) error {
	return s.increment(id, func(job *models.Job) {
		job.FailedCount++
	})
}

func (s *JobStorage) increment(id string, bump func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	bump(&job)
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &job); err != nil {
		return fmt.Errorf("failed to update job counters: %w", err)
	}
	return nil
}

// TryComplete marks the job COMPLETED iff every enqueued task has settled.
// The read and write happen under the same lock that guards the counter
// bumps, so exactly one caller observes the final transition.
func (s *JobStorage) TryComplete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to get job: %w", err)
	}

	if job.Status == models.JobStatusCompleted {
		return false, nil
	}
	if !job.Settled() {
		return false, nil
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := s.db.Store().Update(id, &job); err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}
	return true, nil
}

package models

import "time"

// JobStatus is the lifecycle state of a submission batch.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

// Job is the ledger record for one submitted batch. Counters are bumped as
// workers finish tasks; the job completes when every non-cached article has
// terminally resolved.
type Job struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status" badgerhold:"index"`
	TotalArticles  int        `json:"total_articles"`
	NewArticles    int        `json:"new_articles"`
	CachedArticles int        `json:"cached_articles"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	ArticleIDs     []string   `json:"article_ids"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// PendingCount is the number of tasks still outstanding for the job.
func (j *Job) PendingCount() int {
	return j.NewArticles - j.CompletedCount - j.FailedCount
}

// Settled reports whether all enqueued work for the job has resolved.
func (j *Job) Settled() bool {
	return j.CompletedCount+j.FailedCount >= j.NewArticles
}

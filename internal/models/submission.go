package models

import "time"

// ArticleSubmission is one URL in a batch submission.
type ArticleSubmission struct {
	URL      string `json:"url" yaml:"url" validate:"required,url"`
	Source   string `json:"source" yaml:"source" validate:"required"`
	Category string `json:"category" yaml:"category"`
	Priority int    `json:"priority" yaml:"priority" validate:"gte=0"`
}

// JobSubmitRequest is the body of POST /api/jobs/submit.
type JobSubmitRequest struct {
	Articles []ArticleSubmission `json:"articles" yaml:"articles" validate:"required,min=1,dive"`
}

// JobSubmitResponse reports how a batch was classified at submit time.
type JobSubmitResponse struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	TotalArticles  int       `json:"total_articles"`
	NewArticles    int       `json:"new_articles"`
	CachedArticles int       `json:"cached_articles"`
	Message        string    `json:"message"`
}

// JobStatusResponse is the body of GET /api/jobs/{id}/status.
type JobStatusResponse struct {
	JobID          string     `json:"job_id"`
	Status         JobStatus  `json:"status"`
	TotalArticles  int        `json:"total_articles"`
	NewArticles    int        `json:"new_articles"`
	CachedArticles int        `json:"cached_articles"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	PendingCount   int        `json:"pending_count"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ArticleResult is one fetched article in a job results payload.
type ArticleResult struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Source          string     `json:"source"`
	Category        string     `json:"category"`
	Title           string     `json:"title"`
	ContentMarkdown string     `json:"content_markdown"`
	Cached          bool       `json:"cached"`
	FetchedAt       *time.Time `json:"fetched_at,omitempty"`
}

// FailedArticle is one terminally failed article in a job results payload.
type FailedArticle struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Error       string    `json:"error"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// JobResultsResponse is the body of GET /api/jobs/{id}/results.
type JobResultsResponse struct {
	JobID    string          `json:"job_id"`
	Status   JobStatus       `json:"status"`
	Articles []ArticleResult `json:"articles"`
	Failed   []FailedArticle `json:"failed"`
}

// QueueStatsResponse is the body of GET /api/queue/stats.
type QueueStatsResponse struct {
	Queued      int `json:"queued"`
	DeadLetters int `json:"dead_letters"`
}

// ArticleStatsResponse is the body of GET /api/articles/stats.
type ArticleStatsResponse struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Fetching int `json:"fetching"`
	Fetched  int `json:"fetched"`
	Failed   int `json:"failed"`
}

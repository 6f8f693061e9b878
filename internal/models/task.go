package models

import "time"

// TaskMessage is the unit of work placed on the fetch queue. It carries
// everything a worker needs so the hot path never re-reads the job record.
type TaskMessage struct {
	JobID      string `json:"job_id"`
	ArticleID  string `json:"article_id"`
	URL        string `json:"url"`
	Source     string `json:"source"`
	Category   string `json:"category"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retry_count"`
}

// DeadLetterRecord preserves a task that exhausted its retries, with enough
// context to diagnose or replay it later.
type DeadLetterRecord struct {
	Task       TaskMessage `json:"task"`
	FinalError string      `json:"final_error"`
	FailedAt   time.Time   `json:"failed_at"`
	WorkerID   string      `json:"worker_id"`
}

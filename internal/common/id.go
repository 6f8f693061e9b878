package common

import (
	"github.com/google/uuid"
)

// NewArticleID generates a unique article ID with the "art_" prefix
// Format: art_<uuid>
func NewArticleID() string {
	return "art_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewWorkerID generates a unique worker ID with the "wrk_" prefix
// Format: wrk_<uuid>
func NewWorkerID() string {
	return "wrk_" + uuid.New().String()
}

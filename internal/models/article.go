package models

import (
	"errors"
	"time"
)

// ArticleStatus is the fetch lifecycle state of an article record.
type ArticleStatus string

const (
	ArticleStatusPending  ArticleStatus = "PENDING"
	ArticleStatusFetching ArticleStatus = "FETCHING"
	ArticleStatusFetched  ArticleStatus = "FETCHED"
	ArticleStatusFailed   ArticleStatus = "FAILED"
)

// ErrInvalidTransition is returned when a status write is not in the transition table.
var ErrInvalidTransition = errors.New("invalid article status transition")

// articleTransitions is the closed set of legal status moves.
// FAILED→PENDING happens when a later batch retries the article;
// FETCHING→PENDING only via the stale reaper after a worker crash.
var articleTransitions = map[ArticleStatus][]ArticleStatus{
	ArticleStatusPending:  {ArticleStatusFetching},
	ArticleStatusFetching: {ArticleStatusFetched, ArticleStatusFailed, ArticleStatusPending},
	ArticleStatusFailed:   {ArticleStatusPending},
	ArticleStatusFetched:  {},
}

// CanTransition reports whether moving from one article status to another is legal.
func CanTransition(from, to ArticleStatus) bool {
	for _, next := range articleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Article represents one unique source URL and its fetch outcome.
// Content is reusable across jobs; ReferenceCount tracks how many submissions
// resolved against an already-fetched record.
type Article struct {
	ID              string        `json:"id"`
	URL             string        `json:"url" badgerhold:"index"`
	Source          string        `json:"source"`
	Category        string        `json:"category"`
	Priority        int           `json:"priority"`
	Status          ArticleStatus `json:"status" badgerhold:"index"`
	Title           string        `json:"title,omitempty"`
	ContentMarkdown string        `json:"content_markdown,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	FetchedAt       *time.Time    `json:"fetched_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ReferenceCount  int           `json:"reference_count"`
}

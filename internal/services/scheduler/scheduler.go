package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Scheduler runs periodic maintenance: articles stuck in FETCHING past the
// stale threshold were abandoned by a crashed worker and are returned to
// PENDING with a fresh task. This narrows the at-least-once delivery gap
// between a dequeue and its terminal write.
type Scheduler struct {
	articles   interfaces.ArticleStorage
	queue      interfaces.TaskQueue
	staleAfter time.Duration
	logger     arbor.ILogger
	cron       *cron.Cron
}

// NewScheduler creates a maintenance scheduler
func NewScheduler(articles interfaces.ArticleStorage, taskQueue interfaces.TaskQueue, staleAfter time.Duration, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		articles:   articles,
		queue:      taskQueue,
		staleAfter: staleAfter,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start registers the reaper on the given cron schedule and starts the timer
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.ReapStale(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Stale fetch reap failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the cron timer and waits for a running reap to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// ReapStale resets abandoned FETCHING articles and re-enqueues them at their
// original priority with a zero retry count. The requeued task carries no
// job id; the owning job's ledger was already advanced or will stay open,
// which is the documented at-least-once gap.
func (s *Scheduler) ReapStale(ctx context.Context) error {
	stale, err := s.articles.ListStale(ctx, s.staleAfter)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	reaped := 0
	for _, article := range stale {
		if err := s.articles.ResetToPending(ctx, article.ID); err != nil {
			s.logger.Warn().Err(err).Str("article_id", article.ID).Msg("Failed to reset stale article")
			continue
		}
		task := &models.TaskMessage{
			ArticleID:  article.ID,
			URL:        article.URL,
			Source:     article.Source,
			Category:   article.Category,
			Priority:   article.Priority,
			RetryCount: 0,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.logger.Warn().Err(err).Str("article_id", article.ID).Msg("Failed to re-enqueue stale article")
			continue
		}
		reaped++
	}

	s.logger.Info().
		Int("stale", len(stale)).
		Int("requeued", reaped).
		Msg("Stale fetches reaped")
	return nil
}

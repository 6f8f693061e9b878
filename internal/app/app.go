package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/queue"
	"github.com/ternarybob/colligo/internal/services/ingest"
	"github.com/ternarybob/colligo/internal/services/scheduler"
	"github.com/ternarybob/colligo/internal/services/scraper"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
	"github.com/ternarybob/colligo/internal/workers/fetch"
)

// App wires every component together at process start. Construction is
// explicit; nothing reaches for globals beyond the shared logger.
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage *storage.Manager
	Queue   *queue.BadgerQueue

	Coordinator *ingest.Coordinator
	Pool        *fetch.Pool
	Scheduler   *scheduler.Scheduler

	JobHandler     *handlers.JobHandler
	QueueHandler   *handlers.QueueHandler
	ArticleHandler *handlers.ArticleHandler
	SystemHandler  *handlers.SystemHandler
}

// New builds the application from configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	taskQueue, err := queue.NewBadgerQueue(
		storageManager.DB().Store().Badger(),
		config.Queue.Name,
		config.QueuePollInterval(),
		logger,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize task queue: %w", err)
	}

	articleStorage := storageManager.ArticleStorage()
	jobStorage := storageManager.JobStorage()

	coordinator := ingest.NewCoordinator(articleStorage, jobStorage, taskQueue, logger)

	fetcher := scraper.NewScraper(config.Scraper, config.ScrapeRateLimit(), config.Scraper.RateBurst, logger)

	pool := fetch.NewPool(
		config.Workers.Concurrency,
		taskQueue,
		articleStorage,
		jobStorage,
		fetcher,
		fetch.Options{
			PollTimeout:  config.PollTimeout(),
			FetchTimeout: config.FetchTimeout(),
			MaxRetries:   config.Workers.MaxRetries,
			BackoffBase:  config.BackoffBase(),
		},
		logger,
	)

	maintenance := scheduler.NewScheduler(articleStorage, taskQueue, config.StaleAfter(), logger)

	return &App{
		Config:         config,
		Logger:         logger,
		Storage:        storageManager,
		Queue:          taskQueue,
		Coordinator:    coordinator,
		Pool:           pool,
		Scheduler:      maintenance,
		JobHandler:     handlers.NewJobHandler(coordinator, logger),
		QueueHandler:   handlers.NewQueueHandler(taskQueue, logger),
		ArticleHandler: handlers.NewArticleHandler(articleStorage, logger),
		SystemHandler:  handlers.NewSystemHandler(logger),
	}, nil
}

// Start brings up the queue, workers, maintenance and seed loading
func (a *App) Start(ctx context.Context) error {
	if err := a.Queue.Start(); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}

	a.Pool.Start(ctx)

	if a.Config.Maintenance.Enabled {
		if err := common.ValidateMaintenanceSchedule(a.Config.Maintenance.Schedule); err != nil {
			return fmt.Errorf("invalid maintenance schedule: %w", err)
		}
		if err := a.Scheduler.Start(a.Config.Maintenance.Schedule); err != nil {
			return fmt.Errorf("failed to start maintenance scheduler: %w", err)
		}
	}

	if err := a.Coordinator.LoadSeedBatches(ctx, a.Config.Ingest.SeedDir); err != nil {
		a.Logger.Warn().Err(err).Msg("Seed batch loading failed")
	}

	return nil
}

// Shutdown stops components in dependency order
func (a *App) Shutdown() {
	if a.Config.Maintenance.Enabled {
		a.Scheduler.Stop()
	}
	a.Pool.Stop()
	if err := a.Queue.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Queue stop failed")
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}
	a.Logger.Info().Msg("Application stopped")
}

package fetch

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Pool runs a fixed set of fetch workers against one task queue.
type Pool struct {
	workers []*Worker
	logger  arbor.ILogger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates count workers sharing the same collaborators
func NewPool(count int, taskQueue interfaces.TaskQueue, articles interfaces.ArticleStorage, jobs interfaces.JobStorage, fetcher interfaces.Fetcher, opts Options, logger arbor.ILogger) *Pool {
	if count <= 0 {
		count = 1
	}

	workers := make([]*Worker, count)
	for i := range workers {
		workers[i] = NewWorker(common.NewWorkerID(), taskQueue, articles, jobs, fetcher, opts, logger)
	}

	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

// Start launches all worker loops
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(runCtx)
		}(w)
	}

	p.logger.Info().Int("count", len(p.workers)).Msg("Worker pool started")
}

// Stop cancels the workers and waits for in-flight tasks to finish
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// TaskQueue is the durable priority queue feeding fetch workers.
// Lower priority values dequeue first; ties dequeue in enqueue order.
type TaskQueue interface {
	Start() error
	Stop() error

	// Enqueue is at-least-once; duplicate logical tasks are separate
	// entries and cannot corrupt ordering.
	Enqueue(ctx context.Context, task *models.TaskMessage) error

	// DequeueBlocking pops the highest-priority task, waiting up to
	// timeout for one to arrive. Returns ErrNoTask on timeout.
	DequeueBlocking(ctx context.Context, timeout time.Duration) (*models.TaskMessage, error)

	// DeadLetter records a task that exhausted its retries.
	DeadLetter(ctx context.Context, rec *models.DeadLetterRecord) error
	ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterRecord, error)
	CountDeadLetters(ctx context.Context) (int, error)

	Len(ctx context.Context) (int, error)
}

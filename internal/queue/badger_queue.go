package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

// ErrNoTask is returned when the queue is empty for the whole wait window
var ErrNoTask = errors.New("no tasks in queue")

// ErrQueueStopped is returned when the queue has been shut down
var ErrQueueStopped = errors.New("queue stopped")

// BadgerQueue implements a persistent priority queue on BadgerDB.
//
// Task keys are queue:{name}:task:{priority}:{seq}:{id} with priority and
// seq zero-padded, so a forward iteration over the prefix yields tasks in
// priority order with FIFO tie-break. The sequence counter is persisted in
// the same database and survives restarts.
type BadgerQueue struct {
	db        *badger.DB
	queueName string
	logger    arbor.ILogger

	pollInterval time.Duration

	mu      sync.Mutex
	notify  chan struct{}
	stop    chan struct{}
	started bool
}

// NewBadgerQueue creates a new Badger-backed task queue
func NewBadgerQueue(db *badger.DB, queueName string, pollInterval time.Duration, logger arbor.ILogger) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	return &BadgerQueue{
		db:           db,
		queueName:    queueName,
		logger:       logger,
		pollInterval: pollInterval,
		notify:       make(chan struct{}, 1),
	}, nil
}

// Start readies the queue for blocking dequeues
func (q *BadgerQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	q.stop = make(chan struct{})
	q.started = true
	q.logger.Info().Str("queue", q.queueName).Msg("Task queue started")
	return nil
}

// Stop unblocks all waiting dequeues
func (q *BadgerQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return nil
	}
	close(q.stop)
	q.started = false
	q.logger.Info().Str("queue", q.queueName).Msg("Task queue stopped")
	return nil
}

// Enqueue adds a task to the queue at its priority position
func (q *BadgerQueue) Enqueue(ctx context.Context, task *models.TaskMessage) error {
	if task == nil {
		return errors.New("task is required")
	}
	if task.Priority < 0 {
		return fmt.Errorf("priority must be non-negative, got %d", task.Priority)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		seq, err := q.nextSeq(txn, q.seqKey())
		if err != nil {
			return err
		}
		key := q.taskKey(task.Priority, seq, uuid.New().String())
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	// Wake one waiting dequeuer. The channel holds a single token; a
	// pending notification already covers this enqueue.
	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

// DequeueBlocking pops the highest-priority task, waiting up to timeout.
// Returns ErrNoTask when nothing arrives in the window.
func (q *BadgerQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*models.TaskMessage, error) {
	q.mu.Lock()
	stop := q.stop
	started := q.started
	q.mu.Unlock()
	if !started {
		return nil, ErrQueueStopped
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		task, err := q.tryDequeue()
		if err == nil {
			return task, nil
		}
		if errors.Is(err, badger.ErrConflict) {
			// Another worker claimed the same key; race again immediately.
			continue
		}
		if !errors.Is(err, ErrNoTask) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stop:
			return nil, ErrQueueStopped
		case <-deadline.C:
			return nil, ErrNoTask
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// tryDequeue claims the first task in key order inside one transaction
func (q *BadgerQueue) tryDequeue() (*models.TaskMessage, error) {
	var task models.TaskMessage
	found := false

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		prefix := []byte(fmt.Sprintf("queue:%s:task:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		}); err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if !found {
		return nil, ErrNoTask
	}
	return &task, nil
}

// DeadLetter records a task that exhausted its retries
func (q *BadgerQueue) DeadLetter(ctx context.Context, rec *models.DeadLetterRecord) error {
	if rec == nil {
		return errors.New("dead letter record is required")
	}
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter record: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		seq, err := q.nextSeq(txn, q.dlqSeqKey())
		if err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("queue:%s:dlq:%020d", q.queueName, seq))
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to dead letter task: %w", err)
	}

	q.logger.Warn().
		Str("queue", q.queueName).
		Str("job_id", rec.Task.JobID).
		Str("url", rec.Task.URL).
		Str("error", rec.FinalError).
		Msg("Task dead lettered")

	return nil
}

// ListDeadLetters returns dead letter records in failure order
func (q *BadgerQueue) ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterRecord, error) {
	records := make([]*models.DeadLetterRecord, 0)

	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(fmt.Sprintf("queue:%s:dlq:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec models.DeadLetterRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	return records, nil
}

// Len returns the number of queued tasks
func (q *BadgerQueue) Len(ctx context.Context) (int, error) {
	return q.countPrefix(fmt.Sprintf("queue:%s:task:", q.queueName))
}

// CountDeadLetters returns the number of dead letter records
func (q *BadgerQueue) CountDeadLetters(ctx context.Context) (int, error) {
	return q.countPrefix(fmt.Sprintf("queue:%s:dlq:", q.queueName))
}

func (q *BadgerQueue) countPrefix(prefix string) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		p := []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}

// nextSeq reads, increments and persists the counter stored at key
// within the caller's transaction
func (q *BadgerQueue) nextSeq(txn *badger.Txn, key []byte) (uint64, error) {
	var seq uint64
	item, err := txn.Get(key)
	if err == nil {
		if err := item.Value(func(val []byte) error {
			if len(val) == 8 {
				seq = binary.BigEndian.Uint64(val)
			}
			return nil
		}); err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}

	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := txn.Set(key, buf); err != nil {
		return 0, err
	}
	return seq, nil
}

func (q *BadgerQueue) taskKey(priority int, seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:task:%010d:%020d:%s", q.queueName, priority, seq, id))
}

func (q *BadgerQueue) seqKey() []byte {
	return []byte(fmt.Sprintf("queue:%s:seq", q.queueName))
}

func (q *BadgerQueue) dlqSeqKey() []byte {
	return []byte(fmt.Sprintf("queue:%s:dlqseq", q.queueName))
}

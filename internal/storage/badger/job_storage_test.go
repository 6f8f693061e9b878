package badger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

func TestJobSetStatusStampsCompletedAt(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{ID: "job-1", TotalArticles: 2, NewArticles: 2}
	if err := storage.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := storage.SetStatus(ctx, "job-1", models.JobStatusInProgress); err != nil {
		t.Fatal(err)
	}
	got, _ := storage.GetByID(ctx, "job-1")
	if got.Status != models.JobStatusInProgress || got.CompletedAt != nil {
		t.Fatalf("Unexpected in-progress job: %+v", got)
	}

	if err := storage.SetStatus(ctx, "job-1", models.JobStatusCompleted); err != nil {
		t.Fatal(err)
	}
	got, _ = storage.GetByID(ctx, "job-1")
	if got.Status != models.JobStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("Expected completed with timestamp, got %+v", got)
	}
}

func TestJobSetStatusNeverDemotesCompleted(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{ID: "job-1", TotalArticles: 1, NewArticles: 1}
	if err := storage.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := storage.SetStatus(ctx, "job-1", models.JobStatusCompleted); err != nil {
		t.Fatal(err)
	}
	done, _ := storage.GetByID(ctx, "job-1")

	// A late IN_PROGRESS write must not reopen the job.
	if err := storage.SetStatus(ctx, "job-1", models.JobStatusInProgress); err != nil {
		t.Fatal(err)
	}

	got, _ := storage.GetByID(ctx, "job-1")
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(*done.CompletedAt) {
		t.Errorf("CompletedAt changed: %v, want %v", got.CompletedAt, done.CompletedAt)
	}
}

func TestJobConcurrentIncrements(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{ID: "job-1", TotalArticles: 40, NewArticles: 40}
	if err := storage.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := storage.IncrementCompleted(ctx, "job-1"); err != nil {
				t.Error(err)
			}
		}()
	}
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := storage.IncrementFailed(ctx, "job-1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := storage.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedCount != 25 {
		t.Errorf("CompletedCount = %d, want 25", got.CompletedCount)
	}
	if got.FailedCount != 15 {
		t.Errorf("FailedCount = %d, want 15", got.FailedCount)
	}
}

func TestTryCompleteSingleWinner(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{
		ID:            "job-1",
		Status:        models.JobStatusInProgress,
		TotalArticles: 3,
		NewArticles:   3,
	}
	if err := storage.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	// Not settled yet: nobody wins.
	won, err := storage.TryComplete(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("TryComplete won before all tasks settled")
	}

	for i := 0; i < 3; i++ {
		if err := storage.IncrementCompleted(ctx, "job-1"); err != nil {
			t.Fatal(err)
		}
	}

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := storage.TryComplete(ctx, "job-1")
			if err != nil {
				t.Error(err)
				return
			}
			if won {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("TryComplete winners = %d, want exactly 1", winners)
	}

	got, _ := storage.GetByID(ctx, "job-1")
	if got.Status != models.JobStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("Expected completed job, got %+v", got)
	}
}

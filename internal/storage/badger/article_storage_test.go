package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

func TestArticleURLUniqueness(t *testing.T) {
	db := newTestDB(t)
	storage := NewArticleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := &models.Article{ID: "art-1", URL: "https://example.com/a", Source: "example"}
	if err := storage.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}

	second := &models.Article{ID: "art-2", URL: "https://example.com/a", Source: "example"}
	err := storage.Create(ctx, second)
	if !errors.Is(err, ErrURLExists) {
		t.Fatalf("Expected ErrURLExists, got %v", err)
	}

	got, err := storage.GetByURL(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("Failed to get by url: %v", err)
	}
	if got.ID != "art-1" {
		t.Errorf("Expected winner art-1, got %s", got.ID)
	}
}

func TestArticleLifecycle(t *testing.T) {
	db := newTestDB(t)
	storage := NewArticleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	article := &models.Article{ID: "art-1", URL: "https://example.com/a", Source: "example"}
	if err := storage.Create(ctx, article); err != nil {
		t.Fatal(err)
	}

	if err := storage.MarkFetching(ctx, "art-1"); err != nil {
		t.Fatalf("MarkFetching failed: %v", err)
	}
	if err := storage.MarkFetched(ctx, "art-1", "Title", "# Body"); err != nil {
		t.Fatalf("MarkFetched failed: %v", err)
	}

	got, err := storage.GetByID(ctx, "art-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.ArticleStatusFetched {
		t.Errorf("Status = %s, want FETCHED", got.Status)
	}
	if got.Title != "Title" || got.ContentMarkdown != "# Body" {
		t.Errorf("Content not persisted: %+v", got)
	}
	if got.FetchedAt == nil {
		t.Error("FetchedAt not stamped")
	}

	// Terminal: no moves out of FETCHED
	err = storage.MarkFetching(ctx, "art-1")
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition from FETCHED, got %v", err)
	}
}

func TestArticleFailedRetryPath(t *testing.T) {
	db := newTestDB(t)
	storage := NewArticleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	article := &models.Article{ID: "art-1", URL: "https://example.com/a", Source: "example"}
	if err := storage.Create(ctx, article); err != nil {
		t.Fatal(err)
	}
	if err := storage.MarkFetching(ctx, "art-1"); err != nil {
		t.Fatal(err)
	}
	if err := storage.MarkFailed(ctx, "art-1", "http 500"); err != nil {
		t.Fatal(err)
	}

	got, _ := storage.GetByID(ctx, "art-1")
	if got.Status != models.ArticleStatusFailed || got.LastError != "http 500" {
		t.Fatalf("Unexpected failed record: %+v", got)
	}

	if err := storage.ResetToPending(ctx, "art-1"); err != nil {
		t.Fatalf("ResetToPending failed: %v", err)
	}
	got, _ = storage.GetByID(ctx, "art-1")
	if got.Status != models.ArticleStatusPending {
		t.Errorf("Status = %s, want PENDING", got.Status)
	}
}

func TestIncrementReferenceCountConcurrent(t *testing.T) {
	db := newTestDB(t)
	storage := NewArticleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	article := &models.Article{ID: "art-1", URL: "https://example.com/a", Source: "example"}
	if err := storage.Create(ctx, article); err != nil {
		t.Fatal(err)
	}

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- storage.IncrementReferenceCount(ctx, "art-1")
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	got, _ := storage.GetByID(ctx, "art-1")
	if got.ReferenceCount != n {
		t.Errorf("ReferenceCount = %d, want %d", got.ReferenceCount, n)
	}
}

func TestListStale(t *testing.T) {
	db := newTestDB(t)
	storage := NewArticleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	stale := &models.Article{ID: "art-stale", URL: "https://example.com/stale", Source: "example"}
	fresh := &models.Article{ID: "art-fresh", URL: "https://example.com/fresh", Source: "example"}
	for _, a := range []*models.Article{stale, fresh} {
		if err := storage.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		if err := storage.MarkFetching(ctx, a.ID); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(50 * time.Millisecond)

	// Only art-stale is older than the threshold; art-fresh gets touched now.
	if err := storage.ResetToPending(ctx, "art-fresh"); err != nil {
		t.Fatal(err)
	}
	if err := storage.MarkFetching(ctx, "art-fresh"); err != nil {
		t.Fatal(err)
	}

	got, err := storage.ListStale(ctx, 40*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "art-stale" {
		ids := make([]string, len(got))
		for i, a := range got {
			ids[i] = a.ID
		}
		t.Errorf("ListStale = %v, want [art-stale]", ids)
	}
}

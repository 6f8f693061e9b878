package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrURLExists is returned when a second article tries to claim a URL.
var ErrURLExists = errors.New("url already exists")

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("record not found")

// ArticleStorage implements the ArticleStorage interface for Badger.
// A single mutex serializes the check-then-insert on URL and all
// read-modify-write updates. Badgerhold has no atomic increment, and the
// store is embedded in one process, so lock-at-the-store is sufficient.
type ArticleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewArticleStorage creates a new ArticleStorage instance
func NewArticleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ArticleStorage) Create(ctx context.Context, article *models.Article) error {
	if article.ID == "" {
		return fmt.Errorf("article ID is required")
	}
	if article.URL == "" {
		return fmt.Errorf("article URL is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []models.Article
	err := s.db.Store().Find(&existing, badgerhold.Where("URL").Eq(article.URL).Limit(1))
	if err != nil {
		return fmt.Errorf("failed to check url: %w", err)
	}
	if len(existing) > 0 {
		return ErrURLExists
	}

	now := time.Now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now
	if article.Status == "" {
		article.Status = models.ArticleStatusPending
	}

	if err := s.db.Store().Insert(article.ID, article); err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

func (s *ArticleStorage) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	if err := s.db.Store().Get(id, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

func (s *ArticleStorage) GetByURL(ctx context.Context, url string) (*models.Article, error) {
	var articles []models.Article
	err := s.db.Store().Find(&articles, badgerhold.Where("URL").Eq(url).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find article by url: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrNotFound
	}
	return &articles[0], nil
}

func (s *ArticleStorage) GetByIDs(ctx context.Context, ids []string) ([]*models.Article, error) {
	articles := make([]*models.Article, 0, len(ids))
	for _, id := range ids {
		var article models.Article
		if err := s.db.Store().Get(id, &article); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("failed to get article %s: %w", id, err)
		}
		articles = append(articles, &article)
	}
	return articles, nil
}

func (s *ArticleStorage) MarkFetching(ctx context.Context, id string) error {
	return s.transition(id, models.ArticleStatusFetching, nil)
}

func (s *ArticleStorage) MarkFetched(ctx context.Context, id, title, contentMarkdown string) error {
	return s.transition(id, models.ArticleStatusFetched, func(a *models.Article) {
		now := time.Now()
		a.Title = title
		a.ContentMarkdown = contentMarkdown
		a.LastError = ""
		a.FetchedAt = &now
	})
}

func (s *ArticleStorage) MarkFailed(ctx context.Context, id, lastError string) error {
	return s.transition(id, models.ArticleStatusFailed, func(a *models.Article) {
		a.LastError = lastError
	})
}

func (s *ArticleStorage) ResetToPending(ctx context.Context, id string) error {
	return s.transition(id, models.ArticleStatusPending, nil)
}

// transition enforces the lifecycle table before persisting. The apply
// callback runs only after the move is known to be legal.
func (s *ArticleStorage) transition(id string, to models.ArticleStatus, apply func(*models.Article)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var article models.Article
	if err := s.db.Store().Get(id, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get article: %w", err)
	}

	if !models.CanTransition(article.Status, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, article.Status, to)
	}

	article.Status = to
	if apply != nil {
		apply(&article)
	}
	article.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &article); err != nil {
		return fmt.Errorf("failed to update article status: %w", err)
	}
	return nil
}

func (s *ArticleStorage) IncrementReferenceCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var article models.Article
	if err := s.db.Store().Get(id, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get article: %w", err)
	}

	article.ReferenceCount++
	article.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &article); err != nil {
		return fmt.Errorf("failed to increment reference count: %w", err)
	}
	return nil
}

func (s *ArticleStorage) ListStale(ctx context.Context, threshold time.Duration) ([]*models.Article, error) {
	cutoff := time.Now().Add(-threshold)

	var articles []models.Article
	err := s.db.Store().Find(&articles, badgerhold.Where("Status").Eq(models.ArticleStatusFetching))
	if err != nil {
		return nil, fmt.Errorf("failed to find fetching articles: %w", err)
	}

	stale := make([]*models.Article, 0)
	for i := range articles {
		if articles[i].UpdatedAt.Before(cutoff) {
			stale = append(stale, &articles[i])
		}
	}
	return stale, nil
}

func (s *ArticleStorage) CountByStatus(ctx context.Context, status models.ArticleStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Article{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count articles by status: %w", err)
	}
	return int(count), nil
}

func (s *ArticleStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Article{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return int(count), nil
}

package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// Fetcher retrieves a URL and extracts article content.
// Failures come back as *models.FetchError so callers can classify them.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchResult, error)
}

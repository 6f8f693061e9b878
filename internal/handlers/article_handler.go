package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ArticleHandler exposes the ops view of the article store
type ArticleHandler struct {
	articles interfaces.ArticleStorage
	logger   arbor.ILogger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(articles interfaces.ArticleStorage, logger arbor.ILogger) *ArticleHandler {
	return &ArticleHandler{
		articles: articles,
		logger:   logger,
	}
}

// StatsHandler returns article counts by lifecycle status
// GET /api/articles/stats
func (h *ArticleHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	total, err := h.articles.Count(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count articles")
		writeError(w, http.StatusInternalServerError, "failed to read article stats")
		return
	}

	stats := models.ArticleStatsResponse{Total: total}
	counts := []struct {
		status models.ArticleStatus
		dest   *int
	}{
		{models.ArticleStatusPending, &stats.Pending},
		{models.ArticleStatusFetching, &stats.Fetching},
		{models.ArticleStatusFetched, &stats.Fetched},
		{models.ArticleStatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := h.articles.CountByStatus(r.Context(), c.status)
		if err != nil {
			h.logger.Error().Err(err).Str("status", string(c.status)).Msg("Failed to count articles by status")
			writeError(w, http.StatusInternalServerError, "failed to read article stats")
			return
		}
		*c.dest = n
	}

	writeJSON(w, http.StatusOK, stats)
}

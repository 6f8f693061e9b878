package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// QueueHandler exposes the ops view of the task queue
type QueueHandler struct {
	queue  interfaces.TaskQueue
	logger arbor.ILogger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(taskQueue interfaces.TaskQueue, logger arbor.ILogger) *QueueHandler {
	return &QueueHandler{
		queue:  taskQueue,
		logger: logger,
	}
}

// StatsHandler returns queue depth and dead letter count
// GET /api/queue/stats
func (h *QueueHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	queued, err := h.queue.Len(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read queue length")
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	deadLetters, err := h.queue.CountDeadLetters(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count dead letters")
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}

	writeJSON(w, http.StatusOK, models.QueueStatsResponse{
		Queued:      queued,
		DeadLetters: deadLetters,
	})
}

// DeadLettersHandler lists dead letter records in failure order
// GET /api/queue/dead-letters?limit=100
func (h *QueueHandler) DeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.queue.ListDeadLetters(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list dead letters")
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dead_letters": records,
		"count":        len(records),
	})
}

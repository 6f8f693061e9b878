package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/ingest"
)

// JobHandler handles job-related API requests
type JobHandler struct {
	coordinator *ingest.Coordinator
	logger      arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(coordinator *ingest.Coordinator, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// SubmitHandler accepts a batch of article submissions
// POST /api/jobs/submit
func (h *JobHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.JobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.coordinator.Submit(r.Context(), req.Articles)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Validation failures reject the whole batch; no job is created.
		if strings.Contains(err.Error(), "invalid submission") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to submit job")
		writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// ListJobsHandler returns recent jobs
// GET /api/jobs?limit=50
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := h.coordinator.ListJobs(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// JobRoutesHandler dispatches /api/jobs/{id}/status and /api/jobs/{id}/results
func (h *JobHandler) JobRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	jobID := parts[0]
	switch parts[1] {
	case "status":
		h.statusFor(w, r, jobID)
	case "results":
		h.resultsFor(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *JobHandler) statusFor(w http.ResponseWriter, r *http.Request, jobID string) {
	resp, err := h.coordinator.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ingest.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job status")
		writeError(w, http.StatusInternalServerError, "failed to get job status")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) resultsFor(w http.ResponseWriter, r *http.Request, jobID string) {
	resp, err := h.coordinator.Results(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ingest.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job results")
		writeError(w, http.StatusInternalServerError, "failed to get job results")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

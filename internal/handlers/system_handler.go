package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// SystemHandler serves health and version endpoints
type SystemHandler struct {
	logger arbor.ILogger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(logger arbor.ILogger) *SystemHandler {
	return &SystemHandler{logger: logger}
}

// HealthHandler reports liveness
// GET /api/health
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler reports build information
// GET /api/version
func (h *SystemHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

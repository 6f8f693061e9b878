package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/submit", s.app.JobHandler.SubmitHandler) // POST - submit a batch
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)      // GET - list jobs
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutesHandler)    // GET /{id}/status, /{id}/results

	// API routes - Queue and article ops
	mux.HandleFunc("/api/queue/stats", s.app.QueueHandler.StatsHandler)
	mux.HandleFunc("/api/queue/dead-letters", s.app.QueueHandler.DeadLettersHandler)
	mux.HandleFunc("/api/articles/stats", s.app.ArticleHandler.StatsHandler)

	// API routes - System
	mux.HandleFunc("/api/health", s.app.SystemHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.SystemHandler.VersionHandler)

	return mux
}

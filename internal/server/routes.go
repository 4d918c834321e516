package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live progress push
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - generation jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute) // GET (list), POST (submit)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutes)

	// API routes - translation completion and repair
	mux.HandleFunc("/api/clusters/", s.app.TranslationHandler.Routes)

	// API routes - application status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// Stored images
	mux.Handle(s.imagesPrefix(), http.StripPrefix(s.imagesPrefix(),
		http.FileServer(http.Dir(s.app.Config.Storage.Images.Dir))))

	return mux
}

func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.SubmitHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) imagesPrefix() string {
	prefix := s.app.Config.Storage.Images.PublicBase
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

package web

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// handleHealthCheck reports that the process is serving requests.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

// handleUp is the load balancer liveness probe.
func (s *Server) handleUp(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

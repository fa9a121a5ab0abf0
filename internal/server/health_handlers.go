package server

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
	Index     string    `json:"index"`
}

// handleHealth is an unauthenticated liveness probe: it checks the
// store connection and whether a collection snapshot has ever been
// published, in place of the teacher's database-only check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{Status: "healthy", Timestamp: time.Now(), Store: "ok", Index: "ok"}

	if _, err := s.store.ListUsers(); err != nil {
		health.Status = "unhealthy"
		health.Store = "error"
	}
	if s.index.Load() == nil {
		health.Index = "not_ready"
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

package server

import (
	"net/http"

	"polaris/pkg/polaris"
)

type indexStatusResponse struct {
	State      string `json:"state"`
	FilesSeen  int    `json:"files_seen"`
	Errors     int    `json:"errors"`
	LastScanAt int64  `json:"last_scan_at"`
}

// handleIndexStatus backs GET /index_status: {Idle|Scanning, counters}.
func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	status := s.orch.Status()
	writeJSON(w, http.StatusOK, indexStatusResponse{
		State:      string(status.State),
		FilesSeen:  status.LastStats.FilesSeen,
		Errors:     status.LastStats.Errors,
		LastScanAt: status.LastScanAt,
	})
}

// handleTriggerIndex backs POST /trigger_index: marks the collection
// dirty. Any authenticated caller may request a rescan; coalescing
// (4.7) keeps a flood of triggers from costing more than one extra scan.
func (s *Server) handleTriggerIndex(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	s.orch.Trigger()
	writeJSON(w, http.StatusAccepted, nil)
}

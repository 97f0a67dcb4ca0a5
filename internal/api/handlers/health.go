package handlers

import (
	"net/http"
)

// StatusReporter is what readiness needs from the layout service.
type StatusReporter interface {
	Version() uint64
	HasStore() bool
}

// Health returns a simple JSON payload to indicate the API is alive.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyResponse struct {
	Status  string `json:"status"`
	Version uint64 `json:"version"`
	Store   bool   `json:"store"`
}

// Ready reports the layout version and whether snapshots are persisted.
func Ready(s StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, readyResponse{Status: "ok", Version: s.Version(), Store: s.HasStore()})
	}
}

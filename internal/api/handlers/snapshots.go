package handlers

import (
	"net/http"
)

// LatestSnapshot handles GET /api/snapshots/latest.
func LatestSnapshot(s SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := s.LatestSnapshot(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// CreateSnapshot handles POST /api/snapshots, persisting the layout now.
func CreateSnapshot(s SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := s.Persist(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		// The payloads are large; the caller can fetch them via latest.
		row.Positions = nil
		row.Tree.RawMessage = nil
		writeJSON(w, http.StatusCreated, row)
	}
}

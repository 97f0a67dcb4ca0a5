package handlers

import (
	"errors"
	"net/http"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

type validateResponse struct {
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
	Tree  bhtree.Stats `json:"tree"`
}

// TreeStats handles GET /api/tree/stats.
func TreeStats(s TreeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.Stats()
		metrics.RecordTreeStats(stats.Tree)
		writeJSON(w, http.StatusOK, stats)
	}
}

// TreeSnapshot handles GET /api/tree/snapshot. The body is the flattened
// tree encoding, rendered once per layout version.
func TreeSnapshot(s TreeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.TreeSnapshotJSON()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeRawJSON(w, b)
	}
}

// ValidateTree handles GET /api/tree/validate. A corrupt tree answers 200
// with valid=false; anything else that fails is a server error.
func ValidateTree(s TreeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.Validate()
		resp := validateResponse{Valid: err == nil, Tree: s.Stats().Tree}
		if err != nil {
			var inv *bhtree.InvariantError
			if !errors.Is(err, bhtree.ErrCorrupt) && !errors.As(err, &inv) {
				writeError(w, r, err)
				return
			}
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

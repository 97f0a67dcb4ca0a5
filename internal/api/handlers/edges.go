package handlers

import (
	"net/http"

	"github.com/onnwee/barnes-hut-tree/internal/apierr"
	"github.com/onnwee/barnes-hut-tree/internal/middleware"
)

type edgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// CreateEdge handles POST /api/edges.
func CreateEdge(s EdgeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req edgeRequest
		if err := middleware.DecodeJSON(r, &req); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON().WithDetails(map[string]interface{}{"reason": err.Error()}))
			return
		}
		if req.Source == "" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("source"))
			return
		}
		if req.Target == "" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("target"))
			return
		}
		if err := s.AddEdge(req.Source, req.Target); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

// DeleteEdge handles DELETE /api/edges?source=a&target=b.
func DeleteEdge(s EdgeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source, target := q.Get("source"), q.Get("target")
		if source == "" || target == "" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("source and target"))
			return
		}
		if err := s.RemoveEdge(source, target); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/barnes-hut-tree/internal/apierr"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/middleware"
	"github.com/onnwee/barnes-hut-tree/internal/tracing"
)

type createNodeRequest struct {
	ID       string    `json:"id"`
	Position []float64 `json:"position,omitempty"`
}

type moveNodeRequest struct {
	Position []float64 `json:"position"`
}

type forceResponse struct {
	ID           string    `json:"id"`
	Displacement []float64 `json:"displacement"`
}

// CreateNode handles POST /api/nodes. Without a position the node is placed
// at random.
func CreateNode(s NodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createNodeRequest
		if err := middleware.DecodeJSON(r, &req); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON().WithDetails(map[string]interface{}{"reason": err.Error()}))
			return
		}
		if err := middleware.ValidateNodeID(req.ID); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("id", err.Error()))
			return
		}

		ctx, span := tracing.StartSpan(r.Context(), "handlers.CreateNode")
		defer span.End()
		span.SetAttributes(attribute.String("node_id", req.ID))

		node, err := s.AddNode(logger.WithNodeID(ctx, req.ID), req.ID, req.Position)
		if err != nil {
			tracing.Fail(span, err)
			writeError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/nodes/"+req.ID)
		writeJSON(w, http.StatusCreated, node)
	}
}

// GetNode handles GET /api/nodes/{id}.
func GetNode(s NodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, err := s.Node(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, node)
	}
}

// MoveNode handles PUT /api/nodes/{id}.
func MoveNode(s NodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req moveNodeRequest
		if err := middleware.DecodeJSON(r, &req); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON().WithDetails(map[string]interface{}{"reason": err.Error()}))
			return
		}
		if req.Position == nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("position"))
			return
		}
		node, err := s.MoveNode(logger.WithNodeID(r.Context(), id), id, req.Position)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, node)
	}
}

// DeleteNode handles DELETE /api/nodes/{id}.
func DeleteNode(s NodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.RemoveNode(logger.WithNodeID(r.Context(), id), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetNodeForce handles GET /api/nodes/{id}/force: the approximate
// repulsive displacement the tree computes for the node.
func GetNodeForce(s NodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		disp, err := s.Force(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, forceResponse{ID: id, Displacement: disp})
	}
}

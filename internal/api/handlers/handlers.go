package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/barnes-hut-tree/internal/apierr"
	"github.com/onnwee/barnes-hut-tree/internal/db"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
)

// NodeStore is the node half of the layout service.
type NodeStore interface {
	AddNode(ctx context.Context, id string, pos []float64) (layout.Node, error)
	MoveNode(ctx context.Context, id string, pos []float64) (layout.Node, error)
	RemoveNode(ctx context.Context, id string) error
	Node(id string) (layout.Node, error)
	Force(id string) ([]float64, error)
}

// EdgeStore adds and removes edges.
type EdgeStore interface {
	AddEdge(a, b string) error
	RemoveEdge(a, b string) error
}

// TreeReader exposes the tree behind the layout.
type TreeReader interface {
	Stats() layout.Stats
	TreeSnapshotJSON() ([]byte, error)
	Validate() error
}

// Stepper advances the layout and renders it.
type Stepper interface {
	Step(ctx context.Context, n int) (layout.StepResult, error)
	Stats() layout.Stats
	DocumentJSON() ([]byte, error)
}

// Reheater restarts the cooling schedule.
type Reheater interface {
	Reheat()
	Stats() layout.Stats
}

// SnapshotStore reads and writes persisted layout snapshots.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context) (db.LayoutSnapshot, error)
	Persist(ctx context.Context) (db.LayoutSnapshot, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

// writeError maps err to a structured response, logging server-side
// failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.FromError(err)
	if apiErr.Status() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path, "code", apiErr.Code)
	}
	apierr.WriteErrorWithContext(w, r, apiErr)
}

package apierr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/circuitbreaker"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
)

func TestNewAndAccessors(t *testing.T) {
	err := New(ErrLayoutStepFailed, "step failed", http.StatusInternalServerError).
		WithDetails(map[string]interface{}{"step": 3}).
		WithRequestID("req-1")
	if err.Code != ErrLayoutStepFailed || err.Status() != http.StatusInternalServerError {
		t.Errorf("unexpected error %+v", err)
	}
	if err.Details["step"] != 3 || err.RequestID != "req-1" {
		t.Errorf("details/request id not set: %+v", err)
	}
	if got := err.Error(); got != "LAYOUT_STEP_FAILED: step failed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWriteErrorWithContext(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/nodes/a", nil)
	r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, "req-123"))

	WriteErrorWithContext(w, r, NodeNotFound("a"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != ErrNodeNotFound || resp.Error.RequestID != "req-123" || resp.Error.Details["id"] != "a" {
		t.Errorf("unexpected body %+v", resp.Error)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"NodeNotFound", NodeNotFound("x"), ErrNodeNotFound, http.StatusNotFound},
		{"NodeExists", NodeExists("x"), ErrNodeExists, http.StatusConflict},
		{"TreeDimensionMismatch", TreeDimensionMismatch(2, 3), ErrTreeDimensionMismatch, http.StatusBadRequest},
		{"TreeNonFinite", TreeNonFinite(), ErrTreeNonFinite, http.StatusBadRequest},
		{"TreeCorrupt", TreeCorrupt(), ErrTreeCorrupt, http.StatusInternalServerError},
		{"LayoutInvalidParams", LayoutInvalidParams(""), ErrLayoutInvalidParams, http.StatusBadRequest},
		{"LayoutStepFailed", LayoutStepFailed(""), ErrLayoutStepFailed, http.StatusInternalServerError},
		{"SnapshotNone", SnapshotNone(), ErrSnapshotNone, http.StatusNotFound},
		{"SnapshotUnavailable", SnapshotUnavailable(), ErrSnapshotUnavailable, http.StatusServiceUnavailable},
		{"SystemInternal", SystemInternal(""), ErrSystemInternal, http.StatusInternalServerError},
		{"SystemDatabase", SystemDatabase(""), ErrSystemDatabase, http.StatusInternalServerError},
		{"SystemUnavailable", SystemUnavailable(""), ErrSystemUnavailable, http.StatusServiceUnavailable},
		{"SystemTimeout", SystemTimeout(""), ErrSystemTimeout, http.StatusRequestTimeout},
		{"ValidationInvalidJSON", ValidationInvalidJSON(), ErrValidationInvalidJSON, http.StatusBadRequest},
		{"ValidationMissingField", ValidationMissingField("position"), ErrValidationMissingField, http.StatusBadRequest},
		{"ValidationInvalidValue", ValidationInvalidValue("steps", ""), ErrValidationInvalidValue, http.StatusBadRequest},
		{"RateLimitGlobal", RateLimitGlobal(), ErrRateLimitGlobal, http.StatusTooManyRequests},
		{"RateLimitIP", RateLimitIP(), ErrRateLimitIP, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.Status())
			}
			if tt.err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"api error passes through", fmt.Errorf("wrap: %w", NodeExists("a")), ErrNodeExists},
		{"dimension mismatch", fmt.Errorf("point 0: %w", bhtree.ErrDimensionMismatch), ErrTreeDimensionMismatch},
		{"non-finite", bhtree.ErrNonFinite, ErrTreeNonFinite},
		{"corrupt", fmt.Errorf("%w: orphan leaf", bhtree.ErrCorrupt), ErrTreeCorrupt},
		{"invariant panic", &bhtree.InvariantError{Op: "sub", Msg: "x"}, ErrTreeCorrupt},
		{"index", bhtree.ErrIndexOutOfRange, ErrNodeNotFound},
		{"layout node", fmt.Errorf("%w: \"a\"", layout.ErrNodeNotFound), ErrNodeNotFound},
		{"layout duplicate", layout.ErrNodeExists, ErrNodeExists},
		{"layout edge", layout.ErrEdgeNotFound, ErrEdgeNotFound},
		{"self loop", layout.ErrSelfLoop, ErrValidationInvalidValue},
		{"layout params", fmt.Errorf("%w: k", layout.ErrInvalidParams), ErrLayoutInvalidParams},
		{"no snapshot", layout.ErrNoSnapshot, ErrSnapshotNone},
		{"no store", layout.ErrNoStore, ErrSnapshotUnavailable},
		{"wrapped tree error", fmt.Errorf("layout: add \"a\": %w", bhtree.ErrNonFinite), ErrTreeNonFinite},
		{"breaker", circuitbreaker.ErrCircuitOpen, ErrSnapshotUnavailable},
		{"deadline", context.DeadlineExceeded, ErrSystemTimeout},
		{"anything else", fmt.Errorf("boom"), ErrSystemInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err).Code; got != tt.want {
				t.Errorf("FromError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

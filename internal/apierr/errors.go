package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/circuitbreaker"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// NODE_ - Layout node lookups
	ErrNodeNotFound ErrorCode = "NODE_NOT_FOUND"
	ErrNodeExists   ErrorCode = "NODE_EXISTS"
	ErrEdgeNotFound ErrorCode = "EDGE_NOT_FOUND"

	// TREE_ - Point data the tree rejects, and broken tree invariants
	ErrTreeDimensionMismatch ErrorCode = "TREE_DIMENSION_MISMATCH"
	ErrTreeNonFinite         ErrorCode = "TREE_NON_FINITE"
	ErrTreeCorrupt           ErrorCode = "TREE_CORRUPT"

	// LAYOUT_ - Layout stepping
	ErrLayoutInvalidParams ErrorCode = "LAYOUT_INVALID_PARAMS"
	ErrLayoutStepFailed    ErrorCode = "LAYOUT_STEP_FAILED"

	// SNAPSHOT_ - Persisted layout snapshots
	ErrSnapshotNone        ErrorCode = "SNAPSHOT_NONE"
	ErrSnapshotUnavailable ErrorCode = "SNAPSHOT_STORE_UNAVAILABLE"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemDatabase    ErrorCode = "SYSTEM_DATABASE"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

func New(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, status: status}
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err}); encErr != nil {
		logger.Warn("writing error response failed", "code", err.Code, "error", encErr)
	}
}

func NodeNotFound(id string) *Error {
	return New(ErrNodeNotFound, "node not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"id": id})
}

func NodeExists(id string) *Error {
	return New(ErrNodeExists, "node already exists", http.StatusConflict).
		WithDetails(map[string]interface{}{"id": id})
}

func EdgeNotFound(a, b string) *Error {
	return New(ErrEdgeNotFound, "edge not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"source": a, "target": b})
}

func TreeDimensionMismatch(want, got int) *Error {
	return New(ErrTreeDimensionMismatch, "position has the wrong number of coordinates", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"want": want, "got": got})
}

func TreeNonFinite() *Error {
	return New(ErrTreeNonFinite, "position coordinates must be finite", http.StatusBadRequest)
}

// TreeCorrupt reports a tree whose invariants no longer hold. The message
// is kept generic; the cause goes to logs and Sentry.
func TreeCorrupt() *Error {
	return New(ErrTreeCorrupt, "layout tree failed validation", http.StatusInternalServerError)
}

func LayoutInvalidParams(message string) *Error {
	if message == "" {
		message = "Invalid layout parameters"
	}
	return New(ErrLayoutInvalidParams, message, http.StatusBadRequest)
}

func LayoutStepFailed(message string) *Error {
	if message == "" {
		message = "Layout step failed"
	}
	return New(ErrLayoutStepFailed, message, http.StatusInternalServerError)
}

func SnapshotNone() *Error {
	return New(ErrSnapshotNone, "No layout snapshot has been stored yet", http.StatusNotFound)
}

func SnapshotUnavailable() *Error {
	return New(ErrSnapshotUnavailable, "Snapshot store is unavailable", http.StatusServiceUnavailable)
}

func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

func SystemDatabase(message string) *Error {
	if message == "" {
		message = "Database error"
	}
	return New(ErrSystemDatabase, message, http.StatusInternalServerError)
}

func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

func SystemTimeout(message string) *Error {
	if message == "" {
		message = "Request timeout"
	}
	return New(ErrSystemTimeout, message, http.StatusRequestTimeout)
}

func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// FromError maps errors from the layout, the tree, the breaker and the
// context to a structured error. Anything unrecognized becomes SYSTEM_INTERNAL.
func FromError(err error) *Error {
	var apiErr *Error
	var inv *bhtree.InvariantError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, layout.ErrNodeNotFound):
		return New(ErrNodeNotFound, "node not found", http.StatusNotFound)
	case errors.Is(err, layout.ErrNodeExists):
		return New(ErrNodeExists, "node already exists", http.StatusConflict)
	case errors.Is(err, layout.ErrEdgeNotFound):
		return New(ErrEdgeNotFound, "edge not found", http.StatusNotFound)
	case errors.Is(err, layout.ErrSelfLoop):
		return ValidationInvalidValue("target", "edge endpoints must differ")
	case errors.Is(err, layout.ErrInvalidParams):
		return LayoutInvalidParams(err.Error())
	case errors.Is(err, layout.ErrNoSnapshot):
		return SnapshotNone()
	case errors.Is(err, layout.ErrNoStore):
		return SnapshotUnavailable()
	case errors.Is(err, bhtree.ErrDimensionMismatch):
		return New(ErrTreeDimensionMismatch, "position has the wrong number of coordinates", http.StatusBadRequest)
	case errors.Is(err, bhtree.ErrNonFinite):
		return TreeNonFinite()
	case errors.Is(err, bhtree.ErrCorrupt), errors.As(err, &inv):
		return TreeCorrupt()
	case errors.Is(err, bhtree.ErrIndexOutOfRange):
		return New(ErrNodeNotFound, "node not found", http.StatusNotFound)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return SnapshotUnavailable()
	case errors.Is(err, context.DeadlineExceeded):
		return SystemTimeout("")
	default:
		return SystemInternal("")
	}
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}

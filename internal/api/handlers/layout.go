package handlers

import (
	"net/http"
	"strconv"

	"github.com/onnwee/barnes-hut-tree/internal/apierr"
	"github.com/onnwee/barnes-hut-tree/internal/tracing"
)

const (
	defaultSteps = 1
	// MaxStepsPerRequest caps the work one request may ask for.
	MaxStepsPerRequest = 1000
)

type stepRequest struct {
	Steps int `json:"steps"`
}

type stepResponse struct {
	Result any `json:"result"`
	Stats  any `json:"stats"`
}

// ParseSteps reads the steps query parameter, defaulting to one. It is
// exported so the rate limiter can charge a step request by its size.
func ParseSteps(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("steps")
	if raw == "" {
		return defaultSteps, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxStepsPerRequest {
		return 0, apierr.ValidationInvalidValue("steps", "steps must be an integer between 1 and "+strconv.Itoa(MaxStepsPerRequest))
	}
	return n, nil
}

// StepLayout handles POST /api/layout/step?steps=N.
func StepLayout(s Stepper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := ParseSteps(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx, span := tracing.StartSpan(r.Context(), "handlers.StepLayout")
		defer span.End()

		res, err := s.Step(ctx, n)
		if err != nil {
			tracing.Fail(span, err)
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stepResponse{Result: res, Stats: s.Stats()})
	}
}

// ReheatLayout handles POST /api/layout/reheat, restarting the cooling
// schedule.
func ReheatLayout(s Reheater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Reheat()
		writeJSON(w, http.StatusOK, s.Stats())
	}
}

// GetLayout handles GET /api/layout.
func GetLayout(s Stepper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.DocumentJSON()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeRawJSON(w, b)
	}
}

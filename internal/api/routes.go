package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/barnes-hut-tree/internal/api/handlers"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
	"github.com/onnwee/barnes-hut-tree/internal/middleware"
)

// Options wires the router. Service is required; the rest is optional.
type Options struct {
	Service *layout.Service
	// Hub receives /ws clients. Nil leaves /ws unregistered.
	Hub *handlers.Hub
	// RateLimiter guards every route except health and metrics probes.
	RateLimiter *middleware.RateLimiter
	// CORS defaults to middleware.DefaultCORSConfig.
	CORS            *middleware.CORSConfig
	EnableProfiling bool
}

// NewRouter builds the HTTP API over the layout service, with the
// middleware chain applied outermost so CORS preflights reach it before
// method matching.
func NewRouter(opts Options) http.Handler {
	s := opts.Service
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", handlers.Ready(s)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/nodes", handlers.CreateNode(s)).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{id}", handlers.GetNode(s)).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{id}", handlers.MoveNode(s)).Methods(http.MethodPut)
	api.HandleFunc("/nodes/{id}", handlers.DeleteNode(s)).Methods(http.MethodDelete)
	api.HandleFunc("/nodes/{id}/force", handlers.GetNodeForce(s)).Methods(http.MethodGet)

	api.HandleFunc("/edges", handlers.CreateEdge(s)).Methods(http.MethodPost)
	api.HandleFunc("/edges", handlers.DeleteEdge(s)).Methods(http.MethodDelete)

	// Large, version-keyed documents: conditional GETs and compression.
	api.Handle("/layout", cacheable(handlers.GetLayout(s))).Methods(http.MethodGet)
	api.Handle("/tree/snapshot", cacheable(handlers.TreeSnapshot(s))).Methods(http.MethodGet)
	api.Handle("/snapshots/latest", cacheable(handlers.LatestSnapshot(s))).Methods(http.MethodGet)

	api.HandleFunc("/layout/step", handlers.StepLayout(s)).Methods(http.MethodPost)
	api.HandleFunc("/layout/reheat", handlers.ReheatLayout(s)).Methods(http.MethodPost)
	api.HandleFunc("/tree/stats", handlers.TreeStats(s)).Methods(http.MethodGet)
	api.HandleFunc("/tree/validate", handlers.ValidateTree(s)).Methods(http.MethodGet)
	api.HandleFunc("/snapshots", handlers.CreateSnapshot(s)).Methods(http.MethodPost)

	if opts.Hub != nil {
		r.HandleFunc("/ws", handlers.NewWebSocketHandler(opts.Hub, s).HandleWebSocket).Methods(http.MethodGet)
	}
	if opts.EnableProfiling {
		r.PathPrefix("/debug/pprof/").Handler(handlers.Pprof())
	}

	cors := opts.CORS
	if cors == nil {
		cors = middleware.DefaultCORSConfig()
	}

	var h http.Handler = r
	h = middleware.ValidateRequestBody(h)
	if opts.RateLimiter != nil {
		opts.RateLimiter.Cost = stepCost
		h = skipProbes(opts.RateLimiter.Limit(h), r)
	}
	h = middleware.CORS(cors)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}

func cacheable(h http.Handler) http.Handler {
	return middleware.Compress(middleware.ETag(h))
}

// stepsPerToken is how many layout steps one rate-limit token buys.
const stepsPerToken = 100

// stepCost charges a layout step request one token plus one per
// stepsPerToken steps, so the largest request still fits the default
// per-IP burst.
func stepCost(r *http.Request) int {
	if r.Method != http.MethodPost || r.URL.Path != "/api/layout/step" {
		return 1
	}
	n, err := handlers.ParseSteps(r)
	if err != nil {
		// The handler rejects it; charge the minimum.
		return 1
	}
	return 1 + n/stepsPerToken
}

// skipProbes sends health checks and metrics scrapes straight to direct.
func skipProbes(limited, direct http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ready", "/metrics":
			direct.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument records request counts and latencies by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		if endpoint == "/ws" {
			// Hijacked connections have no meaningful duration or status.
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.APIRequestDuration.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
		metrics.APIRequestsTotal.WithLabelValues(endpoint, r.Method, status).Inc()
	})
}

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/onnwee/barnes-hut-tree/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	ListenAddr string
	Env        string
	LogLevel   string // debug, info, warn, error

	// Layout engine
	LayoutDims         int
	LayoutK            float64 // ideal edge length
	LayoutC            float64 // relative repulsion strength
	LayoutTheta        float64 // Barnes-Hut opening angle; 0 is exact
	LayoutMinHalfWidth float64 // below this a leaf stops splitting
	LayoutHalfWidth    float64 // initial bounds half-width around the origin
	LayoutIterations   int     // cooling schedule: steps until the temperature reaches zero
	LayoutStepInterval time.Duration
	LayoutMaxStep      float64 // initial temperature: cap on a node's move per step

	// Snapshot cache
	CacheMaxMB      int
	CacheMaxEntries int
	CacheTTL        time.Duration

	// Persistence
	DatabaseURL       string
	SnapshotEvery     int // persist a layout snapshot every N background steps; 0 disables
	SnapshotRetention int // snapshots kept by the pruning pass

	// Security settings
	RateLimitGlobal      float64 // requests per second globally
	RateLimitGlobalBurst int
	RateLimitPerIP       float64 // requests per second per IP
	RateLimitPerIPBurst  int
	EnableRateLimit      bool
	CORSAllowedOrigins   []string

	// Observability settings
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64 // 0.0 to 1.0
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64 // 0.0 to 1.0
	EnableProfiling   bool    // mounts /debug/pprof
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		ListenAddr: strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		Env:        strings.TrimSpace(os.Getenv("ENV")),
		LogLevel:   strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),

		LayoutDims:         utils.GetEnvAsInt("LAYOUT_DIMS", 2),
		LayoutK:            utils.GetEnvAsFloat("LAYOUT_K", 1.0),
		LayoutC:            utils.GetEnvAsFloat("LAYOUT_C", 0.2),
		LayoutTheta:        utils.GetEnvAsFloat("LAYOUT_THETA", 0.5),
		LayoutMinHalfWidth: utils.GetEnvAsFloat("LAYOUT_MIN_HALF_WIDTH", 1e-8),
		LayoutHalfWidth:    utils.GetEnvAsFloat("LAYOUT_HALF_WIDTH", 100),
		LayoutIterations:   utils.GetEnvAsInt("LAYOUT_ITERATIONS", 50),
		LayoutStepInterval: time.Duration(utils.GetEnvAsInt("LAYOUT_STEP_INTERVAL_MS", 0)) * time.Millisecond,
		LayoutMaxStep:      utils.GetEnvAsFloat("LAYOUT_MAX_STEP", 10),

		CacheMaxMB:      utils.GetEnvAsInt("CACHE_MAX_MB", 64),
		CacheMaxEntries: utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 1000),
		CacheTTL:        time.Duration(utils.GetEnvAsInt("CACHE_TTL_SECONDS", 5)) * time.Second,

		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SnapshotEvery:     utils.GetEnvAsInt("SNAPSHOT_EVERY", 0),
		SnapshotRetention: utils.GetEnvAsInt("SNAPSHOT_RETENTION", 20),

		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),

		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		EnableProfiling:   utils.GetEnvAsBool("ENABLE_PROFILING", false),
	}
	if cached.ListenAddr == "" {
		cached.ListenAddr = ":8000"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if cached.Env != "" {
			cached.SentryEnvironment = cached.Env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	origins := utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}, ",")
	cached.CORSAllowedOrigins = make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cached.CORSAllowedOrigins = append(cached.CORSAllowedOrigins, o)
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Validate reports every layout setting the engine would reject.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key string, v any) {
		errs = append(errs, fmt.Errorf("%w: %s=%v", ErrInvalid, key, v))
	}
	if c.LayoutDims < 1 || c.LayoutDims > 8 {
		bad("LAYOUT_DIMS", c.LayoutDims)
	}
	if !positive(c.LayoutK) {
		bad("LAYOUT_K", c.LayoutK)
	}
	if !positive(c.LayoutC) {
		bad("LAYOUT_C", c.LayoutC)
	}
	if c.LayoutTheta < 0 || math.IsNaN(c.LayoutTheta) || math.IsInf(c.LayoutTheta, 0) {
		bad("LAYOUT_THETA", c.LayoutTheta)
	}
	if !positive(c.LayoutMinHalfWidth) {
		bad("LAYOUT_MIN_HALF_WIDTH", c.LayoutMinHalfWidth)
	}
	if !positive(c.LayoutHalfWidth) {
		bad("LAYOUT_HALF_WIDTH", c.LayoutHalfWidth)
	}
	if c.LayoutIterations < 1 {
		bad("LAYOUT_ITERATIONS", c.LayoutIterations)
	}
	if !positive(c.LayoutMaxStep) {
		bad("LAYOUT_MAX_STEP", c.LayoutMaxStep)
	}
	if c.SnapshotEvery < 0 {
		bad("SNAPSHOT_EVERY", c.SnapshotEvery)
	}
	return errors.Join(errs...)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

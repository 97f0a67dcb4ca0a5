// Package server assembles the layout service, its optional snapshot store
// and the HTTP API into one process.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onnwee/barnes-hut-tree/internal/api"
	"github.com/onnwee/barnes-hut-tree/internal/api/handlers"
	"github.com/onnwee/barnes-hut-tree/internal/cache"
	"github.com/onnwee/barnes-hut-tree/internal/circuitbreaker"
	"github.com/onnwee/barnes-hut-tree/internal/config"
	"github.com/onnwee/barnes-hut-tree/internal/db"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
	"github.com/onnwee/barnes-hut-tree/internal/middleware"
	"github.com/onnwee/barnes-hut-tree/internal/secrets"
)

const (
	shutdownTimeout  = 15 * time.Second
	collectInterval  = 15 * time.Second
	breakerTimeout   = 30 * time.Second
	migrationTimeout = 30 * time.Second
)

type Server struct {
	cfg *config.Config
	log *slog.Logger

	Service *layout.Service
	Hub     *handlers.Hub

	sqlDB     *sql.DB
	cache     *cache.LRUCache
	limiter   *middleware.RateLimiter
	job       *layout.Job
	collector *metrics.Collector
	handler   http.Handler
}

// New builds a server from cfg. With DATABASE_URL set it connects,
// migrates and restores the newest stored layout; otherwise the layout
// lives only in memory.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SnapshotEvery > 0 {
		if err := secrets.RequireEnv("DATABASE_URL"); err != nil {
			return nil, fmt.Errorf("SNAPSHOT_EVERY needs a database: %w", err)
		}
	}

	s := &Server{cfg: cfg, log: logger.WithComponent("server")}

	params := layout.ParamsFromConfig(cfg)
	engine, err := layout.NewEngine(params)
	if err != nil {
		return nil, err
	}

	lru, err := cache.NewLRU(int64(cfg.CacheMaxMB), int64(cfg.CacheMaxEntries), cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	s.cache = lru
	opts := layout.ServiceOptions{Cache: lru, Retention: cfg.SnapshotRetention}

	if cfg.DatabaseURL != "" {
		s.log.Info("Connecting to snapshot store", "database_url", secrets.MaskURL(cfg.DatabaseURL))
		sqlDB, queries, err := db.Init(cfg.DatabaseURL)
		if err != nil {
			lru.Close()
			return nil, fmt.Errorf("connect to snapshot store: %w", err)
		}
		mctx, cancel := context.WithTimeout(ctx, migrationTimeout)
		err = db.Migrate(mctx, sqlDB)
		cancel()
		if err != nil {
			sqlDB.Close()
			lru.Close()
			return nil, fmt.Errorf("migrate snapshot store: %w", err)
		}
		s.sqlDB = sqlDB
		opts.Store = queries
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
			Name:             "snapshot_store",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          breakerTimeout,
		})
	}
	s.Service = layout.NewService(engine, opts)

	if s.Service.HasStore() {
		n, err := s.Service.Restore(ctx)
		switch {
		case errors.Is(err, layout.ErrNoSnapshot):
			s.log.Info("No stored layout, starting empty")
		case err != nil:
			// A bad snapshot should not keep the API down.
			s.log.Warn("Failed to restore layout", "error", err)
		default:
			s.log.Info("Restored layout", "nodes", humanize.Comma(int64(n)))
		}
	}

	s.Hub = handlers.NewHub()
	s.job = layout.NewJob(s.Service, layout.JobOptions{
		Interval:      cfg.LayoutStepInterval,
		SnapshotEvery: cfg.SnapshotEvery,
		Publisher:     s.Hub,
	})

	var counter metrics.SnapshotCounter
	if s.Service.HasStore() {
		counter = s.Service
	}
	s.collector = metrics.NewCollector(s.Service, counter, collectInterval)

	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}
	s.handler = api.NewRouter(api.Options{
		Service:         s.Service,
		Hub:             s.Hub,
		RateLimiter:     s.limiter,
		CORS:            middleware.CORSFromOrigins(cfg.CORSAllowedOrigins),
		EnableProfiling: cfg.EnableProfiling,
	})
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves HTTP and the background loops until ctx is done, then shuts
// down gracefully and persists a final snapshot when a store is set.
func (s *Server) Run(ctx context.Context) error {
	bg, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	go s.Hub.Run(bg)
	go s.job.Start(bg)
	go s.collector.Start(bg)

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", "addr", s.cfg.ListenAddr,
			"dims", s.cfg.LayoutDims, "theta", s.cfg.LayoutTheta, "store", s.Service.HasStore())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.Close()
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopBackground()

	if s.Service.HasStore() {
		if row, err := s.Service.Persist(shutdownCtx); err != nil {
			s.log.Warn("Final snapshot failed", "error", err)
		} else {
			s.log.Info("Final snapshot stored", "id", row.ID, "nodes", row.NodeCount)
		}
	}
	s.Close()
	return nil
}

// Close releases the cache, rate limiter and database pool.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.sqlDB != nil {
		if err := s.sqlDB.Close(); err != nil {
			s.log.Warn("Closing database failed", "error", err)
		}
	}
}

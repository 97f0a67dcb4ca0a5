package layout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sqlc-dev/pqtype"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/cache"
	"github.com/onnwee/barnes-hut-tree/internal/circuitbreaker"
	"github.com/onnwee/barnes-hut-tree/internal/db"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
	"github.com/onnwee/barnes-hut-tree/internal/tracing"
)

var (
	ErrNoStore    = errors.New("layout: no snapshot store configured")
	ErrNoSnapshot = errors.New("layout: no snapshot stored")
)

// SnapshotStore persists layout snapshots. *db.Queries implements it.
type SnapshotStore interface {
	InsertLayoutSnapshot(ctx context.Context, arg db.InsertLayoutSnapshotParams) (db.LayoutSnapshot, error)
	GetLatestLayoutSnapshot(ctx context.Context) (db.LayoutSnapshot, error)
	DeleteOldLayoutSnapshots(ctx context.Context, keep int32) (int64, error)
	CountLayoutSnapshots(ctx context.Context) (int64, error)
}

// Document is the persisted and streamed form of a layout.
type Document struct {
	Version uint64               `json:"version"`
	Dims    int                  `json:"dims"`
	Nodes   map[string][]float64 `json:"nodes"`
	Edges   [][2]string          `json:"edges"`
}

// Node is the API view of one node.
type Node struct {
	ID        string    `json:"id"`
	Position  []float64 `json:"position"`
	Degree    int       `json:"degree"`
	Neighbors []string  `json:"neighbors"`
}

type ServiceOptions struct {
	// Cache holds rendered snapshots keyed by engine version. Nil disables
	// caching.
	Cache cache.Cache
	// Store persists snapshots. Nil disables persistence.
	Store SnapshotStore
	// Breaker guards Store. Nil calls Store directly.
	Breaker *circuitbreaker.CircuitBreaker
	// Retention is how many stored snapshots pruning keeps. Zero keeps all.
	Retention int
}

// Service is the concurrency-safe front of an Engine.
type Service struct {
	mu     sync.RWMutex
	engine *Engine

	cache     cache.Cache
	store     SnapshotStore
	breaker   *circuitbreaker.CircuitBreaker
	retention int

	totalSteps int64
	lastEnergy float64
	log        *slog.Logger
}

func NewService(engine *Engine, opts ServiceOptions) *Service {
	return &Service{
		engine:    engine,
		cache:     opts.Cache,
		store:     opts.Store,
		breaker:   opts.Breaker,
		retention: opts.Retention,
		log:       logger.WithComponent("layout"),
	}
}

// HasStore reports whether snapshots can be persisted.
func (s *Service) HasStore() bool { return s.store != nil }

func (s *Service) nodeLocked(id string) (Node, error) {
	p, ok := s.engine.Position(id)
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return Node{ID: id, Position: p, Degree: s.engine.Degree(id), Neighbors: s.engine.Neighbors(id)}, nil
}

func (s *Service) recordStructure() {
	metrics.LayoutEdges.Set(float64(s.engine.EdgeCount()))
	metrics.RecordTreeStats(s.engine.TreeStats())
}

// AddNode inserts a node; a nil pos places it at random.
func (s *Service) AddNode(ctx context.Context, id string, pos []float64) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.AddNode(id, pos); err != nil {
		return Node{}, err
	}
	metrics.TreeOperations.WithLabelValues("push").Inc()
	s.recordStructure()
	logger.DebugContext(logger.WithNodeID(ctx, id), "Node added")
	return s.nodeLocked(id)
}

func (s *Service) MoveNode(ctx context.Context, id string, pos []float64) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.MoveNode(id, pos); err != nil {
		return Node{}, err
	}
	metrics.TreeOperations.WithLabelValues("update").Inc()
	logger.DebugContext(logger.WithNodeID(ctx, id), "Node moved")
	return s.nodeLocked(id)
}

func (s *Service) RemoveNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.RemoveNode(id); err != nil {
		return err
	}
	metrics.TreeOperations.WithLabelValues("remove").Inc()
	s.recordStructure()
	logger.DebugContext(logger.WithNodeID(ctx, id), "Node removed")
	return nil
}

func (s *Service) Node(id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeLocked(id)
}

func (s *Service) AddEdge(a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.AddEdge(a, b); err != nil {
		return err
	}
	metrics.LayoutEdges.Set(float64(s.engine.EdgeCount()))
	return nil
}

func (s *Service) RemoveEdge(a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.RemoveEdge(a, b); err != nil {
		return err
	}
	metrics.LayoutEdges.Set(float64(s.engine.EdgeCount()))
	return nil
}

// Force returns the approximate repulsive displacement on id.
func (s *Service) Force(id string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Force(id)
}

// Step runs up to n layout steps and returns the last result.
func (s *Service) Step(ctx context.Context, n int) (StepResult, error) {
	if n < 1 {
		n = 1
	}
	ctx, span := tracing.StartSpan(ctx, "layout.Step")
	defer span.End()

	start := time.Now()
	s.mu.Lock()
	var (
		res   StepResult
		err   error
		ran   int
		moved int
	)
	for ran < n {
		res, err = s.engine.Step(ctx)
		moved += res.Moved
		if err != nil || res.Converged {
			break
		}
		ran++
	}
	s.totalSteps += int64(ran)
	if ran > 0 {
		s.lastEnergy = res.Energy
	}
	stats := s.engine.TreeStats()
	s.mu.Unlock()

	span.SetAttributes(tracing.TreeAttributes(stats)...)
	span.SetAttributes(
		attribute.Int("layout.steps", ran),
		attribute.Int("layout.moved", moved),
		attribute.Float64("layout.temperature", res.Temperature),
	)
	metrics.TreeOperations.WithLabelValues("update").Add(float64(moved))
	metrics.RecordTreeStats(stats)
	if err != nil {
		tracing.Fail(span, err)
		metrics.LayoutStepsTotal.WithLabelValues("failed").Inc()
		return res, err
	}
	if ran > 0 {
		metrics.LayoutStepsTotal.WithLabelValues("success").Add(float64(ran))
		metrics.LayoutStepDuration.Observe(time.Since(start).Seconds() / float64(ran))
		metrics.LayoutEnergy.Set(res.Energy)
	}
	metrics.LayoutTemperature.Set(res.Temperature)
	return res, nil
}

// Reheat restarts the cooling schedule.
func (s *Service) Reheat() {
	s.mu.Lock()
	s.engine.Reheat()
	s.mu.Unlock()
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Stats()
}

// TreeStats reports the tree's shape for the metrics collector.
func (s *Service) TreeStats() bhtree.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.TreeStats()
}

// Version returns the engine version.
func (s *Service) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Version()
}

// Validate checks every tree and index invariant.
func (s *Service) Validate() error {
	s.mu.RLock()
	err := s.engine.Validate()
	s.mu.RUnlock()
	if err != nil {
		metrics.TreeInvariantFailures.Inc()
		s.log.Error("Layout validation failed", "error", err)
	}
	return err
}

func (s *Service) documentLocked() Document {
	return Document{
		Version: s.engine.Version(),
		Dims:    s.engine.Params().Dims,
		Nodes:   s.engine.Positions(),
		Edges:   s.engine.Edges(),
	}
}

// Document returns the current layout.
func (s *Service) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentLocked()
}

// DocumentJSON returns the encoded layout, cached per version.
func (s *Service) DocumentJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cache.GetOrLoad(s.cache, "layout", cache.Key("layout", s.engine.Version()), func() ([]byte, error) {
		return json.Marshal(s.documentLocked())
	})
}

// TreeSnapshotJSON returns the encoded tree snapshot, cached per version.
func (s *Service) TreeSnapshotJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cache.GetOrLoad(s.cache, "tree_snapshot", cache.Key("tree", s.engine.Version()), func() ([]byte, error) {
		return s.engine.Snapshot().Marshal()
	})
}

// storeCall runs fn against the store through the breaker and records its
// duration and failures under operation.
func (s *Service) storeCall(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	var err error
	if s.breaker != nil {
		err = s.breaker.CallContext(ctx, fn)
	} else {
		err = fn(ctx)
	}
	metrics.DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.DBOperationErrors.WithLabelValues(operation).Inc()
	}
	return err
}

// Persist stores the current layout and its tree snapshot, then prunes
// old snapshots down to the retention limit.
func (s *Service) Persist(ctx context.Context) (db.LayoutSnapshot, error) {
	if s.store == nil {
		return db.LayoutSnapshot{}, ErrNoStore
	}
	ctx, span := tracing.StartSpan(ctx, "layout.Persist")
	defer span.End()

	s.mu.RLock()
	doc := s.documentLocked()
	treeJSON, err := s.engine.Snapshot().Marshal()
	params := db.InsertLayoutSnapshotParams{
		Step:      s.totalSteps,
		Version:   int64(doc.Version),
		Dims:      int32(doc.Dims),
		NodeCount: int32(len(doc.Nodes)),
		Energy:    s.lastEnergy,
	}
	s.mu.RUnlock()
	if err != nil {
		tracing.Fail(span, err)
		return db.LayoutSnapshot{}, fmt.Errorf("layout: encode tree: %w", err)
	}
	if params.Positions, err = json.Marshal(doc); err != nil {
		tracing.Fail(span, err)
		return db.LayoutSnapshot{}, fmt.Errorf("layout: encode document: %w", err)
	}
	params.Tree = pqtype.NullRawMessage{RawMessage: treeJSON, Valid: true}

	var row db.LayoutSnapshot
	err = s.storeCall(ctx, "insert_layout_snapshot", func(ctx context.Context) error {
		var err error
		row, err = s.store.InsertLayoutSnapshot(ctx, params)
		return err
	})
	if err != nil {
		tracing.Fail(span, err)
		return db.LayoutSnapshot{}, fmt.Errorf("layout: store snapshot: %w", err)
	}
	span.SetAttributes(attribute.Int64("layout.snapshot_id", row.ID))

	if s.retention > 0 {
		var pruned int64
		err := s.storeCall(ctx, "delete_old_layout_snapshots", func(ctx context.Context) error {
			var err error
			pruned, err = s.store.DeleteOldLayoutSnapshots(ctx, int32(s.retention))
			return err
		})
		if err != nil {
			s.log.Warn("Failed to prune layout snapshots", "error", err)
		} else if pruned > 0 {
			s.log.Debug("Pruned layout snapshots", "deleted", pruned, "kept", s.retention)
		}
	}
	return row, nil
}

// LatestSnapshot returns the newest stored snapshot.
func (s *Service) LatestSnapshot(ctx context.Context) (db.LayoutSnapshot, error) {
	if s.store == nil {
		return db.LayoutSnapshot{}, ErrNoStore
	}
	var row db.LayoutSnapshot
	err := s.storeCall(ctx, "get_latest_layout_snapshot", func(ctx context.Context) error {
		var err error
		row, err = s.store.GetLatestLayoutSnapshot(ctx)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return db.LayoutSnapshot{}, ErrNoSnapshot
	}
	return row, err
}

// CountLayoutSnapshots reports how many snapshots are stored.
func (s *Service) CountLayoutSnapshots(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, ErrNoStore
	}
	var n int64
	err := s.storeCall(ctx, "count_layout_snapshots", func(ctx context.Context) error {
		var err error
		n, err = s.store.CountLayoutSnapshots(ctx)
		return err
	})
	return n, err
}

// Restore replaces the layout with the newest stored snapshot. Nodes are
// re-added in id order so their tree indices are deterministic.
func (s *Service) Restore(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "layout.Restore")
	defer span.End()

	row, err := s.LatestSnapshot(ctx)
	if err != nil {
		tracing.Fail(span, err)
		return 0, err
	}
	var doc Document
	if err := json.Unmarshal(row.Positions, &doc); err != nil {
		tracing.Fail(span, err)
		return 0, fmt.Errorf("layout: decode snapshot %d: %w", row.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	params := s.engine.Params()
	if doc.Dims != params.Dims {
		err := fmt.Errorf("layout: snapshot %d has %d dims, engine has %d: %w",
			row.ID, doc.Dims, params.Dims, bhtree.ErrDimensionMismatch)
		tracing.Fail(span, err)
		return 0, err
	}
	engine, err := NewEngine(params)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(doc.Nodes))
	for id := range doc.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := engine.AddNode(id, doc.Nodes[id]); err != nil {
			tracing.Fail(span, err)
			return 0, err
		}
	}
	for _, e := range doc.Edges {
		if err := engine.AddEdge(e[0], e[1]); err != nil {
			tracing.Fail(span, err)
			return 0, err
		}
	}
	// Keep versions increasing so cached renders of the old layout never match.
	engine.version += s.engine.version
	s.engine = engine
	if s.cache != nil {
		s.cache.Clear()
	}
	s.totalSteps = row.Step
	s.lastEnergy = row.Energy
	s.recordStructure()
	span.SetAttributes(attribute.Int64("layout.snapshot_id", row.ID), attribute.Int("layout.nodes", len(ids)))
	s.log.Info("Layout restored from snapshot", "snapshot_id", row.ID, "nodes", len(ids), "edges", len(doc.Edges))
	return len(ids), nil
}

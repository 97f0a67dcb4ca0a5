package metrics

import (
	"context"
	"time"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
)

// TreeStatser reports the shape of the live layout tree.
type TreeStatser interface {
	TreeStats() bhtree.Stats
}

// SnapshotCounter counts persisted layout snapshots.
type SnapshotCounter interface {
	CountLayoutSnapshots(ctx context.Context) (int64, error)
}

// Collector periodically collects and updates Prometheus metrics
type Collector struct {
	tree      TreeStatser
	snapshots SnapshotCounter // nil when persistence is disabled
	interval  time.Duration
	stop      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(tree TreeStatser, snapshots SnapshotCounter, interval time.Duration) *Collector {
	return &Collector{
		tree:      tree,
		snapshots: snapshots,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// Collect runs one collection pass.
func (c *Collector) Collect(ctx context.Context) {
	RecordTreeStats(c.tree.TreeStats())
	c.collectSnapshotCount(ctx)
}

// RecordTreeStats publishes a tree shape to the tree gauges.
func RecordTreeStats(s bhtree.Stats) {
	TreePoints.Set(float64(s.Points))
	TreeNodes.WithLabelValues("leaf").Set(float64(s.Leaves))
	TreeNodes.WithLabelValues("internal").Set(float64(s.Internals))
	TreeDepth.Set(float64(s.Depth))
	TreeHalfWidth.Set(s.HalfWidth)
}

func (c *Collector) collectSnapshotCount(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	n, err := c.snapshots.CountLayoutSnapshots(ctx)
	if err != nil {
		logger.WarnContext(ctx, "counting layout snapshots failed", "error", err)
		MetricsCollectionErrors.WithLabelValues("snapshots").Inc()
		LayoutSnapshotsStored.Set(-1) // Signal stale data
		return
	}
	LayoutSnapshotsStored.Set(float64(n))
}

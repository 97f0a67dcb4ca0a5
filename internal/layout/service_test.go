package layout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/barnes-hut-tree/internal/cache"
	"github.com/onnwee/barnes-hut-tree/internal/circuitbreaker"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
	"github.com/onnwee/barnes-hut-tree/internal/snapshot"
)

func newTestService(t *testing.T, opts ServiceOptions) *Service {
	t.Helper()
	return NewService(newTestEngine(t, testParams()), opts)
}

func seedService(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d"} {
		if _, err := s.AddNode(ctx, id, []float64{float64(i), float64(i * i)}); err != nil {
			t.Fatalf("AddNode(%q): %v", id, err)
		}
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		if err := s.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
}

func TestServiceNodeLifecycle(t *testing.T) {
	s := newTestService(t, ServiceOptions{})
	ctx := context.Background()
	seedService(t, s)

	n, err := s.Node("b")
	if err != nil {
		t.Fatalf("Node(b): %v", err)
	}
	if n.Degree != 2 || len(n.Neighbors) != 2 || n.Neighbors[0] != "a" {
		t.Errorf("Node(b) = %+v", n)
	}
	moved, err := s.MoveNode(ctx, "b", []float64{9, 9})
	if err != nil || moved.Position[0] != 9 {
		t.Fatalf("MoveNode = %+v, %v", moved, err)
	}
	if err := s.RemoveNode(ctx, "b"); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if _, err := s.Node("b"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Node(removed) = %v", err)
	}
	if got := testutil.ToFloat64(metrics.LayoutEdges); got != 1 {
		t.Errorf("layout_edges = %v, want 1", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestServiceStep(t *testing.T) {
	s := newTestService(t, ServiceOptions{})
	seedService(t, s)
	before := testutil.ToFloat64(metrics.LayoutStepsTotal.WithLabelValues("success"))

	res, err := s.Step(context.Background(), 5)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Moved == 0 {
		t.Error("no node moved")
	}
	if got := testutil.ToFloat64(metrics.LayoutStepsTotal.WithLabelValues("success")); got != before+5 {
		t.Errorf("steps counter = %v, want %v", got, before+5)
	}
	if got := testutil.ToFloat64(metrics.TreePoints); got != 4 {
		t.Errorf("bhtree_points = %v, want 4", got)
	}
	if st := s.Stats(); st.Step != 5 {
		t.Errorf("engine at step %d, want 5", st.Step)
	}
}

func TestServiceRendersAreCachedPerVersion(t *testing.T) {
	c := cache.NewMockCache()
	s := newTestService(t, ServiceOptions{Cache: c})
	seedService(t, s)

	first, err := s.TreeSnapshotJSON()
	if err != nil {
		t.Fatalf("TreeSnapshotJSON: %v", err)
	}
	if _, err := s.TreeSnapshotJSON(); err != nil {
		t.Fatal(err)
	}
	if st := c.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("cache stats after two reads = %+v", st)
	}
	snap, err := snapshot.Parse(first)
	if err != nil || snap.Dim != 2 {
		t.Fatalf("Parse = %+v, %v", snap, err)
	}

	if _, err := s.MoveNode(context.Background(), "a", []float64{-3, -3}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TreeSnapshotJSON(); err != nil {
		t.Fatal(err)
	}
	if st := c.Stats(); st.Misses != 2 {
		t.Errorf("move did not invalidate: %+v", st)
	}

	raw, err := s.DocumentJSON()
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 4 || len(doc.Edges) != 3 || doc.Version != s.Version() {
		t.Errorf("document = %+v", doc)
	}
}

func TestServicePersistAndRestore(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(t, ServiceOptions{Store: store, Retention: 2})
	seedService(t, s)
	ctx := context.Background()
	if _, err := s.Step(ctx, 3); err != nil {
		t.Fatal(err)
	}

	for k := 0; k < 3; k++ {
		row, err := s.Persist(ctx)
		if err != nil {
			t.Fatalf("Persist: %v", err)
		}
		if !row.Tree.Valid || row.NodeCount != 4 || row.Step != 3 {
			t.Errorf("row = %+v", row)
		}
	}
	if store.len() != 2 {
		t.Errorf("%d rows after pruning, want 2", store.len())
	}
	if n, err := s.CountLayoutSnapshots(ctx); err != nil || n != 2 {
		t.Errorf("CountLayoutSnapshots = %d, %v", n, err)
	}

	want := s.Document()
	restored := newTestService(t, ServiceOptions{Store: store})
	n, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 4 {
		t.Errorf("restored %d nodes, want 4", n)
	}
	got := restored.Document()
	for id, p := range want.Nodes {
		q := got.Nodes[id]
		if len(q) != 2 || q[0] != p[0] || q[1] != p[1] {
			t.Errorf("node %s restored at %v, want %v", id, q, p)
		}
	}
	if len(got.Edges) != len(want.Edges) {
		t.Errorf("edges = %v, want %v", got.Edges, want.Edges)
	}
	if err := restored.Validate(); err != nil {
		t.Errorf("Validate after restore: %v", err)
	}
}

func TestServiceWithoutSnapshots(t *testing.T) {
	ctx := context.Background()
	none := newTestService(t, ServiceOptions{})
	if _, err := none.Persist(ctx); !errors.Is(err, ErrNoStore) {
		t.Errorf("Persist without store = %v", err)
	}
	if _, err := none.LatestSnapshot(ctx); !errors.Is(err, ErrNoStore) {
		t.Errorf("LatestSnapshot without store = %v", err)
	}

	empty := newTestService(t, ServiceOptions{Store: &fakeStore{}})
	if _, err := empty.LatestSnapshot(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("LatestSnapshot on empty store = %v", err)
	}
	if _, err := empty.Restore(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Restore on empty store = %v", err)
	}
}

func TestServiceBreakerOpens(t *testing.T) {
	store := &fakeStore{err: errStoreDown}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "layout_store_test",
		FailureThreshold: 2,
		Timeout:          time.Hour,
	})
	s := newTestService(t, ServiceOptions{Store: store, Breaker: breaker})
	ctx := context.Background()

	for k := 0; k < 2; k++ {
		if _, err := s.Persist(ctx); !errors.Is(err, errStoreDown) {
			t.Fatalf("attempt %d: %v, want store error", k, err)
		}
	}
	if _, err := s.Persist(ctx); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("after threshold: %v, want ErrCircuitOpen", err)
	}
}

func TestServiceConcurrentAccess(t *testing.T) {
	s := newTestService(t, ServiceOptions{Cache: cache.NewMockCache()})
	seedService(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				switch (w + k) % 4 {
				case 0:
					_, _ = s.Step(ctx, 1)
				case 1:
					_, _ = s.TreeSnapshotJSON()
				case 2:
					_ = s.TreeStats()
				case 3:
					s.Reheat()
				}
			}
		}(w)
	}
	wg.Wait()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

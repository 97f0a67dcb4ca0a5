// Package layout runs an incremental force-directed graph layout whose
// node positions live in a bhtree.Tree. Repulsion comes from tree queries;
// attraction acts along edges.
package layout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/forces"
	"github.com/onnwee/barnes-hut-tree/internal/snapshot"
	"github.com/onnwee/barnes-hut-tree/internal/utils"
)

var (
	ErrNodeNotFound = errors.New("layout: node not found")
	ErrNodeExists   = errors.New("layout: node already exists")
	ErrEdgeNotFound = errors.New("layout: edge not found")
	ErrSelfLoop     = errors.New("layout: edge endpoints must differ")
)

// ctxCheckEvery is how many nodes Step visits between context checks.
const ctxCheckEvery = 256

// Engine owns the tree and the graph on top of it. It is not safe for
// concurrent use; Service adds the locking.
type Engine struct {
	params Params
	tree   *bhtree.Tree
	rng    *rand.Rand

	ids   []string       // tree index -> node id
	index map[string]int // node id -> tree index
	adj   map[string]map[string]struct{}
	edges int

	step    int
	version uint64

	far    bhtree.FarEnoughFunc
	repel  forces.Accumulator[forces.Energy]
	repelD forces.Accumulator[[]float64]
}

// StepResult describes one layout step.
type StepResult struct {
	Step            int           `json:"step"`
	Moved           int           `json:"moved"`
	Energy          float64       `json:"energy"`
	Temperature     float64       `json:"temperature"`
	MaxDisplacement float64       `json:"max_displacement"`
	Converged       bool          `json:"converged"`
	Duration        time.Duration `json:"duration_ns"`
}

// Stats summarizes the engine.
type Stats struct {
	Nodes       int          `json:"nodes"`
	Edges       int          `json:"edges"`
	Step        int          `json:"step"`
	Temperature float64      `json:"temperature"`
	Version     uint64       `json:"version"`
	Tree        bhtree.Stats `json:"tree"`
}

// NewEngine creates an empty layout.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tree, err := bhtree.New(bhtree.Config{
		Center:       make([]float64, p.Dims),
		HalfWidth:    p.HalfWidth,
		MinHalfWidth: p.MinHalfWidth,
	})
	if err != nil {
		return nil, fmt.Errorf("layout: new tree: %w", err)
	}
	return &Engine{
		params: p,
		tree:   tree,
		rng:    utils.NewRand(p.Seed),
		index:  make(map[string]int),
		adj:    make(map[string]map[string]struct{}),
		far:    forces.Theta(p.Theta),
		repel:  forces.RepulsionWithEnergy(p.K, p.C),
		repelD: forces.Repulsion(p.K, p.C),
	}, nil
}

func (e *Engine) Params() Params { return e.params }

// Len returns the number of nodes.
func (e *Engine) Len() int { return len(e.ids) }

// EdgeCount returns the number of undirected edges.
func (e *Engine) EdgeCount() int { return e.edges }

// Version increases on every change to positions or structure.
func (e *Engine) Version() uint64 { return e.version }

func (e *Engine) touch(structural bool) {
	e.version++
	if structural {
		// Structural changes restart the cooling schedule.
		e.step = 0
	}
}

// AddNode inserts a node. A nil pos places it uniformly at random inside
// the initial bounds.
func (e *Engine) AddNode(id string, pos []float64) error {
	if _, ok := e.index[id]; ok {
		return fmt.Errorf("%w: %q", ErrNodeExists, id)
	}
	if pos == nil {
		pos = utils.RandomPosition(e.rng, e.params.Dims, e.params.HalfWidth)
	}
	i, err := e.tree.Push(pos)
	if err != nil {
		return fmt.Errorf("layout: add %q: %w", id, err)
	}
	e.index[id] = i
	e.ids = append(e.ids, id)
	e.touch(true)
	return nil
}

// MoveNode sets a node's position.
func (e *Engine) MoveNode(id string, pos []float64) error {
	i, ok := e.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	if err := e.tree.Update(i, pos); err != nil {
		return fmt.Errorf("layout: move %q: %w", id, err)
	}
	e.touch(true)
	return nil
}

// RemoveNode deletes a node and its edges.
func (e *Engine) RemoveNode(id string) error {
	i, ok := e.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	for other := range e.adj[id] {
		delete(e.adj[other], id)
		if len(e.adj[other]) == 0 {
			delete(e.adj, other)
		}
		e.edges--
	}
	delete(e.adj, id)

	moved, relocated := e.tree.Remove(i)
	delete(e.index, id)
	last := len(e.ids) - 1
	if relocated {
		movedID := e.ids[moved]
		e.ids[i] = movedID
		e.index[movedID] = i
	}
	e.ids = e.ids[:last]
	e.touch(true)
	return nil
}

// AddEdge connects a and b. Adding an existing edge is a no-op.
func (e *Engine) AddEdge(a, b string) error {
	if a == b {
		return ErrSelfLoop
	}
	for _, id := range []string{a, b} {
		if _, ok := e.index[id]; !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
		}
	}
	if _, ok := e.adj[a][b]; ok {
		return nil
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set := e.adj[pair[0]]
		if set == nil {
			set = make(map[string]struct{})
			e.adj[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
	e.edges++
	e.touch(true)
	return nil
}

// RemoveEdge disconnects a and b.
func (e *Engine) RemoveEdge(a, b string) error {
	if _, ok := e.adj[a][b]; !ok {
		return fmt.Errorf("%w: %q-%q", ErrEdgeNotFound, a, b)
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		delete(e.adj[pair[0]], pair[1])
		if len(e.adj[pair[0]]) == 0 {
			delete(e.adj, pair[0])
		}
	}
	e.edges--
	e.touch(true)
	return nil
}

// Position returns a copy of a node's coordinates.
func (e *Engine) Position(id string) (bhtree.Vector, bool) {
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	p, _ := e.tree.Get(i)
	return p, true
}

// Degree returns the number of edges at id.
func (e *Engine) Degree(id string) int { return len(e.adj[id]) }

// Neighbors returns the ids connected to id, sorted.
func (e *Engine) Neighbors(id string) []string {
	out := make([]string, 0, len(e.adj[id]))
	for other := range e.adj[id] {
		out = append(out, other)
	}
	sort.Strings(out)
	return out
}

// Positions returns every node's coordinates keyed by id.
func (e *Engine) Positions() map[string][]float64 {
	out := make(map[string][]float64, len(e.ids))
	for i, id := range e.ids {
		p, _ := e.tree.Get(i)
		out[id] = p
	}
	return out
}

// Edges returns every edge once, with endpoints and list sorted.
func (e *Engine) Edges() [][2]string {
	out := make([][2]string, 0, e.edges)
	for a, set := range e.adj {
		for b := range set {
			if a < b {
				out = append(out, [2]string{a, b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Force returns the approximate repulsive displacement on id.
func (e *Engine) Force(id string) ([]float64, error) {
	i, ok := e.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	out, _ := forces.Apply(e.tree, i, e.far, e.repelD)
	return out, nil
}

// attraction adds |d|²/k along every edge at i into disp, pulling i toward
// its neighbors.
func (e *Engine) attraction(id string, p bhtree.Vector, disp []float64) {
	for other := range e.adj[id] {
		q, _ := e.tree.Get(e.index[other])
		d2 := p.DistanceSquared(q)
		if d2 < forces.MinDistanceSquared {
			continue
		}
		scale := math.Sqrt(d2) / e.params.K
		for d := range disp {
			disp[d] -= (p[d] - q[d]) * scale
		}
	}
}

// Step moves every node once. Each node's displacement is repulsion from a
// tree query plus attraction along its edges, capped in length by the
// current temperature, and its new position is written back before the
// next node is visited.
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	start := time.Now()
	res := StepResult{Step: e.step, Temperature: e.params.temperature(e.step)}
	if len(e.ids) == 0 || res.Temperature == 0 {
		res.Converged = true
		res.Duration = time.Since(start)
		return res, nil
	}

	acc := forces.NewEnergy(e.params.Dims)
	next := make([]float64, e.params.Dims)
	for i, id := range e.ids {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return e.abort(res), err
			}
		}
		for d := range acc.Displacement {
			acc.Displacement[d] = 0
		}
		bhtree.Accumulate[forces.Energy](e.tree, i, e.far, e.repel, &acc)

		p, _ := e.tree.Get(i)
		e.attraction(id, p, acc.Displacement)

		n := forces.Norm(acc.Displacement)
		if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		move := math.Min(n, res.Temperature)
		for d := range next {
			next[d] = p[d] + acc.Displacement[d]/n*move
		}
		if err := e.tree.Update(i, next); err != nil {
			return e.abort(res), fmt.Errorf("layout: step %q: %w", id, err)
		}
		res.Moved++
		if move > res.MaxDisplacement {
			res.MaxDisplacement = move
		}
	}
	res.Energy = acc.Energy

	e.step++
	if res.Moved > 0 {
		e.touch(false)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// abort finishes a partial step. Nodes already moved stay moved.
func (e *Engine) abort(res StepResult) StepResult {
	if res.Moved > 0 {
		e.touch(false)
	}
	return res
}

// Run steps up to n times, stopping early once converged. It returns the
// last result.
func (e *Engine) Run(ctx context.Context, n int) (StepResult, error) {
	var res StepResult
	for k := 0; k < n; k++ {
		var err error
		if res, err = e.Step(ctx); err != nil {
			return res, err
		}
		if res.Converged {
			break
		}
	}
	return res, nil
}

// Reheat restarts the cooling schedule.
func (e *Engine) Reheat() { e.step = 0 }

// Snapshot flattens the tree.
func (e *Engine) Snapshot() *snapshot.Snapshot { return snapshot.Take(e.tree) }

// TreeStats reports the tree's shape.
func (e *Engine) TreeStats() bhtree.Stats { return e.tree.Stats() }

func (e *Engine) Stats() Stats {
	return Stats{
		Nodes:       len(e.ids),
		Edges:       e.edges,
		Step:        e.step,
		Temperature: e.params.temperature(e.step),
		Version:     e.version,
		Tree:        e.tree.Stats(),
	}
}

// Validate checks the tree and the id maps against each other.
func (e *Engine) Validate() error {
	if err := e.tree.Validate(); err != nil {
		return err
	}
	if e.tree.Len() != len(e.ids) || len(e.index) != len(e.ids) {
		return fmt.Errorf("%w: %d points, %d ids, %d index entries",
			bhtree.ErrCorrupt, e.tree.Len(), len(e.ids), len(e.index))
	}
	for i, id := range e.ids {
		if e.index[id] != i {
			return fmt.Errorf("%w: id %q at %d indexed as %d", bhtree.ErrCorrupt, id, i, e.index[id])
		}
	}
	return nil
}

// BruteForceRepulsion returns the exact all-pairs repulsive displacement
// of every point.
func BruteForceRepulsion(pts []bhtree.Vector, k, c float64) [][]float64 {
	fn := forces.Repulsion(k, c)
	out := make([][]float64, len(pts))
	for i := range pts {
		out[i] = forces.BruteForce(pts, i, fn)
	}
	return out
}

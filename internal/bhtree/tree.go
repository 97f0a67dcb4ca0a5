package bhtree

import (
	"fmt"
	"math"
)

// MaxDimensions bounds D so that 2^D child slots stay reasonable.
const MaxDimensions = 8

// DefaultMinHalfWidth is the leaf half-width at or below which a leaf stops
// splitting and keeps every point it receives.
const DefaultMinHalfWidth = 1e-8

// Config describes a new tree.
type Config struct {
	// Center and HalfWidth give the initial covering box. The box grows on
	// demand, so it only needs to be a reasonable first guess.
	Center    []float64
	HalfWidth float64
	// MinHalfWidth is the leaf half-width threshold. Must be finite and > 0.
	MinHalfWidth float64
	// Capacity pre-sizes the point and node arenas.
	Capacity int
}

// DefaultConfig returns a config centered on the origin with half-width 1.
func DefaultConfig(dims int) Config {
	return Config{
		Center:       make([]float64, dims),
		HalfWidth:    1,
		MinHalfWidth: DefaultMinHalfWidth,
	}
}

func (c Config) validate() error {
	dims := len(c.Center)
	if dims < 1 || dims > MaxDimensions {
		return fmt.Errorf("%w: dimensions must be in [1, %d], got %d", ErrInvalidConfig, MaxDimensions, dims)
	}
	if _, err := NewVector(c.Center); err != nil {
		return fmt.Errorf("%w: center: %v", ErrInvalidConfig, err)
	}
	if math.IsNaN(c.HalfWidth) || math.IsInf(c.HalfWidth, 0) || c.HalfWidth <= 0 {
		return fmt.Errorf("%w: half-width must be finite and positive, got %v", ErrInvalidConfig, c.HalfWidth)
	}
	if math.IsNaN(c.MinHalfWidth) || math.IsInf(c.MinHalfWidth, 0) || c.MinHalfWidth <= 0 {
		return fmt.Errorf("%w: min half-width must be finite and positive, got %v", ErrInvalidConfig, c.MinHalfWidth)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be non-negative, got %d", ErrInvalidConfig, c.Capacity)
	}
	return nil
}

// Tree is an incremental Barnes-Hut tree.
type Tree struct {
	dims         int
	minHalfWidth float64

	// bounds always contains every stored point. While the root is a leaf
	// the two boxes are equal.
	bounds Box
	root   nodeRef

	points    []point
	leaves    []leaf
	internals []internal
}

// New creates an empty tree.
func New(cfg Config) (*Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	center, _ := NewVector(cfg.Center)
	return &Tree{
		dims:         len(center),
		minHalfWidth: cfg.MinHalfWidth,
		bounds:       newBox(center, cfg.HalfWidth),
		points:       make([]point, 0, cfg.Capacity),
		leaves:       make([]leaf, 0, cfg.Capacity),
		internals:    make([]internal, 0, cfg.Capacity),
	}, nil
}

// NewWithPoints creates a tree and inserts pts in order, so pts[i] gets index i.
func NewWithPoints(cfg Config, pts [][]float64) (*Tree, error) {
	if cfg.Capacity < len(pts) {
		cfg.Capacity = len(pts)
	}
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	for i, p := range pts {
		if _, err := t.Push(p); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return t, nil
}

func (t *Tree) checkCoords(coords []float64) (Vector, error) {
	if len(coords) != t.dims {
		return nil, fmt.Errorf("%w: want %d coordinates, got %d", ErrDimensionMismatch, t.dims, len(coords))
	}
	return NewVector(coords)
}

// Push stores p and returns its external index.
func (t *Tree) Push(p []float64) (int, error) {
	v, err := t.checkCoords(p)
	if err != nil {
		return 0, err
	}
	i := len(t.points)
	t.points = append(t.points, point{coords: v, leaf: -1, slot: -1})
	t.add(i)
	return i, nil
}

// Get returns a copy of the coordinates stored at i.
func (t *Tree) Get(i int) (Vector, bool) {
	if i < 0 || i >= len(t.points) {
		return nil, false
	}
	return t.points[i].coords.Clone(), true
}

// Update moves point i to p. The point is taken out of the tree and inserted
// again, so its new leaf is unrelated to the old one.
func (t *Tree) Update(i int, p []float64) error {
	if i < 0 || i >= len(t.points) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	v, err := t.checkCoords(p)
	if err != nil {
		return err
	}
	t.sub(i)
	t.points[i].coords.set(v)
	t.add(i)
	return nil
}

// Remove deletes point i. The last point is moved into slot i; its former
// index is returned with ok set. ok is false when i was the last index or is
// out of range, in which case no other point changed index.
func (t *Tree) Remove(i int) (moved int, ok bool) {
	if i < 0 || i >= len(t.points) {
		return 0, false
	}
	t.sub(i)
	last := len(t.points) - 1
	if i == last {
		t.points = t.points[:last]
		return 0, false
	}
	t.points[i] = t.points[last]
	t.points = t.points[:last]
	pt := t.points[i]
	t.leaves[pt.leaf].points[pt.slot] = i
	return last, true
}

// Len returns the number of stored points.
func (t *Tree) Len() int { return len(t.points) }

// Dims returns the tree's dimensionality.
func (t *Tree) Dims() int { return t.dims }

// MinHalfWidth returns the leaf split threshold.
func (t *Tree) MinHalfWidth() float64 { return t.minHalfWidth }

// NodeCount returns the number of leaf and internal nodes.
func (t *Tree) NodeCount() int { return len(t.leaves) + len(t.internals) }

// LeafCount returns the number of leaf nodes.
func (t *Tree) LeafCount() int { return len(t.leaves) }

// InternalCount returns the number of internal nodes.
func (t *Tree) InternalCount() int { return len(t.internals) }

// Bounds returns a copy of the covering box.
func (t *Tree) Bounds() Box { return t.bounds.Clone() }

// Stats summarizes the tree's shape.
type Stats struct {
	Points    int     `json:"points"`
	Nodes     int     `json:"nodes"`
	Leaves    int     `json:"leaves"`
	Internals int     `json:"internals"`
	Depth     int     `json:"depth"`
	MaxLeaf   int     `json:"max_leaf_points"`
	HalfWidth float64 `json:"half_width"`
	Center    Vector  `json:"center"`
}

// Stats walks the tree and reports its shape.
func (t *Tree) Stats() Stats {
	s := Stats{
		Points:    len(t.points),
		Nodes:     t.NodeCount(),
		Leaves:    len(t.leaves),
		Internals: len(t.internals),
		HalfWidth: t.bounds.HalfWidth,
		Center:    t.bounds.Center.Clone(),
	}
	t.Walk(func(n NodeInfo) bool {
		if n.Depth+1 > s.Depth {
			s.Depth = n.Depth + 1
		}
		if n.Kind == KindLeaf && len(n.Points) > s.MaxLeaf {
			s.MaxLeaf = len(n.Points)
		}
		return true
	})
	return s
}

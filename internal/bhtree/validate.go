package bhtree

import (
	"fmt"
	"math"
)

// centroidTolerance is the relative error accepted between a stored centroid
// and the mean recomputed from scratch.
const centroidTolerance = 1e-7

// Validate checks every structural and aggregate invariant of the tree and
// returns an error wrapping ErrCorrupt for the first violation. It recomputes
// all aggregates, so it costs O(n log n) and is meant for tests and debug
// endpoints.
func (t *Tree) Validate() error {
	v := validator{t: t, seenLeaves: make([]bool, len(t.leaves)), seenInternals: make([]bool, len(t.internals))}
	return v.run()
}

type validator struct {
	t             *Tree
	seenLeaves    []bool
	seenInternals []bool
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

func (v *validator) run() error {
	t := v.t
	for i, pt := range t.points {
		if !containsClose(t.bounds, pt.coords) {
			return corruptf("point %d %v outside covering box", i, pt.coords)
		}
		if pt.leaf < 0 || pt.leaf >= len(t.leaves) {
			return corruptf("point %d has no leaf", i)
		}
		lf := &t.leaves[pt.leaf]
		if pt.slot < 0 || pt.slot >= len(lf.points) || lf.points[pt.slot] != i {
			return corruptf("point %d back-reference (%d, %d) is stale", i, pt.leaf, pt.slot)
		}
	}

	switch t.root.kind {
	case refNone:
		if len(t.points) != 0 || t.NodeCount() != 0 {
			return corruptf("empty root with %d points and %d nodes", len(t.points), t.NodeCount())
		}
		return nil
	case refLeaf:
		lf := &t.leaves[t.root.idx]
		if lf.parent != noParent {
			return corruptf("root leaf %d has parent %d", t.root.idx, lf.parent)
		}
		if !boxClose(lf.box, t.bounds) {
			return corruptf("root leaf box %v differs from covering box %v", lf.box, t.bounds)
		}
	case refInternal:
		if p := t.internals[t.root.idx].parent; p != noParent {
			return corruptf("root internal %d has parent %d", t.root.idx, p)
		}
	}

	_, count, err := v.node(t.root, noParent, 0)
	if err != nil {
		return err
	}
	if count != len(t.points) {
		return corruptf("tree holds %d points, want %d", count, len(t.points))
	}
	for i, ok := range v.seenLeaves {
		if !ok {
			return corruptf("leaf %d is unreachable", i)
		}
	}
	for i, ok := range v.seenInternals {
		if !ok {
			return corruptf("internal %d is unreachable", i)
		}
	}
	return nil
}

// node checks the subtree at ref and returns the coordinate sum and count of
// its points.
func (v *validator) node(ref nodeRef, parent, octant int) (Vector, int, error) {
	t := v.t
	switch ref.kind {
	case refLeaf:
		if ref.idx >= len(t.leaves) || v.seenLeaves[ref.idx] {
			return nil, 0, corruptf("leaf %d referenced twice or out of range", ref.idx)
		}
		v.seenLeaves[ref.idx] = true
		lf := &t.leaves[ref.idx]
		if err := v.link(parent, octant, lf.parent, lf.octant, lf.box, "leaf", ref.idx); err != nil {
			return nil, 0, err
		}
		if len(lf.points) == 0 {
			return nil, 0, corruptf("leaf %d is empty", ref.idx)
		}
		if len(lf.points) > 1 && lf.box.HalfWidth > t.minHalfWidth {
			return nil, 0, corruptf("leaf %d holds %d points at half-width %v", ref.idx, len(lf.points), lf.box.HalfWidth)
		}
		sum := make(Vector, t.dims)
		for slot, pi := range lf.points {
			pt := &t.points[pi]
			if pt.leaf != ref.idx || pt.slot != slot {
				return nil, 0, corruptf("leaf %d slot %d holds point %d pointing at (%d, %d)", ref.idx, slot, pi, pt.leaf, pt.slot)
			}
			if !containsClose(lf.box, pt.coords) {
				return nil, 0, corruptf("point %d %v outside its leaf box %v", pi, pt.coords, lf.box)
			}
			for d := range sum {
				sum[d] += pt.coords[d]
			}
		}
		if err := checkCentroid(lf.centroid, sum, len(lf.points)); err != nil {
			return nil, 0, fmt.Errorf("leaf %d: %w", ref.idx, err)
		}
		return sum, len(lf.points), nil

	case refInternal:
		if ref.idx >= len(t.internals) || v.seenInternals[ref.idx] {
			return nil, 0, corruptf("internal %d referenced twice or out of range", ref.idx)
		}
		v.seenInternals[ref.idx] = true
		n := &t.internals[ref.idx]
		if err := v.link(parent, octant, n.parent, n.octant, n.box, "internal", ref.idx); err != nil {
			return nil, 0, err
		}
		sum := make(Vector, t.dims)
		count := 0
		for oct, c := range n.children {
			if c.empty() {
				continue
			}
			s, k, err := v.node(c, ref.idx, oct)
			if err != nil {
				return nil, 0, err
			}
			for d := range sum {
				sum[d] += s[d]
			}
			count += k
		}
		if count == 0 {
			return nil, 0, corruptf("internal %d has no points", ref.idx)
		}
		if count != n.count {
			return nil, 0, corruptf("internal %d count %d, subtree holds %d", ref.idx, n.count, count)
		}
		if err := checkCentroid(n.centroid, sum, count); err != nil {
			return nil, 0, fmt.Errorf("internal %d: %w", ref.idx, err)
		}
		return sum, count, nil
	}
	return nil, 0, corruptf("empty reference")
}

func (v *validator) link(wantParent, wantOctant, parent, octant int, box Box, kind string, idx int) error {
	if parent != wantParent {
		return corruptf("%s %d parent is %d, reached from %d", kind, idx, parent, wantParent)
	}
	if parent == noParent {
		return nil
	}
	if octant != wantOctant {
		return corruptf("%s %d octant is %d, reached through %d", kind, idx, octant, wantOctant)
	}
	if want := v.t.internals[parent].box.Child(octant); !boxClose(box, want) {
		return corruptf("%s %d box %v, want %v", kind, idx, box, want)
	}
	return nil
}

func checkCentroid(got, sum Vector, n int) error {
	for d := range got {
		want := sum[d] / float64(n)
		if math.Abs(got[d]-want) > centroidTolerance*(1+math.Abs(want)) {
			return corruptf("centroid dimension %d is %v, mean of %d points is %v", d, got[d], n, want)
		}
	}
	return nil
}

func boxClose(a, b Box) bool {
	tol := centroidTolerance * (1 + math.Abs(b.HalfWidth))
	if math.Abs(a.HalfWidth-b.HalfWidth) > tol || len(a.Center) != len(b.Center) {
		return false
	}
	for d := range a.Center {
		if math.Abs(a.Center[d]-b.Center[d]) > tol {
			return false
		}
	}
	return true
}

// containsClose is Contains with room for rounding in derived box centers.
func containsClose(b Box, p Vector) bool {
	tol := centroidTolerance * (1 + math.Abs(b.HalfWidth))
	for d, c := range b.Center {
		if p[d] < c-b.HalfWidth-tol || p[d] > c+b.HalfWidth+tol {
			return false
		}
	}
	return true
}

package bhtree

// FarEnoughFunc decides whether a subtree with the given centroid and box
// half-width may stand in for its members when seen from p.
type FarEnoughFunc func(p, centroid Vector, halfWidth float64) bool

// AccumulateFunc receives either a single other point (n == 1) or the
// centroid of a group of n points. The vectors belong to the tree and must
// not be modified or retained.
type AccumulateFunc func(p, other Vector, n int)

// Query visits everything in the tree except point i itself. Points sharing
// i's leaf are always visited one by one. Every other subtree is offered to
// far: nearby ancestors' siblings first, then breadth first outward. A far
// subtree is accumulated once as a group; a near internal node is opened and
// a near leaf is accumulated point by point.
//
// Query returns false only when i is out of range.
func (t *Tree) Query(i int, far FarEnoughFunc, acc AccumulateFunc) bool {
	if i < 0 || i >= len(t.points) {
		return false
	}
	pt := t.points[i]
	if pt.leaf < 0 {
		invariantf("query", "point %d is not attached to a leaf", i)
	}
	p := pt.coords

	lf := &t.leaves[pt.leaf]
	for slot, other := range lf.points {
		if slot == pt.slot {
			continue
		}
		acc(p, t.points[other].coords, 1)
	}

	queue := make([]nodeRef, 0, 1<<t.dims)
	from, ni := lf.octant, lf.parent
	for ni != noParent {
		n := &t.internals[ni]
		for oct, c := range n.children {
			if oct == from || c.empty() {
				continue
			}
			queue = t.visit(p, c, far, acc, queue)
		}
		from, ni = n.octant, n.parent
	}
	for head := 0; head < len(queue); head++ {
		queue = t.visit(p, queue[head], far, acc, queue)
	}
	return true
}

// visit accumulates node c if it is far enough from p. Otherwise a leaf is
// accumulated point by point and an internal node's children are queued.
func (t *Tree) visit(p Vector, c nodeRef, far FarEnoughFunc, acc AccumulateFunc, queue []nodeRef) []nodeRef {
	if c.kind == refLeaf {
		lf := &t.leaves[c.idx]
		if far(p, lf.centroid, lf.box.HalfWidth) {
			acc(p, lf.centroid, len(lf.points))
			return queue
		}
		for _, other := range lf.points {
			acc(p, t.points[other].coords, 1)
		}
		return queue
	}
	n := &t.internals[c.idx]
	if far(p, n.centroid, n.box.HalfWidth) {
		acc(p, n.centroid, n.count)
		return queue
	}
	for _, child := range n.children {
		if !child.empty() {
			queue = append(queue, child)
		}
	}
	return queue
}

// Accumulate runs Query with an accumulator value, the form most force
// calculators take.
func Accumulate[T any](t *Tree, i int, far FarEnoughFunc, fn func(p, other Vector, n int, out *T), out *T) bool {
	return t.Query(i, far, func(p, other Vector, n int) {
		fn(p, other, n, out)
	})
}

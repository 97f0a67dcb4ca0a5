package bhtree

// add inserts the detached point i.
func (t *Tree) add(i int) {
	p := t.points[i].coords
	t.expandRoot(p)
	li := t.findLeaf(p)

	lf := &t.leaves[li]
	slot := len(lf.points)
	lf.centroid.addMember(slot, p)
	lf.points = append(lf.points, i)
	t.points[i].leaf, t.points[i].slot = li, slot
}

// expandRoot grows the covering box, and the root with it, until p is inside.
func (t *Tree) expandRoot(p Vector) {
	if t.bounds.Contains(p) {
		return
	}
	switch t.root.kind {
	case refNone:
		for !t.bounds.Contains(p) {
			t.bounds.selfExpand(p)
		}
	case refLeaf:
		li := t.root.idx
		lf := &t.leaves[li]
		// A lone point, or a leaf already at the resolution limit, can grow
		// without restructuring.
		for !lf.box.Contains(p) && (len(lf.points) == 1 || lf.box.HalfWidth <= t.minHalfWidth) {
			lf.box.selfExpand(p)
		}
		if lf.box.HalfWidth <= t.minHalfWidth {
			t.bounds = lf.box.Clone()
			return
		}
		ni := t.wrapRoot(t.splitLeaf(li), p)
		t.bounds = t.internals[ni].box.Clone()
	case refInternal:
		ni := t.wrapRoot(t.root.idx, p)
		t.bounds = t.internals[ni].box.Clone()
	}
}

// wrapRoot stacks new internal roots on top of internal ri until the root box
// contains p. It returns the final root.
func (t *Tree) wrapRoot(ri int, p Vector) int {
	for !t.internals[ri].box.Contains(p) {
		old := &t.internals[ri]
		box, oct := old.box.ReverseExpand(p)
		n := newInternal(box, old.centroid.Clone(), old.count)
		n.children[oct] = internalRef(ri)
		ni := t.allocInternal(n)

		old = &t.internals[ri]
		old.parent = ni
		old.octant = oct
		ri = ni
	}
	t.root = internalRef(ri)
	return ri
}

// splitLeaf puts a new internal node in leaf li's place. The internal node
// takes over the leaf's box, parent link and aggregate; the leaf moves one
// level down into the octant of its own centroid.
func (t *Tree) splitLeaf(li int) int {
	lf := &t.leaves[li]
	n := newInternal(lf.box.Clone(), lf.centroid.Clone(), len(lf.points))
	n.parent, n.octant = lf.parent, lf.octant
	oct := lf.box.Octant(lf.centroid)

	ni := t.allocInternal(n)
	t.replaceRef(n.parent, n.octant, internalRef(ni))
	t.linkLeaf(ni, oct, li)
	return ni
}

// findLeaf descends from the root to the leaf that should receive p, adding p
// to the aggregate of every internal node on the way. Leaves above the
// resolution limit are split; an empty slot gets a fresh leaf.
func (t *Tree) findLeaf(p Vector) int {
	parent, oct := noParent, 0
	cur := t.root
	for {
		var ni int
		switch cur.kind {
		case refNone:
			if parent == noParent {
				li := t.allocLeaf(newLeaf(t.bounds.Clone(), noParent, 0))
				t.root = leafRef(li)
				return li
			}
			li := t.allocLeaf(newLeaf(t.internals[parent].box.Child(oct), parent, oct))
			t.internals[parent].children[oct] = leafRef(li)
			return li
		case refLeaf:
			if t.leaves[cur.idx].box.HalfWidth <= t.minHalfWidth {
				return cur.idx
			}
			ni = t.splitLeaf(cur.idx)
		case refInternal:
			ni = cur.idx
		}

		n := &t.internals[ni]
		n.centroid.addMember(n.count, p)
		n.count++
		oct = n.box.Octant(p)
		parent = ni
		cur = n.children[oct]
	}
}

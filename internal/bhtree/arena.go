package bhtree

func (t *Tree) allocLeaf(l leaf) int {
	t.leaves = append(t.leaves, l)
	return len(t.leaves) - 1
}

func (t *Tree) allocInternal(n internal) int {
	t.internals = append(t.internals, n)
	return len(t.internals) - 1
}

// replaceRef rewrites the slot that holds a node with the given parent link:
// the parent's child slot, or the root when there is no parent.
func (t *Tree) replaceRef(parent, octant int, ref nodeRef) {
	if parent == noParent {
		t.root = ref
		return
	}
	t.internals[parent].children[octant] = ref
}

// linkLeaf attaches leaf li under internal ni and recomputes its box.
func (t *Tree) linkLeaf(ni, octant, li int) {
	lf := &t.leaves[li]
	lf.parent = ni
	lf.octant = octant
	lf.box.placeIn(t.internals[ni].box, octant)
	t.internals[ni].children[octant] = leafRef(li)
}

// setRootLeaf makes leaf li the parentless root with the covering box.
func (t *Tree) setRootLeaf(li int) {
	lf := &t.leaves[li]
	lf.parent = noParent
	lf.octant = 0
	lf.box = t.bounds.Clone()
	t.root = leafRef(li)
}

// freeLeaf disconnects leaf i from its parent (or the root) and releases its
// slot. The last leaf is moved into slot i and every reference to it is
// patched.
func (t *Tree) freeLeaf(i int) {
	lf := &t.leaves[i]
	if lf.parent != noParent {
		t.internals[lf.parent].children[lf.octant] = nodeRef{}
	} else if t.root == leafRef(i) {
		t.root = nodeRef{}
	}
	for _, pi := range lf.points {
		t.points[pi].leaf, t.points[pi].slot = -1, -1
	}

	last := len(t.leaves) - 1
	if i != last {
		moved := t.leaves[last]
		t.leaves[i] = moved
		t.replaceRef(moved.parent, moved.octant, leafRef(i))
		for slot, pi := range moved.points {
			t.points[pi].leaf, t.points[pi].slot = i, slot
		}
	}
	t.leaves[last] = leaf{}
	t.leaves = t.leaves[:last]
}

// freeInternal releases internal slot i without touching its parent's child
// slot; callers clear that first. When another node is relocated the old and
// new index are returned so walks in progress can re-resolve it.
func (t *Tree) freeInternal(i int) (from, to int, moved bool) {
	if t.root == internalRef(i) {
		t.root = nodeRef{}
	}
	last := len(t.internals) - 1
	if i != last {
		n := t.internals[last]
		t.internals[i] = n
		t.replaceRef(n.parent, n.octant, internalRef(i))
		for _, c := range n.children {
			switch c.kind {
			case refLeaf:
				t.leaves[c.idx].parent = i
			case refInternal:
				t.internals[c.idx].parent = i
			}
		}
		moved = true
	}
	t.internals[last] = internal{}
	t.internals = t.internals[:last]
	return last, i, moved
}

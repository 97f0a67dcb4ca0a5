package bhtree

// sub takes point i out of the tree, leaving its entry detached.
func (t *Tree) sub(i int) {
	start := t.detach(i)
	if start == noParent {
		return
	}
	survivor := t.pruneChain(start)
	if survivor == noParent {
		return
	}
	p := t.points[i].coords
	for ni := survivor; ni != noParent; ni = t.internals[ni].parent {
		n := &t.internals[ni]
		n.centroid.removeMember(n.count, p)
		n.count--
	}
}

// detach removes point i from its leaf and returns the leaf's parent, or
// noParent when the leaf was the root. A leaf left empty is freed.
func (t *Tree) detach(i int) int {
	pt := &t.points[i]
	li, slot := pt.leaf, pt.slot
	if li < 0 {
		invariantf("detach", "point %d is not attached to a leaf", i)
	}
	pt.leaf, pt.slot = -1, -1

	lf := &t.leaves[li]
	if lf.points[slot] != i {
		invariantf("detach", "leaf %d slot %d holds point %d, want %d", li, slot, lf.points[slot], i)
	}
	parent := lf.parent
	if len(lf.points) == 1 {
		t.freeLeaf(li)
		return parent
	}

	lf.centroid.removeMember(len(lf.points), pt.coords)
	last := len(lf.points) - 1
	if slot != last {
		moved := lf.points[last]
		lf.points[slot] = moved
		t.points[moved].slot = slot
	}
	lf.points = lf.points[:last]
	return parent
}

// pruneChain collapses the chain of internal nodes above start that no longer
// hold more than one point. Counts are read before the removed point is
// subtracted, so a count of 2 means a single point survives below.
//
// The surviving leaf is re-attached to the first ancestor whose count is
// above 2, which is returned; it still has to subtract the removed point.
// When the chain reaches the root the survivor becomes the root leaf and
// noParent is returned.
func (t *Tree) pruneChain(start int) int {
	n := &t.internals[start]
	if n.count > 2 {
		return start
	}

	sibling := -1
	for oct, c := range n.children {
		if c.empty() {
			continue
		}
		if c.kind != refLeaf {
			invariantf("prune", "internal %d keeps an internal child at octant %d", start, oct)
		}
		if sibling >= 0 {
			invariantf("prune", "internal %d keeps more than one child", start)
		}
		sibling = c.idx
		n.children[oct] = nodeRef{}
	}
	if sibling < 0 {
		invariantf("prune", "internal %d has no remaining child", start)
	}

	cur := start
	for {
		parent, oct := t.internals[cur].parent, t.internals[cur].octant
		if parent == noParent {
			break
		}
		count := t.internals[parent].count
		t.internals[parent].children[oct] = nodeRef{}

		// Freeing cur can relocate its parent into cur's slot.
		if from, to, moved := t.freeInternal(cur); moved && from == parent {
			parent = to
		}
		cur = parent
		if count > 2 {
			t.linkLeaf(cur, oct, sibling)
			return cur
		}
	}

	t.freeInternal(cur)
	t.setRootLeaf(sibling)
	return noParent
}

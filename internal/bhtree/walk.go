package bhtree

// NodeKind distinguishes leaves from internal nodes in a NodeInfo.
type NodeKind uint8

const (
	KindInternal NodeKind = iota + 1
	KindLeaf
)

func (k NodeKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// NodeInfo is a read-only view of one node handed to Walk callbacks. Box,
// Centroid and Points alias tree storage and are only valid during the call.
type NodeInfo struct {
	// ID is the node's position in walk order. ParentID is -1 for the root.
	ID       int
	ParentID int
	// Octant is the parent's child slot holding this node, -1 for the root.
	Octant int
	Depth  int

	Kind     NodeKind
	Index    int
	Box      Box
	Centroid Vector
	Count    int
	// Points lists the external indices held by a leaf, in slot order.
	Points []int
}

type walkItem struct {
	idx      int
	parentID int
	octant   int
	depth    int
}

// Walk visits every node breadth first and stops early if fn returns false.
// A node's leaf children are reported as soon as the node itself is, while
// its internal children wait their turn in the queue; IDs follow this order.
func (t *Tree) Walk(fn func(NodeInfo) bool) {
	if t.root.empty() {
		return
	}
	id := 0
	emitLeaf := func(li, parentID, octant, depth int) bool {
		lf := &t.leaves[li]
		info := NodeInfo{
			ID:       id,
			ParentID: parentID,
			Octant:   octant,
			Depth:    depth,
			Kind:     KindLeaf,
			Index:    li,
			Box:      lf.box,
			Centroid: lf.centroid,
			Count:    len(lf.points),
			Points:   lf.points,
		}
		id++
		return fn(info)
	}
	if t.root.kind == refLeaf {
		emitLeaf(t.root.idx, -1, -1, 0)
		return
	}

	queue := []walkItem{{idx: t.root.idx, parentID: -1, octant: -1}}
	for head := 0; head < len(queue); head++ {
		item := queue[head]
		n := &t.internals[item.idx]
		self := id
		id++
		if !fn(NodeInfo{
			ID:       self,
			ParentID: item.parentID,
			Octant:   item.octant,
			Depth:    item.depth,
			Kind:     KindInternal,
			Index:    item.idx,
			Box:      n.box,
			Centroid: n.centroid,
			Count:    n.count,
		}) {
			return
		}
		for oct, c := range n.children {
			switch c.kind {
			case refLeaf:
				if !emitLeaf(c.idx, self, oct, item.depth+1) {
					return
				}
			case refInternal:
				queue = append(queue, walkItem{idx: c.idx, parentID: self, octant: oct, depth: item.depth + 1})
			}
		}
	}
}

package bhtree

// refKind tags a nodeRef as empty, a leaf, or an internal node.
type refKind uint8

const (
	refNone refKind = iota
	refLeaf
	refInternal
)

// nodeRef points into one of the two arenas. The zero value is empty.
type nodeRef struct {
	kind refKind
	idx  int
}

func leafRef(i int) nodeRef     { return nodeRef{kind: refLeaf, idx: i} }
func internalRef(i int) nodeRef { return nodeRef{kind: refInternal, idx: i} }

func (r nodeRef) empty() bool { return r.kind == refNone }

// noParent marks a root node.
const noParent = -1

// point is an external point entry. leaf is -1 while the point is detached,
// which only happens in the middle of Update and Remove.
type point struct {
	coords Vector
	leaf   int
	slot   int
}

type leaf struct {
	box      Box
	centroid Vector
	points   []int

	// parent is noParent for the root leaf; octant is the parent's child slot.
	parent int
	octant int
}

type internal struct {
	box      Box
	centroid Vector
	count    int
	children []nodeRef

	parent int
	octant int
}

func newLeaf(box Box, parent, octant int) leaf {
	return leaf{
		box:      box,
		centroid: make(Vector, box.dims()),
		points:   make([]int, 0, 1),
		parent:   parent,
		octant:   octant,
	}
}

func newInternal(box Box, centroid Vector, count int) internal {
	return internal{
		box:      box,
		centroid: centroid,
		count:    count,
		children: make([]nodeRef, 1<<box.dims()),
		parent:   noParent,
	}
}

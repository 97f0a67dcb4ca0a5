package bhtree

import "math"

// Box is an axis-aligned hypercube given by its center and half-width.
//
// Octants are numbered MSB first: dimension 0 owns bit D-1 and dimension D-1
// owns bit 0. A bit is set when the coordinate is at or above the center.
type Box struct {
	Center    Vector
	HalfWidth float64
}

// newBox builds a box and panics on a non-finite center or half-width.
func newBox(center Vector, halfWidth float64) Box {
	if math.IsNaN(halfWidth) || math.IsInf(halfWidth, 0) {
		invariantf("new box", "half-width %v is not finite", halfWidth)
	}
	if !center.isFinite() {
		invariantf("new box", "center %v is not finite", center)
	}
	return Box{Center: center, HalfWidth: halfWidth}
}

// Clone returns a deep copy of b.
func (b Box) Clone() Box {
	return Box{Center: b.Center.Clone(), HalfWidth: b.HalfWidth}
}

func (b Box) dims() int {
	return len(b.Center)
}

// Octant returns the child index in [0, 2^D) that p falls into.
func (b Box) Octant(p Vector) int {
	top := 1 << (b.dims() - 1)
	oct := 0
	for d, c := range b.Center {
		if p[d] >= c {
			oct |= top >> d
		}
	}
	return oct
}

// Child returns the box of the given octant: half the width, with the center
// shifted by the new half-width along every axis.
func (b Box) Child(octant int) Box {
	half := b.HalfWidth * 0.5
	top := 1 << (b.dims() - 1)
	center := b.Center.Clone()
	for d := range center {
		if octant&(top>>d) != 0 {
			center[d] += half
		} else {
			center[d] -= half
		}
	}
	return newBox(center, half)
}

// Contains reports whether p lies in the half-open box
// [center-r, center+r) on every axis.
func (b Box) Contains(p Vector) bool {
	r := b.HalfWidth
	for d, c := range b.Center {
		if p[d] < c-r || p[d] >= c+r {
			return false
		}
	}
	return true
}

// ReverseExpand returns the box of twice the width that grows toward p, and
// the octant that b occupies inside it.
func (b Box) ReverseExpand(p Vector) (Box, int) {
	top := 1 << (b.dims() - 1)
	center := b.Center.Clone()
	oct := 0
	for d := range center {
		if p[d] >= center[d] {
			center[d] += b.HalfWidth
		} else {
			center[d] -= b.HalfWidth
			oct |= top >> d
		}
	}
	return newBox(center, b.HalfWidth*2), oct
}

// selfExpand is ReverseExpand applied in place.
func (b *Box) selfExpand(p Vector) {
	for d := range b.Center {
		if p[d] >= b.Center[d] {
			b.Center[d] += b.HalfWidth
		} else {
			b.Center[d] -= b.HalfWidth
		}
		if math.IsInf(b.Center[d], 0) {
			invariantf("expand box", "center dimension %d overflowed", d)
		}
	}
	b.HalfWidth *= 2
	if math.IsInf(b.HalfWidth, 0) {
		invariantf("expand box", "half-width overflowed")
	}
}

// placeIn resets b to the box of octant inside parent.
func (b *Box) placeIn(parent Box, octant int) {
	*b = parent.Child(octant)
}

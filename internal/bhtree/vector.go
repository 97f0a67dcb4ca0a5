package bhtree

import (
	"fmt"
	"math"
)

// Vector is a point or running centroid in D-dimensional space.
type Vector []float64

// NewVector copies coords into a Vector, rejecting NaN and infinite values.
func NewVector(coords []float64) (Vector, error) {
	for d, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: dimension %d is %v", ErrNonFinite, d, c)
		}
	}
	v := make(Vector, len(coords))
	copy(v, coords)
	return v, nil
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether v and o have the same length and coordinates.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for d := range v {
		if v[d] != o[d] {
			return false
		}
	}
	return true
}

// DistanceSquared returns the squared Euclidean distance between v and o.
func (v Vector) DistanceSquared(o Vector) float64 {
	var sum float64
	for d := range v {
		diff := v[d] - o[d]
		sum += diff * diff
	}
	return sum
}

func (v Vector) isFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector) set(o Vector) {
	copy(v, o)
}

// addMember folds x into the mean of n members held in v.
func (v Vector) addMember(n int, x Vector) {
	cur := float64(n)
	next := cur + 1
	for d := range v {
		v[d] = v[d]*(cur/next) + x[d]/next
		if math.IsNaN(v[d]) || math.IsInf(v[d], 0) {
			invariantf("add member", "centroid dimension %d became %v", d, v[d])
		}
	}
}

// removeMember takes x out of the mean of n members held in v. Removing the
// last member resets v to the origin.
func (v Vector) removeMember(n int, x Vector) {
	cur := float64(n)
	prev := cur - 1
	if prev == 0 {
		for d := range v {
			v[d] = 0
		}
		return
	}
	for d := range v {
		v[d] = (v[d] - x[d]/cur) * (cur / prev)
		if math.IsNaN(v[d]) || math.IsInf(v[d], 0) {
			invariantf("remove member", "centroid dimension %d became %v", d, v[d])
		}
	}
}

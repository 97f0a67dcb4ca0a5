package forces

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
)

// ToR2 converts the first two coordinates of v.
func ToR2(v []float64) r2.Vec {
	return r2.Vec{X: v[0], Y: v[1]}
}

// FromR2 converts v to a two-dimensional bhtree.Vector.
func FromR2(v r2.Vec) bhtree.Vector {
	return bhtree.Vector{v.X, v.Y}
}

// ToR3 converts the first three coordinates of v.
func ToR3(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// FromR3 converts v to a three-dimensional bhtree.Vector.
func FromR3(v r3.Vec) bhtree.Vector {
	return bhtree.Vector{v.X, v.Y, v.Z}
}

// Norm returns the Euclidean length of a displacement.
func Norm(v []float64) float64 {
	switch len(v) {
	case 2:
		return r2.Norm(ToR2(v))
	case 3:
		return r3.Norm(ToR3(v))
	}
	return floats.Norm(v, 2)
}

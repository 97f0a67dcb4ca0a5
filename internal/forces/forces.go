// Package forces provides the far-enough predicates and accumulators that
// bhtree.Query takes, for force-directed layout and N-body stepping.
//
// The repulsive model follows Hu (2005), "Efficient, high-quality
// force-directed graph drawing": a group of n points at distance d pushes a
// point away with displacement n*k²*c/d² along the separating vector.
package forces

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
)

// MinDistanceSquared clamps squared distances so coincident points yield a
// large but finite displacement.
const MinDistanceSquared = 1e-8

// Accumulator adds the effect of a group of n points centered at other on
// the point p into out.
type Accumulator[T any] func(p, other bhtree.Vector, n int, out *T)

func clampedDistanceSquared(p, other bhtree.Vector) float64 {
	d2 := p.DistanceSquared(other)
	if math.IsNaN(d2) || math.IsInf(d2, 0) || d2 <= MinDistanceSquared {
		return MinDistanceSquared
	}
	return d2
}

// Repulsion returns an accumulator that adds n*k²*c/d² * (p - other) to the
// displacement in out.
func Repulsion(k, c float64) Accumulator[[]float64] {
	kkc := k * k * c
	return func(p, other bhtree.Vector, n int, out *[]float64) {
		scalar := float64(n) * kkc / clampedDistanceSquared(p, other)
		dst := *out
		for d := range dst {
			dst[d] += (p[d] - other[d]) * scalar
		}
	}
}

// Energy is the accumulator of RepulsionWithEnergy.
type Energy struct {
	Displacement []float64
	// Energy sums the squared force magnitude (n*k²*c)²/d² of every group.
	Energy float64
}

// NewEnergy returns a zeroed Energy for dims dimensions.
func NewEnergy(dims int) Energy {
	return Energy{Displacement: make([]float64, dims)}
}

// RepulsionWithEnergy is Repulsion that also accumulates the energy term.
func RepulsionWithEnergy(k, c float64) Accumulator[Energy] {
	kkc := k * k * c
	return func(p, other bhtree.Vector, n int, out *Energy) {
		d2 := clampedDistanceSquared(p, other)
		f := float64(n) * kkc
		scalar := f / d2
		for d := range out.Displacement {
			out.Displacement[d] += (p[d] - other[d]) * scalar
		}
		out.Energy += f * f / d2
	}
}

// Gravity returns an accumulator that adds the attraction g*n/d² toward
// other, scaled by the unit separating vector, into out. Softening eps²
// is added to d² to keep close encounters bounded.
func Gravity(g, eps float64) Accumulator[[]float64] {
	eps2 := eps * eps
	return func(p, other bhtree.Vector, n int, out *[]float64) {
		d2 := p.DistanceSquared(other) + eps2
		if d2 == 0 {
			return
		}
		scalar := g * float64(n) / (d2 * math.Sqrt(d2))
		dst := *out
		for d := range dst {
			dst[d] += (other[d] - p[d]) * scalar
		}
	}
}

// Theta returns the Barnes-Hut criterion: a group of half-width w at
// distance d is far enough when 2w/d <= theta. Smaller theta is more exact;
// theta = 0 only accepts groups at infinite distance.
func Theta(theta float64) bhtree.FarEnoughFunc {
	minDist := math.Sqrt(MinDistanceSquared)
	return func(p, centroid bhtree.Vector, halfWidth float64) bool {
		d := floats.Distance(p, centroid, 2)
		if d < minDist || math.IsNaN(d) {
			d = minDist
		}
		return 2*halfWidth/d <= theta
	}
}

// Never never approximates, which makes Query exact.
func Never() bhtree.FarEnoughFunc {
	return func(bhtree.Vector, bhtree.Vector, float64) bool { return false }
}

// Apply runs fn over every other point in t as seen from point i and
// returns the accumulated vector. ok is false when i is out of range.
func Apply(t *bhtree.Tree, i int, far bhtree.FarEnoughFunc, fn Accumulator[[]float64]) (out []float64, ok bool) {
	out = make([]float64, t.Dims())
	ok = bhtree.Accumulate[[]float64](t, i, far, fn, &out)
	return out, ok
}

// BruteForce accumulates fn over every other point of pts as seen from
// pts[i], one point at a time.
func BruteForce(pts []bhtree.Vector, i int, fn Accumulator[[]float64]) []float64 {
	out := make([]float64, len(pts[i]))
	for j, q := range pts {
		if j != i {
			fn(pts[i], q, 1, &out)
		}
	}
	return out
}

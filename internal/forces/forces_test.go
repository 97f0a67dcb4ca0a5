package forces

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
)

func TestRepulsion(t *testing.T) {
	k, c := 1.0, 0.2
	fn := Repulsion(k, c)
	out := make([]float64, 2)
	fn(bhtree.Vector{-1, 0}, bhtree.Vector{1, 0}, 1, &out)

	diff, dis := -2.0, 2.0
	want := []float64{(diff * k * k * c) / (dis * dis), 0}
	if out[0] != want[0] || out[1] != want[1] {
		t.Errorf("displacement = %v, want %v", out, want)
	}

	// A group of three pushes three times as hard.
	group := make([]float64, 2)
	fn(bhtree.Vector{-1, 0}, bhtree.Vector{1, 0}, 3, &group)
	if math.Abs(group[0]-3*want[0]) > 1e-15 {
		t.Errorf("group displacement = %v, want %v", group, 3*want[0])
	}
}

func TestRepulsionClampsCoincidentPoints(t *testing.T) {
	out := make([]float64, 2)
	Repulsion(1, 1)(bhtree.Vector{0, 0}, bhtree.Vector{0, 0}, 1, &out)
	for _, x := range out {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("coincident points produced %v", out)
		}
	}
	near := make([]float64, 1)
	Repulsion(1, 1)(bhtree.Vector{1e-6}, bhtree.Vector{0}, 1, &near)
	if want := 1e-6 / MinDistanceSquared; math.Abs(near[0]-want) > 1e-9 {
		t.Errorf("clamped displacement = %v, want %v", near[0], want)
	}
}

func TestRepulsionWithEnergy(t *testing.T) {
	k, c := 1.0, 0.2
	fn := RepulsionWithEnergy(k, c)
	out := NewEnergy(2)
	fn(bhtree.Vector{-1, 0}, bhtree.Vector{1, 0}, 1, &out)

	diff, dis := -2.0, 2.0
	if want := (diff * k * k * c) / (dis * dis); out.Displacement[0] != want || out.Displacement[1] != 0 {
		t.Errorf("displacement = %v, want [%v 0]", out.Displacement, want)
	}
	if want := math.Pow(k*k*c, 2) / math.Pow(dis, 2); math.Abs(out.Energy-want) > 1e-15 {
		t.Errorf("energy = %v, want %v", out.Energy, want)
	}
}

func TestTheta(t *testing.T) {
	far := Theta(0.5)
	tests := []struct {
		name      string
		p, c      bhtree.Vector
		halfWidth float64
		want      bool
	}{
		{"distant group", bhtree.Vector{0, 0}, bhtree.Vector{10, 0}, 1, true},
		{"boundary", bhtree.Vector{0, 0}, bhtree.Vector{4, 0}, 1, true},
		{"close group", bhtree.Vector{0, 0}, bhtree.Vector{3, 0}, 1, false},
		{"coincident", bhtree.Vector{1, 1}, bhtree.Vector{1, 1}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := far(tt.p, tt.c, tt.halfWidth); got != tt.want {
				t.Errorf("Theta(0.5)(%v, %v, %v) = %v, want %v", tt.p, tt.c, tt.halfWidth, got, tt.want)
			}
		})
	}
	if Never()(bhtree.Vector{0}, bhtree.Vector{1e9}, 0) {
		t.Error("Never should never approximate")
	}
}

func buildTree(t *testing.T, pts []bhtree.Vector) *bhtree.Tree {
	t.Helper()
	raw := make([][]float64, len(pts))
	for i, p := range pts {
		raw[i] = p
	}
	tree, err := bhtree.NewWithPoints(bhtree.DefaultConfig(len(pts[0])), raw)
	if err != nil {
		t.Fatalf("NewWithPoints: %v", err)
	}
	return tree
}

func randomVectors(rng *rand.Rand, n, dims int, spread float64) []bhtree.Vector {
	out := make([]bhtree.Vector, n)
	for i := range out {
		v := make(bhtree.Vector, dims)
		for d := range v {
			v[d] = (rng.Float64()*2 - 1) * spread
		}
		out[i] = v
	}
	return out
}

func TestApplyExactMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pts := randomVectors(rng, 120, 3, 10)
	tree := buildTree(t, pts)
	fn := Repulsion(1, 0.2)
	for i := range pts {
		got, ok := Apply(tree, i, Never(), fn)
		if !ok {
			t.Fatalf("Apply(%d) failed", i)
		}
		want := BruteForce(pts, i, fn)
		if !floats.EqualApprox(got, want, 1e-9) {
			t.Fatalf("point %d: got %v, want %v", i, got, want)
		}
	}
	if _, ok := Apply(tree, len(pts), Never(), fn); ok {
		t.Error("Apply out of range should fail")
	}
}

type particle struct{ v r2.Vec }

func (p particle) Coord2() r2.Vec { return p.v }
func (p particle) Mass() float64  { return 1 }

func TestGravityAgreesWithGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pts := randomVectors(rng, 80, 2, 50)
	tree := buildTree(t, pts)

	particles := make([]barneshut.Particle2, len(pts))
	for i, p := range pts {
		particles[i] = particle{ToR2(p)}
	}
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		t.Fatalf("NewPlane: %v", err)
	}

	fn := Gravity(1, 0)
	for i := range pts {
		got, _ := Apply(tree, i, Never(), fn)
		// theta = 0 makes gonum sum over every particle directly.
		want := plane.ForceOn(particles[i], 0, barneshut.Gravity2)
		if math.Abs(got[0]-want.X) > 1e-9 || math.Abs(got[1]-want.Y) > 1e-9 {
			t.Fatalf("point %d: got %v, gonum %v", i, got, want)
		}
	}
}

func TestThetaApproximationIsClose(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	pts := randomVectors(rng, 500, 2, 100)
	tree := buildTree(t, pts)
	fn := Gravity(1, 0.1)

	var errSum, normSum float64
	for i := range pts {
		got, _ := Apply(tree, i, Theta(0.5), fn)
		want := BruteForce(pts, i, fn)
		diff := make([]float64, 2)
		floats.SubTo(diff, got, want)
		errSum += Norm(diff)
		normSum += Norm(want)
	}
	if rel := errSum / normSum; rel > 0.05 {
		t.Errorf("relative error %.4f exceeds 0.05", rel)
	}
}

func TestConversions(t *testing.T) {
	v := bhtree.Vector{1, 2, 3}
	if got := FromR3(ToR3(v)); !got.Equal(v) {
		t.Errorf("r3 round trip = %v", got)
	}
	if got := FromR2(ToR2(v)); !got.Equal(bhtree.Vector{1, 2}) {
		t.Errorf("r2 round trip = %v", got)
	}
	if n := Norm([]float64{3, 4}); n != 5 {
		t.Errorf("Norm([3 4]) = %v", n)
	}
	if n := Norm([]float64{1, 2, 2}); n != 3 {
		t.Errorf("Norm([1 2 2]) = %v", n)
	}
	if n := Norm([]float64{1, 1, 1, 1}); n != 2 {
		t.Errorf("Norm([1 1 1 1]) = %v", n)
	}
}

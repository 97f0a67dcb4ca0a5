package layout

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
)

func ringPoints(n int) []bhtree.Vector {
	pts := make([]bhtree.Vector, n)
	radius := 100 * math.Sqrt(float64(n)/1000+1)
	for i := range pts {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = bhtree.Vector{radius * math.Cos(angle), radius * math.Sin(angle)}
	}
	return pts
}

// BenchmarkTreeVsBruteForce compares one full repulsion pass.
func BenchmarkTreeVsBruteForce(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		pts := ringPoints(n)
		p := DefaultParams()
		e, err := NewEngine(p)
		if err != nil {
			b.Fatal(err)
		}
		ids := gridIDs(n)
		for i, id := range ids {
			if err := e.AddNode(id, pts[i]); err != nil {
				b.Fatal(err)
			}
		}

		b.Run(fmt.Sprintf("Tree_N=%d", n), func(b *testing.B) {
			for k := 0; k < b.N; k++ {
				for _, id := range ids {
					_, _ = e.Force(id)
				}
			}
		})
		b.Run(fmt.Sprintf("BruteForce_N=%d", n), func(b *testing.B) {
			for k := 0; k < b.N; k++ {
				BruteForceRepulsion(pts, p.K, p.C)
			}
		})
	}
}

// BenchmarkStep measures a full step including the tree updates.
func BenchmarkStep(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			p := DefaultParams()
			p.Iterations = math.MaxInt32
			e, err := NewEngine(p)
			if err != nil {
				b.Fatal(err)
			}
			for i, pt := range ringPoints(n) {
				if err := e.AddNode(fmt.Sprintf("n%d", i), pt); err != nil {
					b.Fatal(err)
				}
			}
			ctx := context.Background()
			b.ResetTimer()
			for k := 0; k < b.N; k++ {
				if _, err := e.Step(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

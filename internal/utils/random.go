package utils

import (
	"math/rand"
	"time"
)

// NewRand returns a generator seeded with seed, or with the clock when seed
// is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomPosition returns a point drawn uniformly from the cube of the given
// half-width centered on the origin.
func RandomPosition(rng *rand.Rand, dims int, halfWidth float64) []float64 {
	p := make([]float64, dims)
	for d := range p {
		p[d] = (rng.Float64()*2 - 1) * halfWidth
	}
	return p
}

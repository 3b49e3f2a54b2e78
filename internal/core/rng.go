package core

import "math/rand/v2"

// DefaultDensity is the share of cells alive after a random seed.
const DefaultDensity = 0.2

// RNG is a thin convenience wrapper around math/rand/v2 for deterministic seeding.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// Alive reports true with the given probability.
func (r *RNG) Alive(density float64) bool {
	return r.r.Float64() < density
}

// FillDensity marks each cell alive with probability density.
func (r *RNG) FillDensity(buf []uint32, density float64) {
	for i := range buf {
		buf[i] = Dead
		if r.Alive(density) {
			buf[i] = Alive
		}
	}
}

// Seed fills cells deterministically from seed at the given density.
func Seed(cells []uint32, seed int64, density float64) {
	NewRNG(seed).FillDensity(cells, density)
}

package race

import "math/rand/v2"

// Source is the randomness the simulator draws from. Every random decision
// (speed profiles, drift, hazards) goes through it so a race can be replayed
// from a seed or scripted in tests.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// NewSource returns a seeded PCG source.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

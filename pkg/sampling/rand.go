// Package sampling provides the unique-subset samplers and the matching
// inclusion-probability estimates used by candidate generation and scoring.
//
// Two samplers are offered:
//   - UniformUniqueSubset: every item equally likely
//   - BiasedUniqueSubset: items earlier in a best-first pool are more likely
//
// BetaProbability and InclusionProbability estimate how likely a given item
// is to be drawn, so that audits can explain a recommendation without
// replaying the sampler.
//
// All randomness comes from a Rand passed in by the caller. Tests seed it
// with NewRand for reproducible draws.
package sampling

import (
	"math/rand/v2"
	"time"
)

// Rand is the random source consumed by samplers and scoring jitter.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewTimeSeededRand returns a source seeded from the wall clock.
func NewTimeSeededRand() *rand.Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

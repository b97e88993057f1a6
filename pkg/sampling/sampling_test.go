package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(v int) int { return v }

func TestUniformUniqueSubset(t *testing.T) {
	rng := NewRand(1)
	pool := []int{1, 2, 3, 4, 5, 6, 7, 8}

	t.Run("distinct and sized", func(t *testing.T) {
		got := UniformUniqueSubset(rng, pool, 5, identity)
		require.Len(t, got, 5)
		seen := map[int]bool{}
		for _, v := range got {
			assert.False(t, seen[v], "duplicate %d", v)
			seen[v] = true
			assert.Contains(t, pool, v)
		}
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, pool, "pool must not be modified")
	})

	t.Run("duplicate keys collapse", func(t *testing.T) {
		got := UniformUniqueSubset(rng, []int{7, 7, 7, 9}, 4, identity)
		assert.ElementsMatch(t, []int{7, 9}, got)
	})

	t.Run("degenerate input", func(t *testing.T) {
		assert.Empty(t, UniformUniqueSubset(rng, []int{}, 3, identity))
		assert.Empty(t, UniformUniqueSubset(rng, pool, 0, identity))
	})

	t.Run("roughly uniform", func(t *testing.T) {
		counts := make([]int, len(pool))
		const trials = 20000
		for i := 0; i < trials; i++ {
			for _, v := range UniformUniqueSubset(rng, pool, 2, identity) {
				counts[v-1]++
			}
		}
		for _, c := range counts {
			assert.InDelta(t, 0.25, float64(c)/trials, 0.02)
		}
	})
}

func TestBiasedUniqueSubset(t *testing.T) {
	rng := NewRand(7)
	pool := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	t.Run("distinct and sized", func(t *testing.T) {
		got := BiasedUniqueSubset(rng, pool, 4, identity)
		require.Len(t, got, 4)
		assert.Len(t, map[int]bool{got[0]: true, got[1]: true, got[2]: true, got[3]: true}, 4)
	})

	t.Run("whole pool when n exceeds it", func(t *testing.T) {
		assert.ElementsMatch(t, pool, BiasedUniqueSubset(rng, pool, 50, identity))
	})

	t.Run("first draw follows BetaProbability", func(t *testing.T) {
		counts := make([]int, len(pool))
		const trials = 40000
		for i := 0; i < trials; i++ {
			counts[BiasedUniqueSubset(rng, pool, 1, identity)[0]]++
		}
		for r, c := range counts {
			assert.InDelta(t, BetaProbability(r, len(pool)), float64(c)/trials, 0.015, "rank %d", r)
		}
		assert.Greater(t, counts[0], counts[9])
	})
}

func TestBetaProbability(t *testing.T) {
	const size = 20
	var total float64
	prev := math.Inf(1)
	for r := 0; r < size; r++ {
		p := BetaProbability(r, size)
		assert.Less(t, p, prev)
		prev = p
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-12)

	assert.Equal(t, 1.0, BetaProbability(0, 1))
	assert.Zero(t, BetaProbability(0, 0))
	assert.Zero(t, BetaProbability(5, 5))
}

func TestInclusionProbability(t *testing.T) {
	assert.InDelta(t, 1-math.Pow(0.75, 3), InclusionProbability(0.25, 3), 1e-12)
	assert.Zero(t, InclusionProbability(0.5, 0))
	assert.Zero(t, InclusionProbability(0, 3))
	assert.Equal(t, 1.0, InclusionProbability(1.2, 2))
	assert.InDelta(t, 1-math.Pow(0.95, 20.0/3), InclusionProbability(0.05, 20.0/3), 1e-12)
	assert.Greater(t, InclusionProbability(0.05, 6.5), InclusionProbability(0.05, 6))
}

func TestDrawSize(t *testing.T) {
	assert.Equal(t, 6, DrawSize(20.0/3))
	assert.Equal(t, 3, DrawSize(3))
	assert.Zero(t, DrawSize(0.9))
	assert.Zero(t, DrawSize(-1))
	assert.Zero(t, DrawSize(math.NaN()))
}

func TestUnion(t *testing.T) {
	assert.Zero(t, Union())
	assert.Equal(t, 0.3, Union(0.3))
	assert.InDelta(t, 0.5+0.5-0.25, Union(0.5, 0.5), 1e-12)
	assert.InDelta(t, 1.0, Union(0.2, 1, 0.4), 1e-12)
}

func TestCalculateCount(t *testing.T) {
	tests := []struct {
		name             string
		high, low, value float64
		max, want        float64
	}{
		{"equal range returns max", 0.5, 0.5, 0.5, 7, 7},
		{"low end", 1, 0, 0, 5, 1},
		{"high end", 1, 0, 1, 5, 5},
		{"middle", 1, 0.2, 0.6, 5, 3},
		{"below range clamps", 1, 0.5, 0, 5, 1},
		{"above range clamps", 1, 0.5, 3, 5, 5},
		{"max below one", 1, 0, 0.5, 0, 0},
		{"fractional max on equal range", 0.5, 0.5, 0.5, 6.5, 6.5},
		{"fractional max clamps high end", 1, 0, 1, 6.5, 6.5},
		{"fractional max middle", 1, 0, 0.5, 6.5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateCount(tt.high, tt.low, tt.value, tt.max))
		})
	}

	t.Run("monotonic", func(t *testing.T) {
		prev := 0.0
		for v := 0.0; v <= 1.0; v += 0.01 {
			c := CalculateCount(1, 0, v, 10)
			assert.GreaterOrEqual(t, c, prev)
			assert.GreaterOrEqual(t, c, 1.0)
			assert.LessOrEqual(t, c, 10.0)
			prev = c
		}
	})
}

func TestBetaCDF(t *testing.T) {
	assert.Zero(t, BetaCDF(-0.5, 0.5, 1))
	assert.Equal(t, 1.0, BetaCDF(1.5, 0.5, 1))
	assert.InDelta(t, math.Sqrt(0.25), BetaCDF(0.25, 0.5, 1), 1e-12)

	// Beta(2, 2) has CDF 3x^2 - 2x^3
	for _, x := range []float64{0.1, 0.3, 0.5, 0.8} {
		assert.InDelta(t, 3*x*x-2*x*x*x, BetaCDF(x, 2, 2), 1e-9)
	}
	// Beta(1, 3) has CDF 1 - (1-x)^3
	assert.InDelta(t, 1-math.Pow(0.6, 3), BetaCDF(0.4, 1, 3), 1e-9)
}

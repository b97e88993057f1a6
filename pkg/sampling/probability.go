package sampling

import "math"

// BetaProbability estimates the single-draw probability that
// BiasedUniqueSubset picks the item at sorted position r (0-based) of a pool
// of the given size:
//
//	P(r) = sqrt((r+1)/size) - sqrt(r/size)
//
// It is the mass of Beta(0.5, 1) over the interval [r/size, (r+1)/size) and
// decreases monotonically with r. Positions outside the pool yield 0.
func BetaProbability(r, size int) float64 {
	if size <= 0 || r < 0 || r >= size {
		return 0
	}
	n := float64(size)
	return math.Sqrt(float64(r+1)/n) - math.Sqrt(float64(r)/n)
}

// InclusionProbability returns the probability that an event with
// single-trial probability p happens at least once in n independent trials.
// n may be fractional.
func InclusionProbability(p, n float64) float64 {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p, n)
}

// Union folds independent event probabilities left to right with
// P(A or B) = P(A) + P(B) - P(A)P(B).
func Union(ps ...float64) float64 {
	var s float64
	for _, v := range ps {
		s = s + v - s*v
	}
	return s
}

// CalculateCount maps value in [low, high] linearly onto a quota in
// [1, max]:
//
//	floor(((value-low)/(high-low)) * (max-1) + 1)
//
// It returns max when high == low and clamps the result to [1, max]
// otherwise. A max below 1 yields 0. max may be fractional, in which case
// so may the result; samplers take its floor.
//
// Example:
//
//	sampling.CalculateCount(1.0, 0.2, 0.6, 5) // 3
func CalculateCount(high, low, value, max float64) float64 {
	if max < 1 {
		return 0
	}
	if high == low {
		return max
	}
	c := math.Floor((value-low)/(high-low)*(max-1) + 1)
	if math.IsNaN(c) || c < 1 {
		return 1
	}
	return math.Min(c, max)
}

// DrawSize converts a fractional quota into the number of items a sampler
// draws.
func DrawSize(quota float64) int {
	if quota <= 0 || math.IsNaN(quota) {
		return 0
	}
	return int(math.Floor(quota))
}

// BetaCDF returns the cumulative distribution of Beta(alpha, beta) at x.
//
// For beta == 1 this is the closed form clamp(x, 0, 1)^alpha. Other shapes
// use the regularised incomplete beta function.
func BetaCDF(x, alpha, beta float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	if beta == 1 {
		return math.Pow(x, alpha)
	}
	return regularizedIncompleteBeta(x, alpha, beta)
}

// regularizedIncompleteBeta evaluates I_x(a, b) with the Lentz continued
// fraction, using the symmetry I_x(a,b) = 1 - I_{1-x}(b,a) for convergence.
func regularizedIncompleteBeta(x, a, b float64) float64 {
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	lgab, _ := math.Lgamma(a + b)
	front := math.Exp(lgab - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(x, a, b) / a
	}
	return 1 - front*betaContinuedFraction(1-x, b, a)/b
}

func betaContinuedFraction(x, a, b float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 1e-14
		tiny          = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}
	return h
}

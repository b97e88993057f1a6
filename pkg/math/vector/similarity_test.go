package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
		epsilon  float64
	}{
		{
			name:     "identical vectors",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{1.0, 0.0, 0.0},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "orthogonal vectors",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{0.0, 1.0, 0.0},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "opposite vectors",
			a:        []float64{1.0, 0.0},
			b:        []float64{-1.0, 0.0},
			expected: -1.0,
			epsilon:  0.001,
		},
		{
			name:     "similar vectors",
			a:        []float64{1.0, 2.0, 3.0},
			b:        []float64{4.0, 5.0, 6.0},
			expected: 0.9746318461970762,
			epsilon:  1e-12,
		},
		{
			name:     "empty vectors",
			a:        []float64{},
			b:        []float64{},
			expected: 0,
			epsilon:  0.001,
		},
		{
			name:     "mismatched dimensions",
			a:        []float64{1.0, 2.0},
			b:        []float64{1.0, 2.0, 3.0},
			expected: 0,
			epsilon:  0.001,
		},
		{
			name:     "zero vector",
			a:        []float64{0.0, 0.0, 0.0},
			b:        []float64{1.0, 2.0, 3.0},
			expected: 0,
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > tt.epsilon {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
			if d := CosineDistance(tt.a, tt.b); math.Abs(d-(1-tt.expected)) > tt.epsilon {
				t.Errorf("expected distance %f, got %f", 1-tt.expected, d)
			}
		})
	}
}

func TestDotProduct(t *testing.T) {
	if got := DotProduct([]float64{1, 2, 3}, []float64{4, 5, 6}); got != 32 {
		t.Errorf("expected 32, got %f", got)
	}
	if got := DotProduct([]float64{1}, []float64{1, 2}); got != 0 {
		t.Errorf("expected 0 for mismatched dimensions, got %f", got)
	}
}

func TestNormalize(t *testing.T) {
	original := []float64{3.0, 4.0}
	normalized := Normalize(original)

	if math.Abs(normalized[0]-0.6) > 1e-12 || math.Abs(normalized[1]-0.8) > 1e-12 {
		t.Errorf("expected [0.6 0.8], got %v", normalized)
	}
	if original[0] != 3.0 {
		t.Error("input must not be modified")
	}

	zero := Normalize([]float64{0, 0, 0})
	if len(zero) != 3 || zero[0] != 0 {
		t.Errorf("expected zero vector, got %v", zero)
	}
}

func TestMean(t *testing.T) {
	got := Mean([]float64{1, 2}, []float64{3, 4}, []float64{9})
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
	if Mean() != nil {
		t.Error("expected nil for no input")
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	a := make([]float64, 64)
	c := make([]float64, 64)
	for i := range a {
		a[i] = float64(i) / 64
		c[i] = float64(64-i) / 64
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CosineSimilarity(a, c)
	}
}

func TestWeightedMean(t *testing.T) {
	got := WeightedMean([][]float64{{1, 0}, {}, {0, 1}, {5}}, []float64{3, 9, 1, 9})
	if len(got) != 2 || math.Abs(got[0]-0.75) > 1e-12 || math.Abs(got[1]-0.25) > 1e-12 {
		t.Errorf("expected [0.75 0.25], got %v", got)
	}
	if WeightedMean([][]float64{{1, 2}}, []float64{0}) != nil {
		t.Error("expected nil for zero total weight")
	}
	if WeightedMean(nil, nil) != nil {
		t.Error("expected nil for no input")
	}
}

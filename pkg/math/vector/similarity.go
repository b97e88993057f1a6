// Package vector provides the embedding math shared by taste scoring,
// similar-user search and user clustering.
//
// Embeddings are plain []float64 slices. Every function tolerates
// mismatched, empty or zero vectors by returning a neutral value instead of
// NaN, because embeddings are frequently missing in a sparse graph.
//
// Main Functions:
//   - CosineSimilarity: similarity in [-1, 1]
//   - CosineDistance: 1 - CosineSimilarity, used as a clustering metric
//   - DotProduct: dot product
//   - Normalize: unit-length copy
//   - Mean, WeightedMean: element-wise centroids of several vectors
package vector

import "math"

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns value in range [-1, 1] where 1 = identical, 0 = orthogonal, -1 = opposite.
//
// Mismatched dimensions, empty vectors and zero vectors yield 0.
//
// Example:
//
//	a := []float64{1.0, 2.0, 3.0}
//	b := []float64{4.0, 5.0, 6.0}
//	sim := vector.CosineSimilarity(a, b)  // Returns 0.9746318461970762
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance returns 1 - CosineSimilarity(a, b), in range [0, 2].
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// DotProduct calculates the dot product of two vectors.
// Mismatched dimensions yield 0.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize returns a unit-length copy of the vector.
// A zero vector yields a zero vector of the same length.
//
// Example:
//
//	normalized := vector.Normalize([]float64{3.0, 4.0})  // Returns [0.6, 0.8]
func Normalize(vec []float64) []float64 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}

	normalized := make([]float64, len(vec))
	if sumSquares == 0 {
		return normalized
	}

	norm := math.Sqrt(sumSquares)
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}

// Mean returns the element-wise average of the vectors.
// Vectors whose length differs from the first are skipped. No input
// yields nil.
func Mean(vecs ...[]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}

	dim := len(vecs[0])
	sum := make([]float64, dim)
	n := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += v[i]
		}
		n++
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}

// WeightedMean returns the weighted element-wise average of the vectors.
// Empty vectors and vectors whose length differs from the first non-empty
// one are skipped. If no vector contributes, or the weights sum to 0, the
// result is nil.
func WeightedMean(vecs [][]float64, weights []float64) []float64 {
	var sum []float64
	var total float64
	for i, v := range vecs {
		if len(v) == 0 || i >= len(weights) {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for j := range v {
			sum[j] += v[j] * weights[i]
		}
		total += weights[i]
	}
	if sum == nil || total == 0 {
		return nil
	}
	for j := range sum {
		sum[j] /= total
	}
	return sum
}

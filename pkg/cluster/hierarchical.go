// Package cluster groups embeddings with agglomerative hierarchical
// clustering.
//
// Every embedding starts as its own cluster. The two closest clusters are
// merged until K remain, where the distance between clusters is the
// complete-linkage distance: the largest pairwise distance between their
// members. The default metric is cosine distance, matching the similarity
// used for taste scoring.
//
// Example:
//
//	groups := cluster.Hierarchical([][]float64{
//		{0.5, 0.1}, {0.6, 0.2}, {0.2, 0.5}, {0.1, 0.4},
//	}, cluster.Config{K: 2})
//	// groups == [][]int{{0, 1}, {2, 3}}
package cluster

import (
	"math"
	"sort"

	"github.com/orneryd/feedgraph/pkg/math/vector"
)

// DistanceFunc measures the distance between two embeddings.
type DistanceFunc func(a, b []float64) float64

// Config controls clustering.
type Config struct {
	// K is the number of clusters to stop at. Values below 1 are treated
	// as 1.
	K int
	// Distance defaults to vector.CosineDistance.
	Distance DistanceFunc
}

// Hierarchical partitions the embeddings into at most K clusters.
//
// Each cluster is a sorted list of indices into embeddings. Clusters are
// ordered by their smallest member, so the grouping is stable across runs
// with the same input. Ties between equally close pairs merge the pair that
// comes first in that order.
//
// Cost is O(n^3) in the number of embeddings, acceptable for the user
// populations of a single simulation.
func Hierarchical(embeddings [][]float64, cfg Config) [][]int {
	n := len(embeddings)
	if n == 0 {
		return nil
	}
	k := max(cfg.K, 1)
	dist := cfg.Distance
	if dist == nil {
		dist = vector.CosineDistance
	}

	pairwise := make([][]float64, n)
	for i := range pairwise {
		pairwise[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist(embeddings[i], embeddings[j])
			pairwise[i][j] = d
			pairwise[j][i] = d
		}
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > k {
		bestA, bestB := -1, -1
		bestDist := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				d := completeLinkage(pairwise, clusters[a], clusters[b])
				if d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestA < 0 {
			break
		}

		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}

	for _, c := range clusters {
		sort.Ints(c)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}

func completeLinkage(pairwise [][]float64, a, b []int) float64 {
	var worst float64
	for _, i := range a {
		for _, j := range b {
			if d := pairwise[i][j]; d > worst {
				worst = d
			}
		}
	}
	return worst
}

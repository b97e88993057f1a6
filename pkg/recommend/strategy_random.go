package recommend

import (
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

func (s *candidateSource) random(nodes []Recommendation, quota float64, rng sampling.Rand) []Recommendation {
	all := s.graph.GetNodesByType(storage.NodeTypeContent)
	picked := sampling.UniformUniqueSubset(rng, all, sampling.DrawSize(quota), func(id storage.NodeID) storage.NodeID { return id })
	for _, id := range picked {
		nodes = append(nodes, Recommendation{
			ContentID: id,
			Origin:    OriginRandom,
			Timestamp: s.now,
		})
	}
	return nodes
}

// randomProbability does not depend on the item: every content item is
// equally likely.
func (s *candidateSource) randomProbability(quota float64) float64 {
	n := len(s.graph.GetNodesByType(storage.NodeTypeContent))
	if n == 0 {
		return 0
	}
	return sampling.InclusionProbability(1/float64(n), quota)
}

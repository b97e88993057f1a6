package recommend

import (
	"sort"

	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// popularity ranks all content by engagement relative to the most engaged
// item, best first.
func (s *candidateSource) popularity() []storage.WeightedNode {
	all := s.graph.GetNodesByType(storage.NodeTypeContent)
	if len(all) == 0 {
		return nil
	}

	maxEngagement := s.content.MaxContentEngagement()
	if maxEngagement == 0 {
		maxEngagement = 1
	}
	popular := make([]storage.WeightedNode, len(all))
	for i, id := range all {
		popular[i] = storage.WeightedNode{ID: id, Weight: s.content.ContentStats(id).Engagement / maxEngagement}
	}
	sort.SliceStable(popular, func(i, j int) bool { return popular[i].Weight > popular[j].Weight })
	return popular
}

func (s *candidateSource) popular(nodes []Recommendation, quota float64, rng sampling.Rand) []Recommendation {
	for _, n := range sampling.BiasedUniqueSubset(rng, s.popularity(), sampling.DrawSize(quota), byID) {
		nodes = append(nodes, Recommendation{
			ContentID:       n.ID,
			Origin:          OriginPopular,
			Timestamp:       s.now,
			PopularityScore: n.Weight,
		})
	}
	return nodes
}

func (s *candidateSource) popularProbability(quota float64, id storage.NodeID) float64 {
	return positionProbability(s.popularity(), quota, id)
}

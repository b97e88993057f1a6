package recommend

import (
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

func engagedRange(engaged []storage.WeightedNode) (high, low float64) {
	if len(engaged) == 0 {
		return 0, 0
	}
	return engaged[0].Weight, engaged[len(engaged)-1].Weight
}

// coengaged draws, for each item the user engaged with, the items most
// often engaged with alongside it. Stronger engagements get a larger share
// of the quota.
func (s *candidateSource) coengaged(nodes []Recommendation, quota float64, rng sampling.Rand) []Recommendation {
	if s.profile == nil {
		return nodes
	}
	engaged := s.profile.Contents
	high, low := engagedRange(engaged)

	for _, e := range engaged {
		c := sampling.CalculateCount(high, low, e.Weight, quota)
		related := s.graph.GetRelated(storage.EdgeCoengaged, []storage.NodeID{e.ID}, storage.QueryOptions{})
		for _, tr := range sampling.BiasedUniqueSubset(rng, related, sampling.DrawSize(c), byID) {
			nodes = append(nodes, Recommendation{
				ContentID:         tr.ID,
				Origin:            OriginCoengagement,
				Timestamp:         s.now,
				EngagedItem:       e.ID,
				EngagedItemScore:  e.Weight,
				CoengagementScore: tr.Weight,
			})
		}
	}
	return nodes
}

func (s *candidateSource) coengagedProbability(quota float64, id storage.NodeID) float64 {
	if s.profile == nil {
		return 0
	}
	engaged := s.profile.Contents
	high, low := engagedRange(engaged)

	var p float64
	for _, e := range engaged {
		c := sampling.CalculateCount(high, low, e.Weight, quota)
		related := s.graph.GetRelated(storage.EdgeCoengaged, []storage.NodeID{e.ID}, storage.QueryOptions{})
		p = sampling.Union(p, positionProbability(related, c, id))
	}
	return p
}

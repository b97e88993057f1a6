package recommend

import (
	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// tasteRange returns the strongest and weakest topic weights, taken from
// the ends of the best-first topic list.
func tasteRange(topics []content.WeightedLabel) (high, low float64) {
	if len(topics) == 0 {
		return 0, 0
	}
	return topics[0].Weight, topics[len(topics)-1].Weight
}

// taste draws content uniformly from the topics the user likes. Stronger
// topics get a larger share of the quota.
func (s *candidateSource) taste(nodes []Recommendation, quota float64, rng sampling.Rand) []Recommendation {
	if s.profile == nil {
		return nodes
	}
	topics := s.profile.Topics.Topics
	high, low := tasteRange(topics)

	for _, t := range topics {
		if t.Weight <= 0 {
			continue
		}
		c := sampling.CalculateCount(high, low, t.Weight, quota)
		related := s.graph.GetRelated(storage.EdgeContent, []storage.NodeID{topicNodeID(t.Label)}, storage.QueryOptions{})
		for _, tr := range sampling.UniformUniqueSubset(rng, related, sampling.DrawSize(c), byID) {
			nodes = append(nodes, Recommendation{
				ContentID:     tr.ID,
				Origin:        OriginTopicAffinity,
				Timestamp:     s.now,
				Topic:         t.Label,
				TopicAffinity: t.Weight * tr.Weight,
			})
		}
	}
	return nodes
}

func (s *candidateSource) tasteProbability(quota float64, id storage.NodeID) float64 {
	if s.profile == nil {
		return 0
	}
	labels := make(map[string]struct{})
	for _, l := range s.graph.GetRelated(storage.EdgeTopic, []storage.NodeID{id}, storage.QueryOptions{}) {
		labels[content.TopicLabel(l.ID)] = struct{}{}
	}

	topics := s.profile.Topics.Topics
	high, low := tasteRange(topics)

	var p float64
	for _, t := range topics {
		if t.Weight <= 0 {
			continue
		}
		if _, ok := labels[t.Label]; !ok {
			continue
		}
		related := s.graph.GetRelated(storage.EdgeContent, []storage.NodeID{topicNodeID(t.Label)}, storage.QueryOptions{})
		if len(related) == 0 {
			continue
		}
		c := sampling.CalculateCount(high, low, t.Weight, quota)
		p = sampling.Union(p, sampling.InclusionProbability(1/float64(len(related)), c))
	}
	return p
}

func topicNodeID(label string) storage.NodeID {
	return storage.MakeNodeID(storage.NodeTypeTopic, label)
}

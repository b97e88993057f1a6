package recommend

import (
	"sort"

	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// SimilarUserCount is how many similar users the similar-user strategy
// draws from.
const SimilarUserCount = 5

type userSuggestion struct {
	storage.WeightedNode
	user       storage.NodeID
	similarity float64
}

// similarUserContent pools the content affinities of the users most similar
// to the profile, each weighted by the user's similarity, best first.
func (s *candidateSource) similarUserContent() []userSuggestion {
	if s.profile == nil || s.similar == nil || len(s.profile.Taste) == 0 {
		return nil
	}

	var results []userSuggestion
	for _, u := range s.similar.SearchSimilar(s.profile.Taste, SimilarUserCount) {
		if u.ID == s.profile.ID || u.Weight <= 0 {
			continue
		}
		up, ok := s.similar.UserProfile(u.ID)
		if !ok {
			continue
		}
		for _, b := range up.Contents {
			results = append(results, userSuggestion{
				WeightedNode: storage.WeightedNode{ID: b.ID, Weight: b.Weight * u.Weight},
				user:         u.ID,
				similarity:   u.Weight,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Weight > results[j].Weight })
	return results
}

// similarUsers draws from the favourite content of users with a similar
// taste.
func (s *candidateSource) similarUsers(nodes []Recommendation, quota float64, rng sampling.Rand) []Recommendation {
	pool := s.similarUserContent()
	picked := sampling.BiasedUniqueSubset(rng, pool, sampling.DrawSize(quota), func(u userSuggestion) storage.NodeID { return u.ID })
	for _, r := range picked {
		nodes = append(nodes, Recommendation{
			ContentID:           r.ID,
			Origin:              OriginSimilarUser,
			Timestamp:           s.now,
			SimilarUser:         r.user,
			UserSimilarityScore: r.similarity,
		})
	}
	return nodes
}

func (s *candidateSource) similarUsersProbability(quota float64, id storage.NodeID) float64 {
	suggestions := s.similarUserContent()
	pool := make([]storage.WeightedNode, len(suggestions))
	for i, u := range suggestions {
		pool[i] = u.WeightedNode
	}
	return positionProbability(pool, quota, id)
}

package recommend

import (
	"math"
	"sort"

	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// Select picks the items to serve from candidates ranked by ScoreCandidates.
//
// SelectionRank returns the first count items. SelectionDistribution, the
// default for an empty policy, draws count distinct items biased towards
// the top of the ranking, orders them by score and sets Diversity to the
// distance between an item's served position and its rank, as a fraction
// of the pool size.
//
// The returned slice is a copy; scored is not modified.
func Select(scored []ScoredRecommendation, count int, policy SelectionPolicy, rng sampling.Rand) []ScoredRecommendation {
	if count <= 0 || len(scored) == 0 {
		return nil
	}

	if policy == SelectionRank {
		n := min(count, len(scored))
		out := make([]ScoredRecommendation, n)
		copy(out, scored[:n])
		return out
	}

	subset := sampling.BiasedUniqueSubset(rng, scored, count, func(s ScoredRecommendation) storage.NodeID {
		return s.ContentID
	})
	sort.SliceStable(subset, func(i, j int) bool { return subset[i].Score > subset[j].Score })
	for ix := range subset {
		subset[ix].Diversity = math.Abs(float64(ix-subset[ix].Rank)) / float64(len(scored))
	}
	return subset
}

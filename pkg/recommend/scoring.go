package recommend

import (
	"math"
	"sort"

	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

const (
	// randComponent is the share of the score replaced by noise so that
	// equal scores do not keep a fixed order.
	randComponent = 0.001

	// Shape of the Beta distribution followed by distribution selection.
	selectionAlpha = 0.5
	selectionBeta  = 1
)

// FeatureWeights returns the weight of every feature for a profile: the
// enable flag from opts times the profile override, L1-normalised. When all
// weights are zero they are returned as they are.
func FeatureWeights(p *profile.UserProfile, opts ScoringOptions) map[Feature]float64 {
	weights := make(map[Feature]float64, len(Features))
	var sum float64
	for _, f := range Features {
		w := opts.enabled(f)
		if p != nil {
			w *= p.FeatureWeight(string(f))
		}
		weights[f] = w
		sum += w
	}
	if sum > 0 {
		for f, w := range weights {
			weights[f] = w / sum
		}
	}
	return weights
}

// calculateScores builds unsorted, unjittered scored recommendations.
func calculateScores(
	graph *storage.MemoryEngine,
	content ContentProvider,
	userID storage.NodeID,
	candidates []Recommendation,
	p *profile.UserProfile,
	opts ScoringOptions,
) ([]ScoredRecommendation, error) {
	features, err := MakeFeatures(graph, content, userID, candidates, p, opts)
	if err != nil {
		return nil, err
	}
	weights := FeatureWeights(p, opts)

	results := make([]ScoredRecommendation, len(candidates))
	for i, c := range candidates {
		scores := make(FeatureValues, len(Features))
		var total float64
		for _, f := range Features {
			s := features[i][f] * weights[f]
			scores[f] = s
			total += s
		}
		results[i] = ScoredRecommendation{
			Recommendation: c,
			Features:       features[i],
			Scores:         scores,
			Significance:   FeatureValues{},
			Score:          total,
		}
	}
	return results, nil
}

// ScoreCandidates computes features and scores for each candidate and
// returns them ranked by score, best first.
//
// A small random component is blended into every score so that ties are
// broken differently on every call. Rank is the 0-based position after
// sorting. Unless opts.ExcludeSignificance is set, each item also gets the
// significance of every feature for its rank.
//
// Returns ErrMissingProfile if p is nil.
func ScoreCandidates(
	graph *storage.MemoryEngine,
	content ContentProvider,
	userID storage.NodeID,
	candidates []Recommendation,
	p *profile.UserProfile,
	opts ScoringOptions,
	rng sampling.Rand,
) ([]ScoredRecommendation, error) {
	results, err := calculateScores(graph, content, userID, candidates, p, opts)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = (1-randComponent)*results[i].Score + randComponent*rng.Float64()
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		results[i].Rank = i
	}

	if !opts.ExcludeSignificance {
		calculateSignificance(results)
	}
	return results, nil
}

// calculateSignificance attributes each item's lead over the items ranked
// below it to the features. For every feature the score differences to all
// lower items are summed and floored at 0, then divided by the largest sum
// across features so the most significant feature scores 1.
func calculateSignificance(items []ScoredRecommendation) {
	for i := range items {
		sums := make(FeatureValues, len(Features))
		maxSig := math.Inf(-1)
		for _, f := range Features {
			var s float64
			for k := i + 1; k < len(items); k++ {
				s += items[i].Scores[f] - items[k].Scores[f]
			}
			sums[f] = s
			maxSig = math.Max(maxSig, s)
		}

		sig := make(FeatureValues, len(Features))
		for _, f := range Features {
			if maxSig > 0 {
				sig[f] = math.Max(0, sums[f]) / maxSig
			} else {
				sig[f] = 0
			}
		}
		items[i].Significance = sig
	}
}

// ScoringProbability estimates, for auditing, the probability that each
// candidate ends up among the count items served.
//
// Candidates are scored without jitter and ranked; equal scores share the
// rank of the first item in the group. Each candidate's CandidateProbability
// is combined with the probability of being picked at its rank:
//
//   - distribution: cp * (1 - BetaCDF((rank-0.5)/n; 0.5, 1)) / groupSize
//   - rank (default): with s = 1 - cp/count for the first item of every
//     higher-ranked group and prior the product of those s,
//     1 - (1 - cp*prior/count)^count
//
// Probabilities are finally normalised to sum to 1, or set to 1/n each when
// they are all zero. RelativeRank is set to rank/n.
//
// Returns ErrMissingProfile if p is nil.
func ScoringProbability(
	graph *storage.MemoryEngine,
	content ContentProvider,
	userID storage.NodeID,
	candidates []Recommendation,
	p *profile.UserProfile,
	count int,
	opts ScoringOptions,
) ([]ScoredRecommendation, error) {
	results, err := calculateScores(graph, content, userID, candidates, p, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	tally := make(map[int]int)
	for i := range results {
		if i == 0 || results[i].Score < results[i-1].Score {
			results[i].Rank = i
		} else {
			results[i].Rank = results[i-1].Rank
		}
		tally[results[i].Rank]++
	}

	n := float64(len(results))
	draws := float64(max(count, 1))

	if opts.Selection == SelectionDistribution {
		for i := range results {
			r := &results[i]
			x := (float64(r.Rank) - 0.5) / n
			pick := 1 - sampling.BetaCDF(x, selectionAlpha, selectionBeta)
			r.Probability = r.CandidateProbability * pick / float64(tally[r.Rank])
		}
	} else {
		prior := 1.0
		for i := 0; i < len(results); {
			rank := results[i].Rank
			j := i
			for ; j < len(results) && results[j].Rank == rank; j++ {
				pr := results[j].CandidateProbability * prior / draws
				results[j].Probability = 1 - math.Pow(1-pr, draws)
			}
			prior *= 1 - results[i].CandidateProbability/draws
			i = j
		}
	}

	var sum float64
	for i := range results {
		results[i].RelativeRank = float64(results[i].Rank) / n
		sum += results[i].Probability
	}
	for i := range results {
		if sum > 0 {
			results[i].Probability /= sum
		} else {
			results[i].Probability = 1 / n
		}
	}
	return results, nil
}

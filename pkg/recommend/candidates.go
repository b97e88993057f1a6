package recommend

import (
	"time"

	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// blendPasses is how many blended generation passes run before the random
// backfill.
const blendPasses = 2

// backfillOptions runs the random strategy alone with a quota of count.
var backfillOptions = CandidateOptions{Random: 2}

// candidateSource bundles the read-only inputs of one generation pass.
type candidateSource struct {
	graph   *storage.MemoryEngine
	content ContentProvider
	similar SimilarUserProvider
	profile *profile.UserProfile
	now     time.Time
}

func byID(w storage.WeightedNode) storage.NodeID { return w.ID }

// quotas returns the per-strategy quota count*w/sum. Quotas stay
// fractional; samplers draw their floor. A strategy with a quota below 1
// does not run.
func (o CandidateOptions) quotas(count int) (taste, coengaged, similar, popular, random float64) {
	sum := o.sum()
	if sum <= 0 || count <= 0 {
		return 0, 0, 0, 0, 0
	}
	q := func(w float64) float64 { return float64(count) * w / sum }
	return q(o.Taste), q(o.Coengaged), q(o.SimilarUsers), q(o.Popular), q(o.Random)
}

// GenerateCandidates produces up to count candidate recommendations for a
// user by blending the generation strategies.
//
// Each strategy gets a quota proportional to its weight in opts. The blend
// runs up to twice, keeping the first candidate seen for each content item.
// If fewer than count distinct items were found, one random backfill pass
// with quota count follows. The result may hold fewer than count items,
// down to none on an empty graph, in first-insertion order. Individual
// strategies may overshoot their quota, so the result may also hold more.
//
// similar may be nil, which disables the similar-user strategy. A nil
// profile disables every strategy that depends on the user.
//
// Example:
//
//	rng := sampling.NewRand(42)
//	cands := recommend.GenerateCandidates(graph, store, index, prof, 100, recommend.DefaultCandidateOptions(), rng)
//	for _, c := range cands {
//		fmt.Println(c.ContentID, c.Origin)
//	}
func GenerateCandidates(
	graph *storage.MemoryEngine,
	content ContentProvider,
	similar SimilarUserProvider,
	p *profile.UserProfile,
	count int,
	opts CandidateOptions,
	rng sampling.Rand,
) []Recommendation {
	src := &candidateSource{graph: graph, content: content, similar: similar, profile: p, now: graph.Now()}

	selected := make(map[storage.NodeID]struct{})
	var out []Recommendation
	merge := func(batch []Recommendation) {
		for _, r := range batch {
			if _, dup := selected[r.ContentID]; dup {
				continue
			}
			selected[r.ContentID] = struct{}{}
			out = append(out, r)
		}
	}

	for pass := 0; pass < blendPasses && len(out) < count; pass++ {
		merge(src.blend(count, opts, rng))
	}
	if len(out) < count {
		merge(src.blend(count, backfillOptions, rng))
	}
	return out
}

// blend runs every strategy whose quota is at least 1, in fixed order.
func (s *candidateSource) blend(count int, opts CandidateOptions, rng sampling.Rand) []Recommendation {
	qTaste, qCoengaged, qSimilar, qPopular, qRandom := opts.quotas(count)

	var nodes []Recommendation
	if qTaste >= 1 {
		nodes = s.taste(nodes, qTaste, rng)
	}
	if qCoengaged >= 1 {
		nodes = s.coengaged(nodes, qCoengaged, rng)
	}
	if qSimilar >= 1 {
		nodes = s.similarUsers(nodes, qSimilar, rng)
	}
	if qPopular >= 1 {
		nodes = s.popular(nodes, qPopular, rng)
	}
	if qRandom >= 1 {
		nodes = s.random(nodes, qRandom, rng)
	}
	return nodes
}

// CandidateProbability estimates the probability that GenerateCandidates
// with the same inputs yields the given content item in a single blended
// pass.
//
// Each strategy whose quota is at least 1 contributes its own inclusion
// estimate and the estimates are combined as independent events with
// sampling.Union, in the order taste, co-engagement, random, similar users,
// popular.
func CandidateProbability(
	graph *storage.MemoryEngine,
	content ContentProvider,
	similar SimilarUserProvider,
	p *profile.UserProfile,
	count int,
	opts CandidateOptions,
	id storage.NodeID,
) float64 {
	src := &candidateSource{graph: graph, content: content, similar: similar, profile: p, now: graph.Now()}
	qTaste, qCoengaged, qSimilar, qPopular, qRandom := opts.quotas(count)

	var probs [5]float64
	if qTaste >= 1 {
		probs[0] = src.tasteProbability(qTaste, id)
	}
	if qCoengaged >= 1 {
		probs[1] = src.coengagedProbability(qCoengaged, id)
	}
	if qRandom >= 1 {
		probs[2] = src.randomProbability(qRandom)
	}
	if qSimilar >= 1 {
		probs[3] = src.similarUsersProbability(qSimilar, id)
	}
	if qPopular >= 1 {
		probs[4] = src.popularProbability(qPopular, id)
	}
	return sampling.Union(probs[:]...)
}

// AnnotateCandidateProbabilities sets CandidateProbability on every
// candidate in place.
func AnnotateCandidateProbabilities(
	graph *storage.MemoryEngine,
	content ContentProvider,
	similar SimilarUserProvider,
	p *profile.UserProfile,
	count int,
	opts CandidateOptions,
	candidates []Recommendation,
) {
	for i := range candidates {
		candidates[i].CandidateProbability = CandidateProbability(graph, content, similar, p, count, opts, candidates[i].ContentID)
	}
}

// positionProbability folds the biased-draw inclusion probability of every
// position in a best-first pool whose id matches.
func positionProbability(pool []storage.WeightedNode, quota float64, id storage.NodeID) float64 {
	var p float64
	for ix, w := range pool {
		if w.ID != id {
			continue
		}
		p = sampling.Union(p, sampling.InclusionProbability(sampling.BetaProbability(ix, len(pool)), quota))
	}
	return p
}

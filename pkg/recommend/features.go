package recommend

import (
	"math"
	"time"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/storage"
)

const (
	// baseEmbeddingSimilarity is the similarity any two embeddings tend to
	// have. Taste scores only count similarity above it.
	baseEmbeddingSimilarity = 0.8
	// coengagementNeighbours caps the co-engaged items inspected per
	// candidate.
	coengagementNeighbours = 30
	// coengagementMax is the engagement sum that saturates the
	// co-engagement feature.
	coengagementMax = 4
	// seenTime is the age at which a seen or engaged item stops being
	// penalised.
	seenTime = 10 * time.Minute
	// popularityFloor replaces a zero maximum engagement.
	popularityFloor = 0.01
)

// topicAffinity maps topic labels to the user's affinity for them.
type topicAffinity map[string]float64

func newTopicAffinity(labels []content.WeightedLabel) topicAffinity {
	a := make(topicAffinity, len(labels))
	for _, l := range labels {
		a[l.Label] += l.Weight
	}
	return a
}

// score sums affinity times membership weight over the content's topics.
func (a topicAffinity) score(topics []storage.WeightedNode) float64 {
	var sum float64
	for _, t := range topics {
		sum += a[content.TopicLabel(t.ID)] * t.Weight
	}
	return sum
}

// featureExtractor computes feature values for the candidates of one user.
type featureExtractor struct {
	graph   *storage.MemoryEngine
	content ContentProvider
	user    storage.NodeID
	profile *profile.UserProfile
	opts    ScoringOptions
	now     time.Time

	affinities map[Feature]topicAffinity
}

func newFeatureExtractor(graph *storage.MemoryEngine, content ContentProvider, user storage.NodeID, p *profile.UserProfile, opts ScoringOptions) *featureExtractor {
	return &featureExtractor{
		graph:   graph,
		content: content,
		user:    user,
		profile: p,
		opts:    opts,
		now:     graph.Now(),
		affinities: map[Feature]topicAffinity{
			FeatureSharing:    newTopicAffinity(p.Topics.SharedTopics),
			FeatureCommenting: newTopicAffinity(p.Topics.CommentedTopics),
			FeatureFollowing:  newTopicAffinity(p.Topics.FollowedTopics),
			FeatureReaction:   newTopicAffinity(p.Topics.ReactedTopics),
			FeatureViewing:    newTopicAffinity(p.Topics.ViewedTopics),
		},
	}
}

// extract returns the feature values of one content item. Disabled and
// unavailable features are absent.
func (x *featureExtractor) extract(id storage.NodeID) FeatureValues {
	f := make(FeatureValues, len(Features))

	if !x.opts.NoTasteScore {
		if v, ok := x.taste(id); ok {
			f[FeatureTaste] = v
		}
	}

	topics := x.graph.GetRelated(storage.EdgeTopic, []storage.NodeID{id}, storage.QueryOptions{})
	for feature, aff := range x.affinities {
		if x.opts.enabled(feature) == 0 {
			continue
		}
		f[feature] = aff.score(topics)
	}

	f[FeatureRandom] = 0

	if !x.opts.NoCoengagementScore {
		f[FeatureCoengagement] = x.coengagement(id)
	}
	if !x.opts.NoLastSeenScore {
		f[FeatureLastSeen] = x.since(storage.EdgeSeen, id)
	}
	if !x.opts.NoLastEngagedScore {
		f[FeatureLastEngaged] = x.since(storage.EdgeLastEngaged, id)
	}

	if x.opts.NoPopularity {
		f[FeaturePopularity] = 0
	} else {
		maxEngagement := x.content.MaxContentEngagement()
		if maxEngagement == 0 {
			maxEngagement = popularityFloor
		}
		f[FeaturePopularity] = x.content.ContentStats(id).Engagement / maxEngagement
	}
	return f
}

// taste rescales the similarity of the item to the user's taste so that
// only similarity above baseEmbeddingSimilarity counts.
func (x *featureExtractor) taste(id storage.NodeID) (float64, bool) {
	if len(x.profile.Taste) == 0 {
		return 0, false
	}
	meta, ok := x.content.ContentMetadata(id)
	if !ok || len(meta.Embedding) == 0 {
		return 0, false
	}
	sim := vector.CosineSimilarity(meta.Embedding, x.profile.Taste)
	return math.Max(0, (sim-baseEmbeddingSimilarity)/(1-baseEmbeddingSimilarity)), true
}

// coengagement measures how much the user engaged with items commonly
// engaged with alongside this one.
func (x *featureExtractor) coengagement(id storage.NodeID) float64 {
	var sum float64
	for _, n := range x.graph.GetRelated(storage.EdgeCoengaged, []storage.NodeID{id}, storage.QueryOptions{Count: coengagementNeighbours}) {
		sum += x.graph.GetEdgeWeight(storage.EdgeEngaged, x.user, n.ID)
	}
	return math.Min(1, sum/coengagementMax)
}

// since is 1 when the user has no edge of type t to the item, otherwise the
// edge age as a fraction of seenTime, capped at 1.
func (x *featureExtractor) since(t storage.EdgeType, id storage.NodeID) float64 {
	e := x.graph.GetEdge(t, x.user, id)
	if e == nil {
		return 1
	}
	age := max(0, x.now.Sub(e.Timestamp))
	return math.Min(1, float64(age)/float64(seenTime))
}

// MakeFeatures returns the feature values of each candidate, in candidate
// order.
func MakeFeatures(
	graph *storage.MemoryEngine,
	content ContentProvider,
	userID storage.NodeID,
	candidates []Recommendation,
	p *profile.UserProfile,
	opts ScoringOptions,
) ([]FeatureValues, error) {
	if p == nil {
		return nil, ErrMissingProfile
	}
	x := newFeatureExtractor(graph, content, userID, p, opts)
	out := make([]FeatureValues, len(candidates))
	for i, c := range candidates {
		out[i] = x.extract(c.ContentID)
	}
	return out, nil
}

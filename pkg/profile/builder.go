package profile

import (
	"time"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// Builder defaults.
const (
	// AffinityWindow is the decaying window over which affinities are
	// gathered.
	AffinityWindow = time.Hour
	// AffinityDecay is the fraction of weight lost per window.
	AffinityDecay = 0.2
	// AffinityCount caps each affinity list.
	AffinityCount = 10
	// TasteEngagements caps the engaged items averaged into the taste
	// embedding.
	TasteEngagements = 50
)

// MetadataSource looks up content metadata for taste embeddings.
type MetadataSource interface {
	ContentMetadata(id storage.NodeID) (*content.Metadata, bool)
}

// Build derives a profile for a user from the graph.
//
// Topic affinities come from the user's topic edges of each interaction
// kind, content affinities from "engaged" edges, all decayed over
// AffinityWindow. The taste embedding is the engagement-weighted mean of
// the engaged items' embeddings, normalised. Engagement is the sum of the
// content affinities.
//
// When base is non-nil its identity, name and feature weights are kept.
func Build(graph *storage.MemoryEngine, meta MetadataSource, id storage.NodeID, base *UserProfile) *UserProfile {
	p := &UserProfile{ID: id}
	if base != nil {
		p.Name = base.Name
		p.FeatureWeights = base.FeatureWeights
		p.FollowerCount = base.FollowerCount
		p.FollowsCount = base.FollowsCount
		p.Users = base.Users
	}
	if data, ok := graph.NodeData(id).(*storage.UserData); ok {
		if p.Name == "" {
			p.Name = data.Name
		}
		p.FollowerCount = max(p.FollowerCount, data.FollowerCount)
		p.FollowsCount = max(p.FollowsCount, data.FollowsCount)
	}

	opts := storage.QueryOptions{Count: AffinityCount, Period: AffinityWindow, TimeDecay: AffinityDecay}
	labels := func(t storage.EdgeType, o storage.QueryOptions) []content.WeightedLabel {
		related := graph.GetRelated(t, []storage.NodeID{id}, o)
		out := make([]content.WeightedLabel, len(related))
		for i, r := range related {
			out[i] = content.WeightedLabel{Label: content.TopicLabel(r.ID), Weight: r.Weight}
		}
		return out
	}
	seen := opts
	seen.Count = 0

	p.Topics = TopicAffinities{
		Topics:          labels(storage.EdgeTopic, opts),
		SeenTopics:      labels(storage.EdgeSeenTopic, seen),
		CommentedTopics: labels(storage.EdgeCommentedTopic, opts),
		SharedTopics:    labels(storage.EdgeSharedTopic, opts),
		ReactedTopics:   labels(storage.EdgeReactedTopic, opts),
		FollowedTopics:  labels(storage.EdgeFollowedTopic, opts),
		ViewedTopics:    labels(storage.EdgeViewedTopic, opts),
	}
	p.Contents = graph.GetRelated(storage.EdgeEngaged, []storage.NodeID{id}, opts)

	for _, c := range p.Contents {
		p.Engagement += c.Weight
	}
	p.Taste = tasteEmbedding(graph, meta, id)
	p.LastUpdated = graph.Now()
	return p
}

func tasteEmbedding(graph *storage.MemoryEngine, meta MetadataSource, id storage.NodeID) []float64 {
	if meta == nil {
		return nil
	}
	engaged := graph.GetRelated(storage.EdgeEngaged, []storage.NodeID{id}, storage.QueryOptions{
		Count:     TasteEngagements,
		Period:    AffinityWindow,
		TimeDecay: AffinityDecay,
	})

	var vecs [][]float64
	var weights []float64
	for _, e := range engaged {
		if e.Weight <= 0 {
			continue
		}
		m, ok := meta.ContentMetadata(e.ID)
		if !ok || len(m.Embedding) == 0 {
			continue
		}
		vecs = append(vecs, m.Embedding)
		weights = append(weights, e.Weight)
	}

	mean := vector.WeightedMean(vecs, weights)
	if mean == nil {
		return nil
	}
	return vector.Normalize(mean)
}

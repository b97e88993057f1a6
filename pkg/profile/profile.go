// Package profile holds the user profile snapshot consumed by the
// recommender, together with reference implementations of the profiler
// collaborator: a similar-user index, a graph-backed profile builder and
// user clustering.
//
// A profile is an immutable input for one generation or scoring pass.
// Rebuild it with Build whenever the user's activity has changed, then
// publish it with Index.Add.
package profile

import (
	"time"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// TopicAffinities are the user's weighted topic lists, one per interaction
// kind, strongest first.
type TopicAffinities struct {
	Topics          []content.WeightedLabel `json:"topics,omitempty"`
	SeenTopics      []content.WeightedLabel `json:"seenTopics,omitempty"`
	CommentedTopics []content.WeightedLabel `json:"commentedTopics,omitempty"`
	SharedTopics    []content.WeightedLabel `json:"sharedTopics,omitempty"`
	ReactedTopics   []content.WeightedLabel `json:"reactedTopics,omitempty"`
	FollowedTopics  []content.WeightedLabel `json:"followedTopics,omitempty"`
	ViewedTopics    []content.WeightedLabel `json:"viewedTopics,omitempty"`
}

// UserProfile is a snapshot of what the recommender knows about a user.
type UserProfile struct {
	ID   storage.NodeID `json:"id"`
	Name string         `json:"name"`

	// Taste is the unit-length taste embedding.
	Taste []float64 `json:"taste,omitempty"`

	Topics TopicAffinities `json:"topics"`
	// Contents are the user's content affinities, strongest first.
	Contents []storage.WeightedNode `json:"contents,omitempty"`
	// Users are the user's affinities with other users.
	Users []storage.WeightedNode `json:"users,omitempty"`

	// FeatureWeights overrides the weight of a scoring feature by name.
	// Missing features default to 1.
	FeatureWeights map[string]float64 `json:"featureWeights,omitempty"`

	Engagement    float64   `json:"engagement"`
	LastUpdated   time.Time `json:"lastUpdated"`
	FollowerCount int       `json:"followerCount,omitempty"`
	FollowsCount  int       `json:"followsCount,omitempty"`
}

// FeatureWeight returns the override for a feature, or 1.
func (p *UserProfile) FeatureWeight(feature string) float64 {
	if w, ok := p.FeatureWeights[feature]; ok {
		return w
	}
	return 1
}

// ColdStartFactor measures how little engagement the profile is based on:
// 1 for a user without engagement, approaching 0 as engagement grows.
func (p *UserProfile) ColdStartFactor() float64 {
	if p.Engagement < 0 {
		return 1
	}
	return 1 / (1 + p.Engagement)
}

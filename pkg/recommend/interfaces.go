package recommend

import (
	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// ContentProvider supplies content metadata and engagement statistics.
// *content.Store implements it.
type ContentProvider interface {
	ContentMetadata(id storage.NodeID) (*content.Metadata, bool)
	ContentStats(id storage.NodeID) content.Stats
	MaxContentEngagement() float64
}

// ProfileSource resolves the current profile of a user.
// *profile.Index implements it.
type ProfileSource interface {
	UserProfile(id storage.NodeID) (*profile.UserProfile, bool)
}

// SimilarUserProvider finds users by taste similarity.
// *profile.Index implements it.
type SimilarUserProvider interface {
	ProfileSource
	SearchSimilar(embedding []float64, count int) []storage.WeightedNode
}

var (
	_ ContentProvider     = (*content.Store)(nil)
	_ SimilarUserProvider = (*profile.Index)(nil)
)

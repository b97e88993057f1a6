package profile

import (
	"fmt"

	"github.com/orneryd/feedgraph/pkg/cluster"
	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// Lookup resolves a user's published profile.
type Lookup interface {
	UserProfile(id storage.NodeID) (*UserProfile, bool)
}

// ClusterUsers groups users into at most k clusters by taste embedding.
//
// Users without a profile or taste embedding are left out. Each clustered
// user maps to the label "cluster<i>" with weight 1, where clusters are
// numbered in order of their first member in users.
//
// Example:
//
//	labels := profile.ClusterUsers(index, index.Users(), 4)
//	fmt.Println(labels["user:alice"].Label) // "cluster0"
func ClusterUsers(src Lookup, users []storage.NodeID, k int) map[storage.NodeID]content.WeightedLabel {
	result := make(map[storage.NodeID]content.WeightedLabel)

	var ids []storage.NodeID
	var embeddings [][]float64
	for _, u := range users {
		p, ok := src.UserProfile(u)
		if !ok || len(p.Taste) == 0 {
			continue
		}
		ids = append(ids, u)
		embeddings = append(embeddings, p.Taste)
	}

	for ix, members := range cluster.Hierarchical(embeddings, cluster.Config{K: k}) {
		label := content.WeightedLabel{Label: fmt.Sprintf("cluster%d", ix), Weight: 1}
		for _, m := range members {
			result[ids[m]] = label
		}
	}
	return result
}

package profile

import (
	"sort"
	"sync"

	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// Index stores published profiles and answers similar-user queries by
// taste embedding.
//
// Search is a linear scan with cosine similarity, adequate for the
// thousands of users a simulation holds.
//
// Thread Safety:
//
//	Safe for concurrent use. Profiles are replaced, never mutated, by Add.
type Index struct {
	mu       sync.RWMutex
	profiles map[storage.NodeID]*UserProfile
	order    []storage.NodeID
}

// NewIndex creates an empty profile index.
func NewIndex() *Index {
	return &Index{profiles: make(map[storage.NodeID]*UserProfile)}
}

// Add publishes a profile, replacing any previous one for the same user.
func (x *Index) Add(p *UserProfile) {
	if p == nil || p.ID == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.profiles[p.ID]; !exists {
		x.order = append(x.order, p.ID)
	}
	x.profiles[p.ID] = p
}

// Remove drops the profile of a user.
func (x *Index) Remove(id storage.NodeID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.profiles[id]; !exists {
		return
	}
	delete(x.profiles, id)
	for i, v := range x.order {
		if v == id {
			x.order = append(x.order[:i:i], x.order[i+1:]...)
			break
		}
	}
}

// UserProfile returns the published profile of a user.
func (x *Index) UserProfile(id storage.NodeID) (*UserProfile, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.profiles[id]
	return p, ok
}

// Users returns every indexed user in publication order.
func (x *Index) Users() []storage.NodeID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]storage.NodeID, len(x.order))
	copy(out, x.order)
	return out
}

// Len returns the number of indexed profiles.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.profiles)
}

// SearchSimilar returns up to count users ranked by cosine similarity of
// their taste embedding to the given one, most similar first. Users without
// a taste embedding are skipped. A count of 0 returns all.
func (x *Index) SearchSimilar(embedding []float64, count int) []storage.WeightedNode {
	x.mu.RLock()
	results := make([]storage.WeightedNode, 0, len(x.order))
	for _, id := range x.order {
		p := x.profiles[id]
		if len(p.Taste) == 0 {
			continue
		}
		results = append(results, storage.WeightedNode{ID: id, Weight: vector.CosineSimilarity(embedding, p.Taste)})
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Weight > results[j].Weight })
	if count > 0 && len(results) > count {
		results = results[:count]
	}
	return results
}

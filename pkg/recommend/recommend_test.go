package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture is a graph with its content store and profile index, on a fixed
// clock.
type fixture struct {
	graph *storage.MemoryEngine
	store *content.Store
	index *profile.Index
}

func newTestRand() sampling.Rand {
	return sampling.NewRand(42)
}

func newFixture() *fixture {
	graph := storage.NewMemoryEngine(storage.WithClock(func() time.Time { return testNow }))
	return &fixture{
		graph: graph,
		store: content.NewStore(graph, nil),
		index: profile.NewIndex(),
	}
}

func (f *fixture) addContent(t *testing.T, id string, embedding ...float64) storage.NodeID {
	t.Helper()
	meta := &content.Metadata{ID: id}
	if len(embedding) > 0 {
		meta.Embedding = embedding
	}
	cid, err := f.store.AddContent(meta)
	require.NoError(t, err)
	return cid
}

func (f *fixture) addProfile(id storage.NodeID, taste ...float64) *profile.UserProfile {
	p := &profile.UserProfile{ID: id, Name: "TestUser"}
	if len(taste) > 0 {
		p.Taste = vector.Normalize(taste)
	}
	f.index.Add(p)
	return p
}

func (f *fixture) generate(p *profile.UserProfile, count int, opts CandidateOptions) []Recommendation {
	return GenerateCandidates(f.graph, f.store, f.index, p, count, opts, newTestRand())
}

func (f *fixture) probability(p *profile.UserProfile, count int, opts CandidateOptions, id storage.NodeID) float64 {
	return CandidateProbability(f.graph, f.store, f.index, p, count, opts, id)
}

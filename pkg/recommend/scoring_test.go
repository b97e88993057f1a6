package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// allDisabled turns off every feature that varies between items.
var allDisabled = ScoringOptions{
	NoTasteScore:        true,
	NoPopularity:        true,
	NoViewingScore:      true,
	NoCoengagementScore: true,
	NoFollowingScore:    true,
	NoCommentingScore:   true,
	NoReactionScore:     true,
	NoSharingScore:      true,
}

func randomCandidates(n int, cp float64) []Recommendation {
	out := make([]Recommendation, n)
	for i := range out {
		out[i] = Recommendation{
			ContentID:            storage.MakeNodeID(storage.NodeTypeContent, string(rune('1'+i))),
			Origin:               OriginRandom,
			Timestamp:            testNow,
			CandidateProbability: cp,
		}
	}
	return out
}

func TestFeatureWeights(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := FeatureWeights(&profile.UserProfile{}, ScoringOptions{})
		assert.Equal(t, 0.0, w[FeatureRandom])
		assert.InDelta(t, 0.1, w[FeatureTaste], 1e-12)

		var sum float64
		for _, v := range w {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	})

	t.Run("profile overrides", func(t *testing.T) {
		p := &profile.UserProfile{FeatureWeights: map[string]float64{"taste": 3}}
		w := FeatureWeights(p, allDisabled)
		assert.Equal(t, 0.0, w[FeatureTaste])
		assert.InDelta(t, 0.5, w[FeatureLastSeen], 1e-12)
		assert.InDelta(t, 0.5, w[FeatureLastEngaged], 1e-12)
	})

	t.Run("all zero stays unnormalised", func(t *testing.T) {
		opts := allDisabled
		opts.NoLastSeenScore = true
		opts.NoLastEngagedScore = true
		w := FeatureWeights(&profile.UserProfile{}, opts)
		for _, f := range Features {
			assert.Equal(t, 0.0, w[f], string(f))
		}
	})
}

func TestScoreCandidates(t *testing.T) {
	t.Run("calculates a taste score if no taste available", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		cands := []Recommendation{{ContentID: "content:xyz", Origin: OriginTopicAffinity, Timestamp: testNow}}

		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{
			NoLastSeenScore:    true,
			NoLastEngagedScore: true,
		}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.LessOrEqual(t, scored[0].Score, 0.15)
		assert.NotContains(t, scored[0].Features, FeatureTaste)
		assert.NotContains(t, scored[0].Features, FeatureLastSeen)
	})

	t.Run("calculates a taste score correctly", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz", 0.8, 0.2)
		cid := f.addContent(t, "xyz2", vector.Normalize([]float64{0.9, 0.1})...)
		cands := []Recommendation{{ContentID: cid, Origin: OriginTopicAffinity, Timestamp: testNow}}

		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{
			NoLastEngagedScore: true,
			NoLastSeenScore:    true,
		}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.Greater(t, scored[0].Score, 0.0)
		assert.Greater(t, scored[0].Features[FeatureTaste], 0.01)
	})

	t.Run("calculates prior engagement penalty", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		_, err := f.graph.AddNode(storage.NodeTypeUser, p.ID, &storage.UserData{Name: "TestUser"})
		require.NoError(t, err)
		cid := f.addContent(t, "xyz2", 0.9, 0.1)
		f.graph.AddOrAccumulateEdge(storage.EdgeLastEngaged, p.ID, cid, 1, testNow.Add(-10*time.Second))
		cands := []Recommendation{{ContentID: cid, Origin: OriginTopicAffinity, Timestamp: testNow}}

		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{NoLastSeenScore: true}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.Less(t, scored[0].Features[FeatureLastEngaged], 0.1)
	})

	t.Run("calculates a popularity score correctly", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz", 0.8, 0.2)
		cid := f.addContent(t, "xyz2", 0.9, 0.1)
		other := f.addContent(t, "xyz", 0.9, 0.1)
		f.store.UpdateStats(cid, content.Stats{Engagement: 0.8})
		f.store.UpdateStats(other, content.Stats{Engagement: 2})
		cands := []Recommendation{{ContentID: cid, Origin: OriginTopicAffinity, Timestamp: testNow}}

		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.Greater(t, scored[0].Score, 0.0)
		assert.InDelta(t, 0.4, scored[0].Features[FeaturePopularity], 1e-12)
	})

	t.Run("topic affinity and coengagement features", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		p.Topics.ViewedTopics = []content.WeightedLabel{{Label: "cats", Weight: 0.5}}
		p.Topics.SharedTopics = []content.WeightedLabel{{Label: "dogs", Weight: 1}}
		_, err := f.graph.AddNode(storage.NodeTypeUser, p.ID, nil)
		require.NoError(t, err)

		_, err = f.store.AddContent(&content.Metadata{
			ID:     "pet",
			Labels: []content.WeightedLabel{{Label: "cats", Weight: 0.8}},
		})
		require.NoError(t, err)
		liked := f.addContent(t, "liked")
		f.graph.AddEdge(storage.EdgeCoengaged, "content:pet", liked, 1, time.Time{})
		f.graph.AddEdge(storage.EdgeEngaged, p.ID, liked, 2, time.Time{})

		cands := []Recommendation{{ContentID: "content:pet", Origin: OriginRandom, Timestamp: testNow}}
		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{NoSharingScore: true}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 1)

		feats := scored[0].Features
		assert.InDelta(t, 0.4, feats[FeatureViewing], 1e-12)
		assert.Equal(t, 0.0, feats[FeatureCommenting])
		assert.NotContains(t, feats, FeatureSharing)
		assert.InDelta(t, 0.5, feats[FeatureCoengagement], 1e-12)
		assert.Equal(t, 1.0, feats[FeatureLastSeen])
		assert.Equal(t, 0.0, feats[FeatureRandom])
	})

	t.Run("ranks by score", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		var cands []Recommendation
		for i, e := range []float64{1, 5, 3} {
			cid := f.addContent(t, string(rune('a'+i)))
			f.store.UpdateStats(cid, content.Stats{Engagement: e})
			cands = append(cands, Recommendation{ContentID: cid, Origin: OriginPopular})
		}

		scored, err := ScoreCandidates(f.graph, f.store, p.ID, cands, p, ScoringOptions{}, newTestRand())
		require.NoError(t, err)
		require.Len(t, scored, 3)
		assert.Equal(t, storage.NodeID("content:b"), scored[0].ContentID)
		assert.Equal(t, storage.NodeID("content:c"), scored[1].ContentID)
		assert.Equal(t, storage.NodeID("content:a"), scored[2].ContentID)
		for i, s := range scored {
			assert.Equal(t, i, s.Rank)
		}

		assert.Equal(t, 1.0, scored[0].Significance[FeaturePopularity])
		assert.Equal(t, 0.0, scored[0].Significance[FeatureLastSeen])
		for _, f := range Features {
			assert.Equal(t, 0.0, scored[2].Significance[f])
		}
	})

	t.Run("exclude significance", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		scored, err := ScoreCandidates(f.graph, f.store, p.ID, randomCandidates(3, 0), p, ScoringOptions{ExcludeSignificance: true}, newTestRand())
		require.NoError(t, err)
		for _, s := range scored {
			assert.Empty(t, s.Significance)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		f := newFixture()
		_, err := ScoreCandidates(f.graph, f.store, "user:xyz", randomCandidates(1, 0), nil, ScoringOptions{}, newTestRand())
		assert.ErrorIs(t, err, ErrMissingProfile)
	})
}

func TestScoringProbability(t *testing.T) {
	t.Run("calculates a random rank probability correctly", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		opts := allDisabled
		opts.Selection = SelectionRank

		scored, err := ScoringProbability(f.graph, f.store, p.ID, randomCandidates(4, 0.1), p, 1, opts)
		require.NoError(t, err)
		require.Len(t, scored, 4)
		assert.Equal(t, scored[1].Probability, scored[2].Probability)
		assert.InDelta(t, 0.25, scored[0].Probability, 1e-12)
		for _, s := range scored {
			assert.Equal(t, 0, s.Rank)
			assert.Equal(t, 0.0, s.RelativeRank)
		}
	})

	t.Run("calculates a random distribution probability correctly", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		opts := allDisabled
		opts.Selection = SelectionDistribution

		scored, err := ScoringProbability(f.graph, f.store, p.ID, randomCandidates(4, 0.1), p, 1, opts)
		require.NoError(t, err)
		require.Len(t, scored, 4)
		assert.Equal(t, scored[1].Probability, scored[2].Probability)

		var sum float64
		for _, s := range scored {
			sum += s.Probability
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	})

	t.Run("higher ranks are more likely", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		var cands []Recommendation
		for i, e := range []float64{1, 4, 2, 3} {
			cid := f.addContent(t, string(rune('a'+i)))
			f.store.UpdateStats(cid, content.Stats{Engagement: e})
			cands = append(cands, Recommendation{ContentID: cid, Origin: OriginPopular, CandidateProbability: 0.5})
		}

		for _, sel := range []SelectionPolicy{SelectionRank, SelectionDistribution} {
			opts := ScoringOptions{Selection: sel}
			scored, err := ScoringProbability(f.graph, f.store, p.ID, cands, p, 2, opts)
			require.NoError(t, err)
			require.Len(t, scored, 4)
			assert.Equal(t, storage.NodeID("content:b"), scored[0].ContentID)

			var sum float64
			for i, s := range scored {
				sum += s.Probability
				assert.Equal(t, i, s.Rank)
				assert.InDelta(t, float64(i)/4, s.RelativeRank, 1e-12)
				if i > 0 {
					assert.Less(t, s.Probability, scored[i-1].Probability, string(sel))
				}
			}
			assert.InDelta(t, 1.0, sum, 1e-12)
		}
	})

	t.Run("zero candidate probability is uniform", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")

		scored, err := ScoringProbability(f.graph, f.store, p.ID, randomCandidates(4, 0), p, 1, allDisabled)
		require.NoError(t, err)
		for _, s := range scored {
			assert.Equal(t, 0.25, s.Probability)
		}
	})

	t.Run("empty", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")
		scored, err := ScoringProbability(f.graph, f.store, p.ID, nil, p, 1, ScoringOptions{})
		require.NoError(t, err)
		assert.Empty(t, scored)
	})
}

func TestSelect(t *testing.T) {
	scored := make([]ScoredRecommendation, 10)
	for i := range scored {
		scored[i] = ScoredRecommendation{
			Recommendation: Recommendation{ContentID: storage.MakeNodeID(storage.NodeTypeContent, string(rune('a'+i)))},
			Score:          1 - float64(i)/10,
			Rank:           i,
		}
	}

	t.Run("rank", func(t *testing.T) {
		out := Select(scored, 3, SelectionRank, newTestRand())
		require.Len(t, out, 3)
		for i, s := range out {
			assert.Equal(t, i, s.Rank)
			assert.Equal(t, 0.0, s.Diversity)
		}
		assert.Len(t, Select(scored, 20, SelectionRank, newTestRand()), 10)
	})

	t.Run("distribution", func(t *testing.T) {
		out := Select(scored, 4, "", newTestRand())
		require.Len(t, out, 4)
		seen := make(map[storage.NodeID]bool)
		for i, s := range out {
			assert.False(t, seen[s.ContentID])
			seen[s.ContentID] = true
			if i > 0 {
				assert.LessOrEqual(t, s.Score, out[i-1].Score)
			}
			assert.InDelta(t, float64(abs(i-s.Rank))/10, s.Diversity, 1e-12)
		}
		for _, s := range scored {
			assert.Equal(t, 0.0, s.Diversity, "input is not modified")
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Select(nil, 3, SelectionRank, newTestRand()))
		assert.Nil(t, Select(scored, 0, SelectionDistribution, newTestRand()))
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestScoringOptionsDisable(t *testing.T) {
	var opts ScoringOptions
	require.NoError(t, opts.Disable(FeatureTaste, FeatureLastSeen))
	assert.True(t, opts.NoTasteScore)
	assert.True(t, opts.NoLastSeenScore)
	assert.Equal(t, 0.0, opts.enabled(FeatureTaste))
	assert.Equal(t, 1.0, opts.enabled(FeaturePopularity))

	err := opts.Disable(FeaturePopularity, "colour", FeatureRandom)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Contains(t, err.Error(), "colour, random")
	assert.True(t, opts.NoPopularity)
}

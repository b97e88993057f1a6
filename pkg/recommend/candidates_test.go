package recommend

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/storage"
)

func TestCandidateOptionsQuotas(t *testing.T) {
	tests := []struct {
		name  string
		opts  CandidateOptions
		count int
		want  [5]float64
	}{
		{"equal weights", DefaultCandidateOptions(), 10, [5]float64{2, 2, 2, 2, 2}},
		{"fractional", CandidateOptions{Taste: 1, Random: 2}, 10, [5]float64{10.0 / 3, 0, 0, 0, 20.0 / 3}},
		{"zero sum", CandidateOptions{}, 10, [5]float64{}},
		{"zero count", DefaultCandidateOptions(), 0, [5]float64{}},
		{"backfill", backfillOptions, 7, [5]float64{0, 0, 0, 0, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, c, d, e := tt.opts.quotas(tt.count)
			got := [5]float64{a, b, c, d, e}
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestGenerateCandidates(t *testing.T) {
	t.Run("returns no candidates if there is no data", func(t *testing.T) {
		f := newFixture()
		p := f.addProfile("user:xyz")

		cands := f.generate(p, 10, DefaultCandidateOptions())
		assert.Empty(t, cands)
	})

	t.Run("returns a random candidate if no other candidates", func(t *testing.T) {
		f := newFixture()
		f.addContent(t, "ggg")
		p := f.addProfile("user:xyz")

		opts := DefaultCandidateOptions()
		opts.Popular = 0
		cands := f.generate(p, 10, opts)
		require.Len(t, cands, 1)
		assert.Equal(t, OriginRandom, cands[0].Origin)
		assert.Equal(t, storage.NodeID("content:ggg"), cands[0].ContentID)
		assert.Equal(t, testNow, cands[0].Timestamp)
	})

	t.Run("returns popular candidates", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		f.store.AddEngagement(cid, "user:other", 2, time.Time{})
		p := f.addProfile("user:xyz")

		opts := DefaultCandidateOptions()
		opts.Random = 0
		cands := f.generate(p, 10, opts)
		require.Len(t, cands, 1)
		assert.Equal(t, OriginPopular, cands[0].Origin)
		assert.Equal(t, cid, cands[0].ContentID)
		assert.Equal(t, 1.0, cands[0].PopularityScore)
	})

	t.Run("generates taste candidates", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		tid := content.TopicID(f.graph, "topic1")
		_, err := f.graph.AddEdge(storage.EdgeContent, tid, cid, 1.0, time.Time{})
		require.NoError(t, err)
		p := f.addProfile("user:xyz")
		p.Topics.Topics = []content.WeightedLabel{{Label: "topic1", Weight: 0.5}}

		opts := DefaultCandidateOptions()
		opts.Random = 0
		opts.Popular = 0
		cands := f.generate(p, 10, opts)
		require.Len(t, cands, 1)
		assert.Equal(t, OriginTopicAffinity, cands[0].Origin)
		assert.Equal(t, cid, cands[0].ContentID)
		assert.Equal(t, 0.5, cands[0].TopicAffinity)
		assert.Equal(t, "topic1", cands[0].Topic)
	})

	t.Run("generates similar user candidates", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		p1 := f.addProfile("user:xyz", 1, 2, 3)
		p2 := f.addProfile("user:test1", 1, 2, 3)
		p2.Contents = []storage.WeightedNode{{ID: cid, Weight: 1}}

		opts := DefaultCandidateOptions()
		opts.Random = 0
		opts.Popular = 0
		cands := f.generate(p1, 10, opts)
		require.Len(t, cands, 1)
		assert.Equal(t, OriginSimilarUser, cands[0].Origin)
		assert.Equal(t, cid, cands[0].ContentID)
		assert.Equal(t, storage.NodeID("user:test1"), cands[0].SimilarUser)
		assert.InDelta(t, 1.0, cands[0].UserSimilarityScore, 1e-9)
	})

	t.Run("generates coengaged candidates", func(t *testing.T) {
		f := newFixture()
		a := f.addContent(t, "a")
		b := f.addContent(t, "b")
		f.store.AddEngagement(a, "user:other", 1, time.Time{})
		f.store.AddEngagement(b, "user:other", 1, time.Time{})
		p := f.addProfile("user:xyz")
		p.Contents = []storage.WeightedNode{{ID: a, Weight: 0.7}}

		cands := f.generate(p, 10, CandidateOptions{Coengaged: 1})
		require.NotEmpty(t, cands)
		assert.Equal(t, OriginCoengagement, cands[0].Origin)
		assert.Equal(t, b, cands[0].ContentID)
		assert.Equal(t, a, cands[0].EngagedItem)
		assert.Equal(t, 0.7, cands[0].EngagedItemScore)
		assert.Equal(t, 1.0, cands[0].CoengagementScore)
	})

	t.Run("draws distinct items", func(t *testing.T) {
		f := newFixture()
		for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
			f.addContent(t, id)
		}
		p := f.addProfile("user:xyz")

		cands := f.generate(p, 4, CandidateOptions{Popular: 1})
		require.Len(t, cands, 4)

		seen := make(map[storage.NodeID]bool)
		for _, c := range cands {
			assert.False(t, seen[c.ContentID], "duplicate %s", c.ContentID)
			assert.Equal(t, OriginPopular, c.Origin)
			seen[c.ContentID] = true
		}
	})

	t.Run("backfills with random", func(t *testing.T) {
		f := newFixture()
		for _, id := range []string{"1", "2", "3", "4", "5"} {
			f.addContent(t, id)
		}
		p := f.addProfile("user:xyz")

		cands := f.generate(p, 3, CandidateOptions{Taste: 1})
		require.Len(t, cands, 3)
		for _, c := range cands {
			assert.Equal(t, OriginRandom, c.Origin)
		}
	})

	t.Run("zero weights only backfill", func(t *testing.T) {
		f := newFixture()
		f.addContent(t, "ggg")
		p := f.addProfile("user:xyz")

		cands := f.generate(p, 3, CandidateOptions{})
		require.Len(t, cands, 1)
		assert.Equal(t, OriginRandom, cands[0].Origin)
	})

	t.Run("nil profile", func(t *testing.T) {
		f := newFixture()
		f.addContent(t, "ggg")

		cands := GenerateCandidates(f.graph, f.store, nil, nil, 10, DefaultCandidateOptions(), newTestRand())
		require.Len(t, cands, 1)
	})
}

func TestCandidateProbability(t *testing.T) {
	only := func(set func(*CandidateOptions)) CandidateOptions {
		var o CandidateOptions
		set(&o)
		return o
	}

	t.Run("popular", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "1")
		f.store.AddEngagement(cid, "user:other", 0.5, time.Time{})
		p := f.addProfile("user:1")

		got := f.probability(p, 5, only(func(o *CandidateOptions) { o.Popular = 2 }), cid)
		assert.Equal(t, 1.0, got)
	})

	t.Run("random", func(t *testing.T) {
		f := newFixture()
		for _, id := range []string{"1", "2", "3", "4", "5"} {
			f.addContent(t, id)
		}
		opts := only(func(o *CandidateOptions) { o.Random = 2 })

		p1 := f.probability(f.addProfile("user:1"), 5, opts, "content:1")
		p2 := f.probability(f.addProfile("user:2"), 5, opts, "content:4")
		assert.InDelta(t, p2, p1, 1e-12)
		assert.InDelta(t, 1-0.8*0.8*0.8*0.8*0.8, p1, 1e-12)
	})

	t.Run("fractional quota", func(t *testing.T) {
		f := newFixture()
		for i := 0; i < 20; i++ {
			f.addContent(t, fmt.Sprintf("c%02d", i))
		}
		opts := CandidateOptions{Taste: 1, Random: 2}

		got := f.probability(f.addProfile("user:1"), 10, opts, "content:c00")
		assert.InDelta(t, 1-math.Pow(0.95, 20.0/3), got, 1e-12)
		assert.InDelta(t, 0.28962, got, 1e-5)

		cands := f.generate(f.addProfile("user:2"), 10, opts)
		assert.NotEmpty(t, cands)
	})

	t.Run("random on empty graph", func(t *testing.T) {
		f := newFixture()
		got := f.probability(f.addProfile("user:1"), 5, only(func(o *CandidateOptions) { o.Random = 2 }), "content:1")
		assert.Equal(t, 0.0, got)
	})

	t.Run("taste", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		tid := content.TopicID(f.graph, "topic1")
		f.graph.AddEdge(storage.EdgeContent, tid, cid, 1.0, time.Time{})
		f.graph.AddEdge(storage.EdgeTopic, cid, tid, 1.0, time.Time{})
		p := f.addProfile("user:xyz")
		p.Topics.Topics = []content.WeightedLabel{{Label: "topic1", Weight: 0.5}}

		got := f.probability(p, 5, only(func(o *CandidateOptions) { o.Taste = 2 }), cid)
		assert.Equal(t, 1.0, got)
	})

	t.Run("similar users", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		p1 := f.addProfile("user:xyz", 1, 2, 3)
		p2 := f.addProfile("user:test1", 1, 2, 3)
		p2.Contents = []storage.WeightedNode{{ID: cid, Weight: 1}}

		got := f.probability(p1, 5, only(func(o *CandidateOptions) { o.SimilarUsers = 2 }), cid)
		assert.Equal(t, 1.0, got)
	})

	t.Run("zero probability if not matched", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "ggg")
		other := f.addContent(t, "xxx")
		p1 := f.addProfile("user:xyz", 1, 2, 3)
		p2 := f.addProfile("user:test1", 1, 2, 3)
		p2.Contents = []storage.WeightedNode{{ID: cid, Weight: 1}}

		got := f.probability(p1, 5, only(func(o *CandidateOptions) { o.SimilarUsers = 2 }), other)
		assert.Equal(t, 0.0, got)
	})

	t.Run("coengaged decreases with position", func(t *testing.T) {
		f := newFixture()
		anchor := f.addContent(t, "anchor")
		strong := f.addContent(t, "strong")
		weak := f.addContent(t, "weak")
		f.graph.AddEdge(storage.EdgeCoengaged, anchor, strong, 2, time.Time{})
		f.graph.AddEdge(storage.EdgeCoengaged, anchor, weak, 1, time.Time{})
		p := f.addProfile("user:xyz")
		p.Contents = []storage.WeightedNode{{ID: anchor, Weight: 1}}

		opts := only(func(o *CandidateOptions) { o.Coengaged = 1 })
		ps := f.probability(p, 1, opts, strong)
		pw := f.probability(p, 1, opts, weak)
		assert.InDelta(t, 0.7071, ps, 1e-4)
		assert.InDelta(t, 1-0.7071, pw, 1e-4)
	})

	t.Run("annotate", func(t *testing.T) {
		f := newFixture()
		cid := f.addContent(t, "1")
		p := f.addProfile("user:1")
		opts := only(func(o *CandidateOptions) { o.Random = 1 })

		cands := f.generate(p, 5, opts)
		require.Len(t, cands, 1)
		AnnotateCandidateProbabilities(f.graph, f.store, f.index, p, 5, opts, cands)
		assert.Equal(t, cid, cands[0].ContentID)
		assert.Equal(t, 1.0, cands[0].CandidateProbability)
	})
}

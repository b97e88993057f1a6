package content

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/feedgraph/pkg/math/vector"
	"github.com/orneryd/feedgraph/pkg/storage"
)

const (
	// coengagementWindow is how many of a user's previous engagements are
	// linked to a new one.
	coengagementWindow = 6
	// coengagementFalloff scales the link weight per step back in history.
	coengagementFalloff = 0.9
)

// Store keeps content metadata and statistics and maintains the
// content-related edges of a graph.
//
// Store shares the single-writer model of the graph it wraps: callers
// serialise mutations of the store together with mutations of the graph.
type Store struct {
	graph  *storage.MemoryEngine
	logger *zap.Logger

	meta          map[storage.NodeID]*Metadata
	stats         map[storage.NodeID]*Stats
	engageLog     map[storage.NodeID][]storage.WeightedNode
	topEngagement float64
}

// NewStore creates a content store over graph. A nil logger disables logging.
func NewStore(graph *storage.MemoryEngine, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		graph:     graph,
		logger:    logger,
		meta:      make(map[storage.NodeID]*Metadata),
		stats:     make(map[storage.NodeID]*Stats),
		engageLog: make(map[storage.NodeID][]storage.WeightedNode),
	}
}

// AddContent registers an item and creates its graph node.
//
// Labels with positive weight become a "topic" edge from the content and a
// "content" edge from the topic, both carrying the label weight. When
// AuthorID names an existing node, "author" edges are added both ways.
//
// Returns the content node id, ErrInvalidMetadata for an empty id, or a
// wrapped storage.ErrAlreadyExists if the node already exists. The metadata
// is stored in either case.
func (s *Store) AddContent(meta *Metadata) (storage.NodeID, error) {
	if meta == nil || meta.ID == "" {
		return "", ErrInvalidMetadata
	}

	cid := meta.NodeID()
	if meta.Embedding != nil {
		meta.Embedding = vector.Normalize(meta.Embedding)
	} else {
		s.logger.Warn("content has no embedding", zap.String("content", string(cid)))
	}
	s.meta[cid] = meta

	if _, err := s.graph.AddNode(storage.NodeTypeContent, cid, &storage.ContentData{
		Author:  meta.AuthorID,
		Caption: meta.Caption,
	}); err != nil {
		return cid, fmt.Errorf("add content %s: %w", cid, err)
	}

	for _, l := range meta.Labels {
		if l.Weight <= 0 {
			continue
		}
		tid := TopicID(s.graph, l.Label)
		s.graph.AddEdge(storage.EdgeTopic, cid, tid, l.Weight, time.Time{})
		s.graph.AddEdge(storage.EdgeContent, tid, cid, l.Weight, time.Time{})
	}

	if meta.AuthorID != "" {
		if _, err := s.graph.AddEdge(storage.EdgeAuthor, meta.AuthorID, cid, 1, time.Time{}); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return cid, err
			}
			s.logger.Debug("content author not in graph",
				zap.String("content", string(cid)),
				zap.String("author", string(meta.AuthorID)))
		} else {
			s.graph.AddEdge(storage.EdgeAuthor, cid, meta.AuthorID, 1, time.Time{})
		}
	}
	return cid, nil
}

// RemoveContent forgets the item and removes its node and outgoing edges.
func (s *Store) RemoveContent(id storage.NodeID) {
	delete(s.meta, id)
	delete(s.stats, id)
	s.graph.RemoveNode(id)
}

// Reset removes every registered item from the store and the graph.
func (s *Store) Reset() {
	for id := range s.meta {
		s.graph.RemoveNode(id)
	}
	s.meta = make(map[storage.NodeID]*Metadata)
	s.stats = make(map[storage.NodeID]*Stats)
	s.engageLog = make(map[storage.NodeID][]storage.WeightedNode)
	s.topEngagement = 0
}

// HasContent reports whether metadata exists for the item.
func (s *Store) HasContent(id storage.NodeID) bool {
	_, ok := s.meta[id]
	return ok
}

// ContentMetadata returns the metadata of the item.
func (s *Store) ContentMetadata(id storage.NodeID) (*Metadata, bool) {
	m, ok := s.meta[id]
	return m, ok
}

// AllContent returns every content node in the graph in insertion order.
func (s *Store) AllContent() []storage.NodeID {
	return s.graph.GetNodesByType(storage.NodeTypeContent)
}

// ContentStats returns the statistics of the item, zero if unknown.
func (s *Store) ContentStats(id storage.NodeID) Stats {
	if st, ok := s.stats[id]; ok {
		return *st
	}
	return Stats{}
}

// MaxContentEngagement returns the highest engagement total of any item.
func (s *Store) MaxContentEngagement() float64 {
	return s.topEngagement
}

func (s *Store) statsFor(id storage.NodeID) *Stats {
	st, ok := s.stats[id]
	if !ok {
		st = &Stats{}
		s.stats[id] = st
	}
	return st
}

// UpdateStats replaces the statistics of an item, keeping the larger
// reaction count.
func (s *Store) UpdateStats(id storage.NodeID, stats Stats) {
	old := s.statsFor(id)
	stats.Reactions = max(stats.Reactions, old.Reactions)
	*old = stats
	s.topEngagement = max(s.topEngagement, stats.Engagement)
}

// AddReaction increments the reaction count.
func (s *Store) AddReaction(id storage.NodeID) {
	s.statsFor(id).Reactions++
}

// RemoveReaction decrements the reaction count.
func (s *Store) RemoveReaction(id storage.NodeID) {
	s.statsFor(id).Reactions--
}

// AddShare increments the share count.
func (s *Store) AddShare(id storage.NodeID) {
	s.statsFor(id).Shares++
}

// AddView increments the view count.
func (s *Store) AddView(id storage.NodeID) {
	s.statsFor(id).Views++
}

// AddEngagement records an engagement value for the item and links it to
// the user's recent engagements.
//
// The item's engagement total grows by value. For positive values, each of
// the user's last six engaged items (other than this one) gets a
// "coengaged" edge in both directions whose weight is the mean of the two
// engagement values, scaled by 0.9 per step back in history.
func (s *Store) AddEngagement(id, user storage.NodeID, value float64, ts time.Time) {
	st := s.statsFor(id)
	st.Engagement += value
	s.topEngagement = max(s.topEngagement, st.Engagement)

	if value <= 0 {
		return
	}

	elog := s.engageLog[user]
	w := 1.0
	for i := len(elog) - 1; i >= max(0, len(elog)-coengagementWindow); i-- {
		if elog[i].ID != id {
			weight := (elog[i].Weight + value) / 2 * w
			s.graph.AddOrAccumulateEdge(storage.EdgeCoengaged, id, elog[i].ID, weight, ts)
			s.graph.AddOrAccumulateEdge(storage.EdgeCoengaged, elog[i].ID, id, weight, ts)
		}
		w *= coengagementFalloff
	}

	elog = append(elog, storage.WeightedNode{ID: id, Weight: value})
	if len(elog) > coengagementWindow {
		elog = elog[len(elog)-coengagementWindow:]
	}
	s.engageLog[user] = elog
}

// SimilarContent ranks items by cosine similarity of their embedding to
// the given one. Items without an embedding are skipped. A count of 0
// returns all.
func (s *Store) SimilarContent(embedding []float64, count int) []storage.WeightedNode {
	var sims []storage.WeightedNode
	for _, id := range s.AllContent() {
		meta, ok := s.meta[id]
		if !ok || meta.Embedding == nil {
			continue
		}
		sims = append(sims, storage.WeightedNode{ID: id, Weight: vector.CosineSimilarity(embedding, meta.Embedding)})
	}
	sort.SliceStable(sims, func(i, j int) bool { return sims[i].Weight > sims[j].Weight })
	if count > 0 && len(sims) > count {
		sims = sims[:count]
	}
	return sims
}

// CoengagedContent returns the strongest co-engagement neighbours of an item.
func (s *Store) CoengagedContent(id storage.NodeID, count int) []storage.WeightedNode {
	return s.graph.GetRelated(storage.EdgeCoengaged, []storage.NodeID{id}, storage.QueryOptions{Count: count})
}

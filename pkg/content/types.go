// Package content is the reference content collaborator for the
// recommender.
//
// It keeps per-item metadata (embedding and weighted topic labels) and
// engagement statistics outside the graph, and maintains the graph edges
// that content contributes:
//   - content <-> topic membership edges when content is added
//   - co-engagement edges between items a user engaged with in sequence
//   - author edges between content and its posting user
//
// Example Usage:
//
//	graph := storage.NewMemoryEngine()
//	store := content.NewStore(graph, logger)
//
//	store.AddContent(&content.Metadata{
//		ID:        "cat-1",
//		Embedding: []float64{0.2, 0.9},
//		Labels:    []content.WeightedLabel{{Label: "cats", Weight: 0.8}},
//	})
//
//	store.AddEngagement("content:cat-1", "user:alice", 0.5, time.Now())
//	fmt.Println(store.MaxContentEngagement()) // 0.5
package content

import (
	"errors"

	"github.com/orneryd/feedgraph/pkg/storage"
)

// Errors returned by the content store.
var (
	ErrInvalidMetadata = errors.New("invalid content metadata")
)

// WeightedLabel is a label with an affinity or membership weight.
type WeightedLabel struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// Metadata describes one content item.
//
// Embedding is normalised to unit length when the item is added.
type Metadata struct {
	ID        string          `json:"id"`
	Author    string          `json:"author,omitempty"`
	AuthorID  storage.NodeID  `json:"authorId,omitempty"`
	Caption   string          `json:"caption,omitempty"`
	Embedding []float64       `json:"embedding,omitempty"`
	Labels    []WeightedLabel `json:"labels,omitempty"`
}

// NodeID returns the graph id of the item, "content:<ID>".
func (m *Metadata) NodeID() storage.NodeID {
	return storage.MakeNodeID(storage.NodeTypeContent, m.ID)
}

// Stats holds engagement counters for one content item.
type Stats struct {
	Reactions  int     `json:"reactions"`
	Shares     int     `json:"shares"`
	Views      int     `json:"views"`
	Engagement float64 `json:"engagement"`
}

// TopicID returns the id of the topic with this label, creating the topic
// node if it does not exist.
func TopicID(graph *storage.MemoryEngine, label string) storage.NodeID {
	id := storage.MakeNodeID(storage.NodeTypeTopic, label)
	if !graph.HasNode(id) {
		graph.AddNode(storage.NodeTypeTopic, id, &storage.TopicData{Label: label})
	}
	return id
}

// TopicLabel returns the label of a topic id.
func TopicLabel(id storage.NodeID) string {
	return id.Local()
}

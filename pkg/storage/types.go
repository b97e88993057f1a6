// Package storage provides the typed relationship graph used by feedgraph.
//
// The graph holds users, content and topics as nodes and the weighted,
// timestamped relations between them as directed edges. It is the shared
// state that candidate generation and scoring query through GetRelated.
//
// Design Principles:
//   - Node ids carry their type as a prefix ("user:…", "content:…")
//   - One edge per (destination, type, source) triple
//   - Secondary indices by type, by source and by type+source
//   - Missing data is a normal case: lookups return zero values, not errors
//   - Single logical writer per engine; no internal locking
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//
//	user, _ := engine.AddNode(storage.NodeTypeUser, "", &storage.UserData{Name: "Alice"})
//	post, _ := engine.AddNode(storage.NodeTypeContent, "content:cat-1", nil)
//
//	engine.AddOrAccumulateEdge(storage.EdgeEngaged, user, post, 0.5, time.Time{})
//	engine.AddOrAccumulateEdge(storage.EdgeEngaged, user, post, 0.25, time.Time{})
//
//	fmt.Println(engine.GetEdgeWeights(storage.EdgeEngaged, user, post)) // [0.75]
//
//	// Export a snapshot
//	snap, _ := engine.Snapshot()
//	storage.SaveSnapshotFile(snap, "graph.json")
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageClosed = errors.New("storage closed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// The id carries the node type as a prefix separated by a colon:
//
//	id := storage.NodeID("topic:cats")
//	id.Type()  // "topic"
//	id.Local() // "cats"
type NodeID string

// Type returns the node type encoded in the id prefix.
func (id NodeID) Type() NodeType {
	prefix, _, found := strings.Cut(string(id), ":")
	if !found {
		return ""
	}
	return NodeType(prefix)
}

// Local returns the part of the id after the type prefix.
func (id NodeID) Local() string {
	_, rest, found := strings.Cut(string(id), ":")
	if !found {
		return string(id)
	}
	return rest
}

// MakeNodeID joins a node type and a local name into a NodeID.
func MakeNodeID(t NodeType, local string) NodeID {
	return NodeID(string(t) + ":" + local)
}

// NodeType classifies nodes. It is fixed when the node is created.
type NodeType string

// Node types known to the recommender.
const (
	NodeTypeUser    NodeType = "user"
	NodeTypeContent NodeType = "content"
	NodeTypeTopic   NodeType = "topic"
)

// EdgeType names a relation between two nodes.
type EdgeType string

// Edge types used by the recommender. Hosts may use other types freely.
const (
	// user -> content
	EdgeEngaged     EdgeType = "engaged"
	EdgeLastEngaged EdgeType = "last_engaged"
	EdgeSeen        EdgeType = "seen"
	EdgeLiked       EdgeType = "liked"
	EdgeReacted     EdgeType = "reacted"
	EdgeShared      EdgeType = "shared"
	EdgeCommented   EdgeType = "commented"

	// content -> content
	EdgeCoengaged EdgeType = "coengaged"

	// topic -> content and content -> topic
	EdgeContent EdgeType = "content"
	EdgeTopic   EdgeType = "topic"

	// user -> topic
	EdgeSeenTopic      EdgeType = "seen_topic"
	EdgeViewedTopic    EdgeType = "viewed_topic"
	EdgeCommentedTopic EdgeType = "commented_topic"
	EdgeSharedTopic    EdgeType = "shared_topic"
	EdgeReactedTopic   EdgeType = "reacted_topic"
	EdgeFollowedTopic  EdgeType = "followed_topic"

	// user -> user / user -> content
	EdgeFollows EdgeType = "follows"
	EdgeSimilar EdgeType = "similar"
	EdgeAuthor  EdgeType = "author"
)

// accumulatingEdges sum their weight on repeated insertion instead of
// replacing it.
var accumulatingEdges = map[EdgeType]struct{}{
	EdgeCoengaged:   {},
	EdgeLastEngaged: {},
	EdgeSeen:        {},
	EdgeEngaged:     {},
}

// IsAccumulating reports whether repeated writes of this edge type sum weights.
func IsAccumulating(t EdgeType) bool {
	_, ok := accumulatingEdges[t]
	return ok
}

// EdgeID identifies an edge as "<destination>:<type>:<source>".
type EdgeID string

// MakeEdgeID formats the identity of an edge.
func MakeEdgeID(t EdgeType, src, dest NodeID) EdgeID {
	return EdgeID(fmt.Sprintf("%s:%s:%s", dest, t, src))
}

// edgeKey is the internal identity of an edge. A struct key avoids any
// ambiguity from colons inside node ids.
type edgeKey struct {
	dest NodeID
	typ  EdgeType
	src  NodeID
}

// typeSourceKey indexes edges by type and source.
type typeSourceKey struct {
	typ EdgeType
	src NodeID
}

// Node is a vertex in the relationship graph.
//
// Data is owned by the store. Callers that obtain a node may mutate its
// payload in place; the change is visible to every later read.
type Node struct {
	ID        NodeID
	Type      NodeType
	Data      NodeData
	Timestamp time.Time
}

// Edge is a directed, weighted, timestamped relation.
//
// Identity is (Destination, Type, Source): there is at most one edge per
// ordered triple.
type Edge struct {
	Type        EdgeType
	Source      NodeID
	Destination NodeID
	Weight      float64
	Timestamp   time.Time
	Metadata    map[string]any
}

// ID returns the edge identity string.
func (e *Edge) ID() EdgeID {
	return MakeEdgeID(e.Type, e.Source, e.Destination)
}

func (e *Edge) key() edgeKey {
	return edgeKey{dest: e.Destination, typ: e.Type, src: e.Source}
}

// WeightedNode is a ranked query result.
type WeightedNode struct {
	ID     NodeID  `json:"id"`
	Weight float64 `json:"weight"`
}

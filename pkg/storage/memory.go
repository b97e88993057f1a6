package storage

import (
	"time"

	"github.com/google/uuid"
)

// MemoryEngine is the in-memory relationship graph.
//
// Features:
//   - Indexed: nodes by id and by type, edges by identity, by source and by
//     type+source
//   - Accumulating edge kinds sum their weights on repeated writes
//   - Optional outbound event queue (see WithEventQueue)
//
// Performance Characteristics:
//   - Node lookup by ID: O(1)
//   - Nodes of a type: O(k), insertion ordered
//   - Edge lookup by identity: O(1)
//   - Edges of a source, or of a type from a source: O(degree)
//   - RemoveNode: O(out-degree + nodes of that type)
//
// Thread Safety:
//
//	MemoryEngine has no internal locking. It assumes a single logical writer.
//	Concurrent readers are safe only while no mutation is in progress; hosts
//	with several goroutines must serialise access (one event loop, or one
//	mutex per engine).
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//
//	topic, _ := engine.AddNode(storage.NodeTypeTopic, "topic:cats", &storage.TopicData{Label: "cats"})
//	post, _ := engine.AddNode(storage.NodeTypeContent, "", nil)
//	engine.AddEdge(storage.EdgeContent, topic, post, 0.8, time.Time{})
//
//	for _, r := range engine.GetRelated(storage.EdgeContent, []storage.NodeID{topic}, storage.QueryOptions{}) {
//		fmt.Println(r.ID, r.Weight)
//	}
type MemoryEngine struct {
	nodes map[NodeID]*Node
	edges map[edgeKey]*Edge

	// Indexes for efficient lookups
	nodesByType       map[NodeType][]*Node
	edgesBySource     map[NodeID][]*Edge
	edgesByTypeSource map[typeSourceKey][]*Edge

	now          func() time.Time
	recordEvents bool
	events       []Event
}

// Option configures a MemoryEngine.
type Option func(*MemoryEngine)

// WithClock replaces time.Now for default timestamps and relevance queries.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryEngine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithEventQueue enables the outbound mutation queue drained by DrainEvents.
func WithEventQueue() Option {
	return func(m *MemoryEngine) {
		m.recordEvents = true
	}
}

// NewMemoryEngine creates an empty graph.
func NewMemoryEngine(opts ...Option) *MemoryEngine {
	m := &MemoryEngine{now: time.Now}
	m.resetIndexes()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryEngine) resetIndexes() {
	m.nodes = make(map[NodeID]*Node)
	m.edges = make(map[edgeKey]*Edge)
	m.nodesByType = make(map[NodeType][]*Node)
	m.edgesBySource = make(map[NodeID][]*Edge)
	m.edgesByTypeSource = make(map[typeSourceKey][]*Edge)
}

// Reset removes every node, edge and queued event.
func (m *MemoryEngine) Reset() {
	m.resetIndexes()
	m.events = nil
}

// Now returns the engine clock.
func (m *MemoryEngine) Now() time.Time {
	return m.now()
}

// stamp substitutes the engine clock for a zero timestamp.
func (m *MemoryEngine) stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return m.now()
	}
	return ts
}

// ============================================================================
// Nodes
// ============================================================================

// AddNode creates a node of the given type.
//
// When id is empty a "<type>:<uuid>" id is generated.
//
// Returns:
//   - the node id on success
//   - ErrAlreadyExists if a node with this id exists
//   - ErrInvalidData if data belongs to another node type
//
// Example:
//
//	id, err := engine.AddNode(storage.NodeTypeUser, "", &storage.UserData{Name: "Bob"})
//	if errors.Is(err, storage.ErrAlreadyExists) {
//		...
//	}
func (m *MemoryEngine) AddNode(t NodeType, id NodeID, data NodeData) (NodeID, error) {
	if id == "" {
		id = MakeNodeID(t, uuid.NewString())
	}
	if !validPayload(t, data) {
		return "", ErrInvalidData
	}
	if _, exists := m.nodes[id]; exists {
		return "", ErrAlreadyExists
	}
	m.insertNode(&Node{ID: id, Type: t, Data: data, Timestamp: m.now()})
	return id, nil
}

// AddNodeIfNotExists creates the node unless it already exists.
//
// If the node exists and data is non-nil and not the payload already stored,
// the payload is replaced and the node touched. The boolean result is true
// only when a new node was created.
func (m *MemoryEngine) AddNodeIfNotExists(t NodeType, id NodeID, data NodeData) (NodeID, bool) {
	if id == "" || !validPayload(t, data) {
		return "", false
	}
	if existing, exists := m.nodes[id]; exists {
		if data != nil && existing.Data != data {
			m.UpdateNode(id, data)
		}
		return "", false
	}
	m.insertNode(&Node{ID: id, Type: t, Data: data, Timestamp: m.now()})
	return id, true
}

// AddNodes loads nodes in bulk. Existing nodes keep their type; their data
// is replaced when it differs.
func (m *MemoryEngine) AddNodes(nodes []*Node) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		id, created := m.AddNodeIfNotExists(n.Type, n.ID, n.Data)
		if created && !n.Timestamp.IsZero() {
			m.nodes[id].Timestamp = n.Timestamp
		}
	}
}

func (m *MemoryEngine) insertNode(n *Node) {
	m.nodes[n.ID] = n
	m.nodesByType[n.Type] = append(m.nodesByType[n.Type], n)
	m.emit(Event{Kind: EventNodeChanged, NodeID: n.ID, NodeType: n.Type})
}

// UpdateNode replaces the payload of an existing node and touches it.
// It reports whether the node exists.
func (m *MemoryEngine) UpdateNode(id NodeID, data NodeData) bool {
	n, exists := m.nodes[id]
	if !exists || !validPayload(n.Type, data) {
		return false
	}
	n.Data = data
	n.Timestamp = m.now()
	m.emit(Event{Kind: EventNodeChanged, NodeID: id, NodeType: n.Type})
	return true
}

// TouchNode sets the node timestamp to now.
func (m *MemoryEngine) TouchNode(id NodeID) {
	if n, exists := m.nodes[id]; exists {
		n.Timestamp = m.now()
	}
}

// RemoveNode deletes the node and every edge whose source is id.
//
// Edges that only point at id are left in place. All queries index by
// source, so a dangling reverse edge is never reached from the removed node.
func (m *MemoryEngine) RemoveNode(id NodeID) {
	for _, e := range m.edgesBySource[id] {
		delete(m.edges, e.key())
		delete(m.edgesByTypeSource, typeSourceKey{typ: e.Type, src: id})
	}
	delete(m.edgesBySource, id)

	n, exists := m.nodes[id]
	if !exists {
		return
	}
	list := m.nodesByType[n.Type]
	for i, candidate := range list {
		if candidate.ID == id {
			m.nodesByType[n.Type] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	delete(m.nodes, id)
	m.emit(Event{Kind: EventNodeRemoved, NodeID: id, NodeType: n.Type})
}

// HasNode reports whether the node exists.
func (m *MemoryEngine) HasNode(id NodeID) bool {
	_, exists := m.nodes[id]
	return exists
}

// GetNode returns the stored node or nil.
func (m *MemoryEngine) GetNode(id NodeID) *Node {
	return m.nodes[id]
}

// NodeType returns the type of the node, or "" if it does not exist.
func (m *MemoryEngine) NodeType(id NodeID) NodeType {
	if n, exists := m.nodes[id]; exists {
		return n.Type
	}
	return ""
}

// NodeData returns the payload of the node, or nil if it does not exist.
func (m *MemoryEngine) NodeData(id NodeID) NodeData {
	if n, exists := m.nodes[id]; exists {
		return n.Data
	}
	return nil
}

// GetNodesByType returns the ids of all nodes of a type in insertion order.
func (m *MemoryEngine) GetNodesByType(t NodeType) []NodeID {
	list := m.nodesByType[t]
	ids := make([]NodeID, len(list))
	for i, n := range list {
		ids[i] = n.ID
	}
	return ids
}

// GetNodesSince returns nodes of a type touched after the given time.
func (m *MemoryEngine) GetNodesSince(t NodeType, since time.Time) []*Node {
	var out []*Node
	for _, n := range m.nodesByType[t] {
		if n.Timestamp.After(since) {
			out = append(out, n)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() int {
	return len(m.nodes)
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() int {
	return len(m.edges)
}

// ============================================================================
// Edges
// ============================================================================

// AddEdge writes a single edge between two existing nodes.
//
// A second write of the same (dest, type, src) triple replaces weight and
// timestamp. A zero timestamp means now.
//
// Returns:
//   - the edge id on success
//   - ErrNotFound if either endpoint does not exist; no edge is created
func (m *MemoryEngine) AddEdge(t EdgeType, src, dest NodeID, weight float64, ts time.Time) (EdgeID, error) {
	if !m.HasNode(src) || !m.HasNode(dest) {
		return "", ErrNotFound
	}

	key := edgeKey{dest: dest, typ: t, src: src}
	if old, exists := m.edges[key]; exists {
		old.Weight = weight
		old.Timestamp = m.stamp(ts)
		m.emit(Event{Kind: EventEdgeChanged, NodeID: dest, EdgeType: t, Source: src})
		return old.ID(), nil
	}

	e := &Edge{
		Type:        t,
		Source:      src,
		Destination: dest,
		Weight:      weight,
		Timestamp:   m.stamp(ts),
		Metadata:    map[string]any{},
	}
	m.insertEdge(e)
	return e.ID(), nil
}

// AddOrAccumulateEdge adds weight to the edge, creating it if needed.
//
// Endpoints are not checked. The timestamp is always refreshed.
func (m *MemoryEngine) AddOrAccumulateEdge(t EdgeType, src, dest NodeID, weight float64, ts time.Time) {
	key := edgeKey{dest: dest, typ: t, src: src}
	if old, exists := m.edges[key]; exists {
		old.Weight += weight
		old.Timestamp = m.stamp(ts)
		m.emit(Event{Kind: EventEdgeChanged, NodeID: dest, EdgeType: t, Source: src})
		return
	}
	m.insertEdge(&Edge{
		Type:        t,
		Source:      src,
		Destination: dest,
		Weight:      weight,
		Timestamp:   m.stamp(ts),
		Metadata:    map[string]any{},
	})
}

// AddEdges bulk-loads edges without checking endpoints.
//
// For accumulating edge types the incoming weight is added to an existing
// edge; for all other types the existing edge takes the incoming weight,
// timestamp and metadata. The engine keeps its own copy of each edge.
func (m *MemoryEngine) AddEdges(edges []*Edge) {
	for _, in := range edges {
		if in == nil {
			continue
		}
		if old, exists := m.edges[in.key()]; exists {
			if IsAccumulating(in.Type) {
				old.Weight += in.Weight
			} else {
				old.Weight = in.Weight
			}
			old.Timestamp = m.stamp(in.Timestamp)
			if in.Metadata != nil {
				old.Metadata = copyMetadata(in.Metadata)
			}
			m.emit(Event{Kind: EventEdgeChanged, NodeID: in.Destination, EdgeType: in.Type, Source: in.Source})
			continue
		}
		e := *in
		e.Timestamp = m.stamp(in.Timestamp)
		e.Metadata = copyMetadata(in.Metadata)
		m.insertEdge(&e)
	}
}

func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *MemoryEngine) insertEdge(e *Edge) {
	m.edges[e.key()] = e
	m.edgesBySource[e.Source] = append(m.edgesBySource[e.Source], e)
	tk := typeSourceKey{typ: e.Type, src: e.Source}
	m.edgesByTypeSource[tk] = append(m.edgesByTypeSource[tk], e)
	m.emit(Event{Kind: EventEdgeChanged, NodeID: e.Destination, EdgeType: e.Type, Source: e.Source})
}

// GetEdge returns the edge for the triple, or nil.
func (m *MemoryEngine) GetEdge(t EdgeType, src, dest NodeID) *Edge {
	return m.edges[edgeKey{dest: dest, typ: t, src: src}]
}

// GetEdgeWeights returns edge weights from src.
//
// With no dests it returns the weights of every edge of type t from src.
// Otherwise it returns one weight per dest, 0 where no edge exists.
func (m *MemoryEngine) GetEdgeWeights(t EdgeType, src NodeID, dests ...NodeID) []float64 {
	if len(dests) == 0 {
		edges := m.edgesByTypeSource[typeSourceKey{typ: t, src: src}]
		weights := make([]float64, len(edges))
		for i, e := range edges {
			weights[i] = e.Weight
		}
		return weights
	}
	weights := make([]float64, len(dests))
	for i, d := range dests {
		if e, exists := m.edges[edgeKey{dest: d, typ: t, src: src}]; exists {
			weights[i] = e.Weight
		}
	}
	return weights
}

// GetEdgeWeight returns the weight of a single edge, 0 if it does not exist.
func (m *MemoryEngine) GetEdgeWeight(t EdgeType, src, dest NodeID) float64 {
	if e, exists := m.edges[edgeKey{dest: dest, typ: t, src: src}]; exists {
		return e.Weight
	}
	return 0
}

// GetEdges returns the outgoing edges of the given nodes.
//
// count is a soft cap: it is checked after each node's batch has been
// appended, and the collected slice is truncated to count at the end. A
// count of 0 means no limit.
func (m *MemoryEngine) GetEdges(nodes []NodeID, count int) []*Edge {
	var out []*Edge
	for _, n := range nodes {
		out = append(out, m.edgesBySource[n]...)
		if count > 0 && len(out) > count {
			break
		}
	}
	return truncateEdges(out, count)
}

// GetEdgesOfType returns the outgoing edges of the given types from the
// given nodes, grouped by node then by type.
//
// count follows the same truncation-after-batch policy as GetEdges.
func (m *MemoryEngine) GetEdgesOfType(types []EdgeType, nodes []NodeID, count int) []*Edge {
	var out []*Edge
	for _, n := range nodes {
		for _, t := range types {
			out = append(out, m.edgesByTypeSource[typeSourceKey{typ: t, src: n}]...)
			if count > 0 && len(out) > count {
				break
			}
		}
		if count > 0 && len(out) > count {
			break
		}
	}
	return truncateEdges(out, count)
}

func truncateEdges(edges []*Edge, count int) []*Edge {
	if count > 0 && len(edges) > count {
		return edges[:count]
	}
	return edges
}

// GetRelated runs a relevance query over the edges of type t from nodes.
func (m *MemoryEngine) GetRelated(t EdgeType, nodes []NodeID, opts QueryOptions) []WeightedNode {
	if opts.Now.IsZero() {
		opts.Now = m.now()
	}
	return Related(m.GetEdgesOfType([]EdgeType{t}, nodes, 0), opts)
}

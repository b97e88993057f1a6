package storage

// EventKind describes what a graph mutation changed.
type EventKind string

const (
	// EventNodeChanged is emitted when a node is created or its data replaced.
	EventNodeChanged EventKind = "node_changed"
	// EventNodeRemoved is emitted when a node is removed.
	EventNodeRemoved EventKind = "node_removed"
	// EventEdgeChanged is emitted when an edge of a source node is written.
	EventEdgeChanged EventKind = "edge_changed"
)

// Event is one entry in the outbound mutation queue.
//
// For node events NodeID and NodeType are set. For edge events Source,
// NodeID (the destination) and EdgeType are set.
type Event struct {
	Kind     EventKind
	NodeID   NodeID
	NodeType NodeType
	EdgeType EdgeType
	Source   NodeID
}

// emit appends to the queue when it is enabled.
func (m *MemoryEngine) emit(ev Event) {
	if !m.recordEvents {
		return
	}
	m.events = append(m.events, ev)
}

// DrainEvents returns every queued event in mutation order and empties the
// queue. It returns nil when the queue is disabled or empty.
//
// Example:
//
//	engine := storage.NewMemoryEngine(storage.WithEventQueue())
//	engine.AddEdge(storage.EdgeLiked, user, post, 1, time.Time{})
//	for _, ev := range engine.DrainEvents() {
//		if ev.Kind == storage.EventEdgeChanged {
//			invalidateProfile(ev.Source)
//		}
//	}
func (m *MemoryEngine) DrainEvents() []Event {
	if len(m.events) == 0 {
		return nil
	}
	out := m.events
	m.events = nil
	return out
}

package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is the plain export format of a graph: all nodes followed by all
// edges. Timestamps are Unix milliseconds.
//
// Example file:
//
//	{
//	  "nodes": [
//	    {"id":"user:alice","type":"user","data":{"name":"Alice"},"timestamp":1700000000000},
//	    {"id":"content:1","type":"content","timestamp":1700000000000}
//	  ],
//	  "edges": [
//	    {"source":"user:alice","destination":"content:1","type":"engaged","weight":0.5,"timestamp":1700000000000}
//	  ]
//	}
type Snapshot struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// NodeRecord is the serialised form of a node.
type NodeRecord struct {
	ID        NodeID          `json:"id"`
	Type      NodeType        `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// EdgeRecord is the serialised form of an edge.
type EdgeRecord struct {
	Source      NodeID         `json:"source"`
	Destination NodeID         `json:"destination"`
	Type        EdgeType       `json:"type"`
	Weight      float64        `json:"weight"`
	Timestamp   int64          `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Snapshot exports every node and edge.
//
// Nodes are grouped by type (types in lexical order, nodes in insertion
// order). Edges follow the node order of their source; edges whose source
// is not a node come last, ordered by source id.
func (m *MemoryEngine) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Nodes: make([]NodeRecord, 0, len(m.nodes)),
		Edges: make([]EdgeRecord, 0, len(m.edges)),
	}

	types := make([]NodeType, 0, len(m.nodesByType))
	for t := range m.nodesByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	visited := make(map[NodeID]struct{}, len(m.nodes))
	for _, t := range types {
		for _, n := range m.nodesByType[t] {
			rec, err := encodeNodeRecord(n)
			if err != nil {
				return nil, err
			}
			snap.Nodes = append(snap.Nodes, rec)
			visited[n.ID] = struct{}{}
			for _, e := range m.edgesBySource[n.ID] {
				snap.Edges = append(snap.Edges, encodeEdgeRecord(e))
			}
		}
	}

	var orphans []NodeID
	for src := range m.edgesBySource {
		if _, ok := visited[src]; !ok {
			orphans = append(orphans, src)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	for _, src := range orphans {
		for _, e := range m.edgesBySource[src] {
			snap.Edges = append(snap.Edges, encodeEdgeRecord(e))
		}
	}

	return snap, nil
}

// Restore bulk-loads a snapshot into the engine with AddNodes and AddEdges.
// Existing content is kept; accumulating edges sum into existing ones.
func (m *MemoryEngine) Restore(snap *Snapshot) error {
	nodes := make([]*Node, 0, len(snap.Nodes))
	for i := range snap.Nodes {
		n, err := decodeNodeRecord(&snap.Nodes[i])
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
	}
	m.AddNodes(nodes)

	edges := make([]*Edge, len(snap.Edges))
	for i := range snap.Edges {
		edges[i] = decodeEdgeRecord(&snap.Edges[i])
	}
	m.AddEdges(edges)
	return nil
}

func encodeNodeRecord(n *Node) (NodeRecord, error) {
	rec := NodeRecord{
		ID:        n.ID,
		Type:      n.Type,
		Timestamp: n.Timestamp.UnixMilli(),
	}
	if n.Data != nil {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return rec, fmt.Errorf("failed to encode node %s: %w", n.ID, err)
		}
		rec.Data = data
	}
	return rec, nil
}

func decodeNodeRecord(rec *NodeRecord) (*Node, error) {
	if rec.ID == "" {
		return nil, ErrInvalidID
	}
	n := &Node{
		ID:        rec.ID,
		Type:      rec.Type,
		Timestamp: fromMillis(rec.Timestamp),
	}
	if len(rec.Data) > 0 && string(rec.Data) != "null" {
		payload := newPayload(rec.Type)
		if err := json.Unmarshal(rec.Data, payload); err != nil {
			return nil, fmt.Errorf("failed to decode node %s: %w", rec.ID, err)
		}
		n.Data = payload
	}
	return n, nil
}

func encodeEdgeRecord(e *Edge) EdgeRecord {
	rec := EdgeRecord{
		Source:      e.Source,
		Destination: e.Destination,
		Type:        e.Type,
		Weight:      e.Weight,
		Timestamp:   e.Timestamp.UnixMilli(),
	}
	if len(e.Metadata) > 0 {
		rec.Metadata = e.Metadata
	}
	return rec
}

func decodeEdgeRecord(rec *EdgeRecord) *Edge {
	return &Edge{
		Type:        rec.Type,
		Source:      rec.Source,
		Destination: rec.Destination,
		Weight:      rec.Weight,
		Timestamp:   fromMillis(rec.Timestamp),
		Metadata:    rec.Metadata,
	}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// WriteSnapshot encodes a snapshot as JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a JSON snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshotFile writes a snapshot to path, replacing the file.
func SaveSnapshotFile(snap *Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteSnapshot(w, snap); err != nil {
		return err
	}
	return w.Flush()
}

// LoadSnapshotFile reads a snapshot from path.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(bufio.NewReader(f))
}

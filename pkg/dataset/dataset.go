// Package dataset reads and writes feedgraph dataset files and turns them
// into a live graph with its content store and profile index.
//
// A dataset bundles a graph snapshot with the content catalogue, which lives
// outside the graph, and the published user profiles:
//
//	{
//	  "graph":    {"nodes": [...], "edges": [...]},
//	  "content":  [{"id": "cat-1", "embedding": [0.2, 0.9], "labels": [...], "stats": {"engagement": 3}}],
//	  "profiles": [{"id": "user:alice", "taste": [...], "topics": {...}}]
//	}
//
// Example Usage:
//
//	ds, err := dataset.LoadFile("feed.json")
//	if err != nil {
//		return err
//	}
//	world, err := ds.Open(logger)
//	svc := recommend.NewService(world.Graph, world.Content, world.Profiles, world.Profiles)
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/orneryd/feedgraph/pkg/content"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// ContentRecord is one catalogue entry: the item metadata and its
// engagement statistics.
type ContentRecord struct {
	content.Metadata
	Stats content.Stats `json:"stats"`
}

// Dataset is the serialised form of a recommender world.
type Dataset struct {
	Graph    *storage.Snapshot      `json:"graph,omitempty"`
	Content  []ContentRecord        `json:"content,omitempty"`
	Profiles []*profile.UserProfile `json:"profiles,omitempty"`
}

// World is a graph with its collaborators, ready for recommendation.
type World struct {
	Graph    *storage.MemoryEngine
	Content  *content.Store
	Profiles *profile.Index
}

// Read decodes a JSON dataset.
func Read(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &ds, nil
}

// Write encodes the dataset as indented JSON.
func Write(w io.Writer, ds *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}

// LoadFile reads a dataset from path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// SaveFile writes a dataset to path, replacing the file.
func SaveFile(ds *Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Write(w, ds); err != nil {
		return err
	}
	return w.Flush()
}

// Open builds a World from the dataset.
//
// The graph snapshot is restored first, then every content record is
// registered with the content store; content nodes already present in the
// snapshot are kept. Users in the graph without a published profile get one
// derived with profile.Build.
func (ds *Dataset) Open(logger *zap.Logger, opts ...storage.Option) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	graph := storage.NewMemoryEngine(opts...)
	if ds.Graph != nil {
		if err := graph.Restore(ds.Graph); err != nil {
			return nil, fmt.Errorf("restore graph: %w", err)
		}
	}

	store := content.NewStore(graph, logger)
	for i := range ds.Content {
		rec := ds.Content[i]
		meta := rec.Metadata
		id, err := store.AddContent(&meta)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("content record %d: %w", i, err)
		}
		store.UpdateStats(id, rec.Stats)
	}

	index := profile.NewIndex()
	for _, p := range ds.Profiles {
		index.Add(p)
	}
	built := 0
	for _, id := range graph.GetNodesByType(storage.NodeTypeUser) {
		if _, ok := index.UserProfile(id); ok {
			continue
		}
		index.Add(profile.Build(graph, store, id, nil))
		built++
	}

	logger.Info("dataset opened",
		zap.Int("nodes", graph.NodeCount()),
		zap.Int("edges", graph.EdgeCount()),
		zap.Int("content", len(ds.Content)),
		zap.Int("profiles", index.Len()),
		zap.Int("built_profiles", built))

	return &World{Graph: graph, Content: store, Profiles: index}, nil
}

// Capture serialises a World back into a Dataset.
func Capture(w *World) (*Dataset, error) {
	snap, err := w.Graph.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot graph: %w", err)
	}

	ds := &Dataset{Graph: snap}
	for _, id := range w.Content.AllContent() {
		meta, ok := w.Content.ContentMetadata(id)
		if !ok {
			continue
		}
		ds.Content = append(ds.Content, ContentRecord{Metadata: *meta, Stats: w.Content.ContentStats(id)})
	}
	for _, id := range w.Profiles.Users() {
		if p, ok := w.Profiles.UserProfile(id); ok {
			ds.Profiles = append(ds.Profiles, p)
		}
	}
	return ds, nil
}

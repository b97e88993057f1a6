package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key layout for snapshot records.
//
// Each Save writes a new generation. Records are keyed by generation and
// by their position in the snapshot so that iteration returns them in
// export order:
//   - Current generation: "m/gen" -> uint64 big-endian
//   - Nodes: "g/" + gen + "n/" + uint64 big-endian seq -> JSON(NodeRecord)
//   - Edges: "g/" + gen + "e/" + uint64 big-endian seq -> JSON(EdgeRecord)
var (
	keyGeneration    = []byte("m/gen")
	prefixGeneration = []byte("g/")
	kindNodeRecord   = []byte("n/")
	kindEdgeRecord   = []byte("e/")
)

// BadgerSnapshotStore persists graph snapshots in BadgerDB.
//
// The in-memory graph stays the source of truth. The store only holds the
// most recent snapshot written with Save, which Load returns in the same
// order.
//
// Example:
//
//	store, err := storage.OpenBadgerSnapshotStore(storage.BadgerOptions{DataDir: "./data"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	snap, _ := engine.Snapshot()
//	if err := store.Save(snap); err != nil {
//		return err
//	}
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
type BadgerSnapshotStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// BadgerOptions configures the BadgerDB snapshot store.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB logging is disabled.
	Logger badger.Logger
}

// OpenBadgerSnapshotStore opens or creates a snapshot store.
func OpenBadgerSnapshotStore(opts BadgerOptions) (*BadgerSnapshotStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// Snapshots are small and written rarely
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerSnapshotStore{db: db}, nil
}

func generationPrefix(gen uint64) []byte {
	key := make([]byte, len(prefixGeneration)+8)
	copy(key, prefixGeneration)
	binary.BigEndian.PutUint64(key[len(prefixGeneration):], gen)
	return key
}

func recordPrefix(gen uint64, kind []byte) []byte {
	return append(generationPrefix(gen), kind...)
}

func recordKey(prefix []byte, seq int) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(seq))
	return key
}

// generation returns the generation of the current snapshot, 0 if none
// was saved.
func (s *BadgerSnapshotStore) generation() (uint64, error) {
	var gen uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyGeneration)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("invalid snapshot generation record")
			}
			gen = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return gen, err
}

// Save replaces the stored snapshot.
//
// The snapshot is written under a new generation and becomes current in
// the same flush. The previous generation is dropped afterwards, so a
// failed write leaves the previous snapshot in place.
func (s *BadgerSnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	prev, err := s.generation()
	if err != nil {
		return fmt.Errorf("failed to read snapshot generation: %w", err)
	}
	next := prev + 1

	// Leftovers of an earlier failed save under the same generation.
	if err := s.db.DropPrefix(generationPrefix(next)); err != nil {
		return fmt.Errorf("failed to clear snapshot generation %d: %w", next, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	nodePrefix := recordPrefix(next, kindNodeRecord)
	for i := range snap.Nodes {
		val, err := json.Marshal(&snap.Nodes[i])
		if err != nil {
			return fmt.Errorf("failed to encode node %s: %w", snap.Nodes[i].ID, err)
		}
		if err := wb.Set(recordKey(nodePrefix, i), val); err != nil {
			return err
		}
	}
	edgePrefix := recordPrefix(next, kindEdgeRecord)
	for i := range snap.Edges {
		val, err := json.Marshal(&snap.Edges[i])
		if err != nil {
			return fmt.Errorf("failed to encode edge %d: %w", i, err)
		}
		if err := wb.Set(recordKey(edgePrefix, i), val); err != nil {
			return err
		}
	}

	genVal := make([]byte, 8)
	binary.BigEndian.PutUint64(genVal, next)
	if err := wb.Set(keyGeneration, genVal); err != nil {
		return err
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if prev > 0 {
		if err := s.db.DropPrefix(generationPrefix(prev)); err != nil {
			return fmt.Errorf("snapshot saved, failed to drop generation %d: %w", prev, err)
		}
	}
	return nil
}

// Load returns the stored snapshot. An empty store yields an empty snapshot.
func (s *BadgerSnapshotStore) Load() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	snap := &Snapshot{Nodes: []NodeRecord{}, Edges: []EdgeRecord{}}
	gen, err := s.generation()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot generation: %w", err)
	}
	if gen == 0 {
		return snap, nil
	}
	nodePrefix := recordPrefix(gen, kindNodeRecord)
	edgePrefix := recordPrefix(gen, kindEdgeRecord)

	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(nodePrefix); it.ValidForPrefix(nodePrefix); it.Next() {
			var rec NodeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode node record: %w", err)
			}
			snap.Nodes = append(snap.Nodes, rec)
		}

		for it.Seek(edgePrefix); it.ValidForPrefix(edgePrefix); it.Next() {
			var rec EdgeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode edge record: %w", err)
			}
			snap.Edges = append(snap.Edges, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Close closes the underlying database.
func (s *BadgerSnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

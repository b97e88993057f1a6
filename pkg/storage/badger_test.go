package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerSnapshotStore(t *testing.T) {
	store, err := OpenBadgerSnapshotStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	t.Run("empty store", func(t *testing.T) {
		snap, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, snap.Nodes)
		assert.Empty(t, snap.Edges)
	})

	t.Run("save and load keeps order", func(t *testing.T) {
		engine := buildSnapshotGraph(t)
		snap, err := engine.Snapshot()
		require.NoError(t, err)

		require.NoError(t, store.Save(snap))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.Len(t, loaded.Nodes, len(snap.Nodes))
		for i := range snap.Nodes {
			assert.Equal(t, snap.Nodes[i].ID, loaded.Nodes[i].ID)
			assert.JSONEq(t, string(snap.Nodes[i].Data), string(loaded.Nodes[i].Data))
		}
		assert.Equal(t, snap.Edges, loaded.Edges)

		restored := NewMemoryEngine()
		require.NoError(t, restored.Restore(loaded))
		assert.Equal(t, engine.EdgeCount(), restored.EdgeCount())
	})

	t.Run("save replaces previous snapshot", func(t *testing.T) {
		small := &Snapshot{
			Nodes: []NodeRecord{{ID: "user:solo", Type: NodeTypeUser}},
		}
		require.NoError(t, store.Save(small))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.Len(t, loaded.Nodes, 1)
		assert.Equal(t, NodeID("user:solo"), loaded.Nodes[0].ID)
		assert.Empty(t, loaded.Edges)
	})
}

func countKeys(t *testing.T, store *BadgerSnapshotStore, prefix []byte) int {
	t.Helper()
	n := 0
	require.NoError(t, store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	}))
	return n
}

func TestBadgerSnapshotStoreInterruptedSave(t *testing.T) {
	store, err := OpenBadgerSnapshotStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	first := &Snapshot{Nodes: []NodeRecord{{ID: "user:a", Type: NodeTypeUser}}}
	require.NoError(t, store.Save(first))
	gen, err := store.generation()
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)

	// Records of a save that never flushed its generation switch.
	wb := store.db.NewWriteBatch()
	orphans := recordPrefix(gen+1, kindNodeRecord)
	for i := 0; i < 3; i++ {
		require.NoError(t, wb.Set(recordKey(orphans, i), []byte(`{"id":"user:orphan","type":"user"}`)))
	}
	require.NoError(t, wb.Flush())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, NodeID("user:a"), loaded.Nodes[0].ID)

	second := &Snapshot{Nodes: []NodeRecord{{ID: "user:b", Type: NodeTypeUser}}}
	require.NoError(t, store.Save(second))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 1, "leftover records of the failed save are cleared")
	assert.Equal(t, NodeID("user:b"), loaded.Nodes[0].ID)
	assert.Zero(t, countKeys(t, store, generationPrefix(1)), "previous generation is dropped")
	assert.Equal(t, 1, countKeys(t, store, generationPrefix(2)))
}

func TestBadgerSnapshotStoreClosed(t *testing.T) {
	store, err := OpenBadgerSnapshotStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrStorageClosed)
	assert.ErrorIs(t, store.Save(&Snapshot{}), ErrStorageClosed)
}

package precedent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aceerrors "github.com/calyptra/ace-go/pkg/errors"
)

func TestFileStore(t *testing.T) {
	t.Run("missing file is an empty store", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "precedent.json"))
		entries, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("put and load roundtrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "precedent.json")
		store := NewFileStore(path)

		anchor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		entry := &Entry{
			Score:       0.45,
			DecayAnchor: anchor,
			Instances: []Instance{
				{Timestamp: anchor, Details: "commit", Result: Positive},
				{Timestamp: anchor.Add(time.Minute)},
			},
		}
		require.NoError(t, store.Put("git:commit:local", entry))

		// A second class leaves the first intact.
		require.NoError(t, store.Put("fs:write:local", &Entry{Score: 0.15, DecayAnchor: anchor}))

		loaded, err := NewFileStore(path).Load()
		require.NoError(t, err)
		require.Len(t, loaded, 2)

		got := loaded["git:commit:local"]
		require.NotNil(t, got)
		assert.InDelta(t, 0.45, got.Score, 0.001)
		assert.True(t, got.DecayAnchor.Equal(anchor))
		require.Len(t, got.Instances, 2)
		assert.Equal(t, Positive, got.Instances[0].Result)
		assert.Empty(t, got.Instances[1].Result)
	})

	t.Run("corrupt file is a storage error, not empty history", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "precedent.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := NewFileStore(path).Load()
		require.Error(t, err)
		assert.Equal(t, aceerrors.StorageFailed, aceerrors.Code(err))
	})

	t.Run("no leftover temp file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "precedent.json")
		store := NewFileStore(path)
		require.NoError(t, store.Put("a:b", &Entry{DecayAnchor: time.Now()}))

		_, err := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	entry := &Entry{Score: 0.3, DecayAnchor: time.Now()}
	require.NoError(t, store.Put("a:b", entry))

	// Mutating the caller's entry after Put must not leak into the store.
	entry.Score = 0.9
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, loaded["a:b"].Score, 0.001)
}

package storage

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/simplestore/internal/logging"
)

var engines = []string{EngineFilesystem, EngineBadger, EnginePebble}

func createTestBackend(t *testing.T, engine, dir string) Backend {
	t.Helper()
	backend, err := NewBackend(Options{
		Engine: engine,
		Dir:    dir,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

// TestBackendConformance runs the same contract against every engine
func TestBackendConformance(t *testing.T) {
	for _, engine := range engines {
		engine := engine
		t.Run(engine, func(t *testing.T) {
			runBackendSuite(t, engine)
		})
	}
}

func runBackendSuite(t *testing.T, engine string) {
	ctx := context.Background()

	t.Run("Absent key reads as nil", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		value, err := backend.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, value)

		exists, err := backend.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Reads do not create the namespace", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "ns")
		backend := createTestBackend(t, engine, dir)

		_, err := backend.Get(ctx, "k")
		require.NoError(t, err)
		_, err = backend.Keys(ctx)
		require.NoError(t, err)
		require.NoError(t, backend.Delete(ctx, "k"))
		require.NoError(t, backend.Clear(ctx))

		exists, err := dirExists(dir)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Put and get", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		require.NoError(t, backend.Put(ctx, "greeting", []byte("hello")))

		value, err := backend.Get(ctx, "greeting")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), value)

		exists, err := backend.Exists(ctx, "greeting")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Empty value is distinct from absence", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		require.NoError(t, backend.Put(ctx, "empty", []byte{}))

		value, err := backend.Get(ctx, "empty")
		require.NoError(t, err)
		require.NotNil(t, value)
		assert.Len(t, value, 0)

		exists, err := backend.Exists(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Nil put deletes", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		require.NoError(t, backend.Put(ctx, "k", []byte("v")))
		require.NoError(t, backend.Put(ctx, "k", nil))

		value, err := backend.Get(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("Overwrite replaces the value", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		require.NoError(t, backend.Put(ctx, "k", []byte("a much longer first value")))
		require.NoError(t, backend.Put(ctx, "k", []byte("short")))

		value, err := backend.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("short"), value)
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		require.NoError(t, backend.Put(ctx, "k", []byte("v")))
		require.NoError(t, backend.Delete(ctx, "k"))
		require.NoError(t, backend.Delete(ctx, "k"))

		exists, err := backend.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Keys with unsafe characters round trip", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		keys := []string{"plain", "with/slash", "..", "dot.ted", "spa ce", "ünï", "%41", "A"}
		for i, k := range keys {
			require.NoError(t, backend.Put(ctx, k, []byte{byte(i + 1)}))
		}
		for i, k := range keys {
			value, err := backend.Get(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i + 1)}, value, "key %q", k)
		}

		listed, err := backend.Keys(ctx)
		require.NoError(t, err)
		sort.Strings(listed)
		expected := append([]string(nil), keys...)
		sort.Strings(expected)
		assert.Equal(t, expected, listed)
	})

	t.Run("Empty key is rejected", func(t *testing.T) {
		backend := createTestBackend(t, engine, filepath.Join(t.TempDir(), "ns"))

		assert.ErrorIs(t, backend.Put(ctx, "", []byte("v")), ErrInvalidKey)
		_, err := backend.Get(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("Clear removes entries but not child namespaces", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "main")
		parent := createTestBackend(t, engine, root)
		child := createTestBackend(t, engine, filepath.Join(root, "nest"))

		require.NoError(t, parent.Put(ctx, "a", []byte("1")))
		require.NoError(t, parent.Put(ctx, "b", []byte("2")))
		require.NoError(t, child.Put(ctx, "a", []byte("child")))

		require.NoError(t, parent.Clear(ctx))

		keys, err := parent.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		value, err := child.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("child"), value)

		// Still writable after a clear.
		require.NoError(t, parent.Put(ctx, "a", []byte("again")))
		value, err = parent.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("again"), value)
	})

	t.Run("Destroy removes the subtree and recreates on write", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "main")
		parent := createTestBackend(t, engine, root)
		child := createTestBackend(t, engine, filepath.Join(root, "nest"))

		require.NoError(t, parent.Put(ctx, "a", []byte("1")))
		require.NoError(t, child.Put(ctx, "a", []byte("2")))
		require.NoError(t, child.Close())

		require.NoError(t, parent.Destroy(ctx))

		exists, err := dirExists(root)
		require.NoError(t, err)
		assert.False(t, exists)

		value, err := parent.Get(ctx, "a")
		require.NoError(t, err)
		assert.Nil(t, value)

		require.NoError(t, parent.Put(ctx, "a", []byte("3")))
		value, err = parent.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("3"), value)
	})

	t.Run("Values survive reopen", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "ns")
		first, err := NewBackend(Options{Engine: engine, Dir: dir, SyncWrites: true, Logger: logging.Discard()})
		require.NoError(t, err)
		require.NoError(t, first.Put(ctx, "durable", []byte("yes")))
		require.NoError(t, first.Close())

		second := createTestBackend(t, engine, dir)
		value, err := second.Get(ctx, "durable")
		require.NoError(t, err)
		assert.Equal(t, []byte("yes"), value)
	})
}

func TestNewBackendValidation(t *testing.T) {
	t.Run("Unsupported engine", func(t *testing.T) {
		_, err := NewBackend(Options{Engine: "cassandra", Dir: t.TempDir()})
		assert.ErrorIs(t, err, ErrUnsupportedEngine)
	})

	t.Run("Missing directory", func(t *testing.T) {
		_, err := NewBackend(Options{})
		assert.Error(t, err)
	})
}

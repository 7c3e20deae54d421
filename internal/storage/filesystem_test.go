package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/simplestore/internal/logging"
)

func TestFilesystemLayout(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ns")
	fs := newFilesystemBackend(Options{Dir: dir, SyncWrites: true, Logger: logging.Discard()})

	require.NoError(t, fs.Put(ctx, "a/b", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "~a%2Fb", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "~a%2Fb"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestFilesystemConcurrentWritesLeaveNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := newFilesystemBackend(Options{Dir: dir, Logger: logging.Discard()})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := []byte(strings.Repeat(string(rune('a'+i)), 1024))
			assert.NoError(t, fs.Put(ctx, "shared", value))
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "~shared", entries[0].Name())

	// Whatever won, the file holds one complete value.
	data, err := fs.Get(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, data, 1024)
	assert.Equal(t, strings.Repeat(string(data[0]), 1024), string(data))
}

func TestFilesystemKeysIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := newFilesystemBackend(Options{Dir: dir, Logger: logging.Discard()})

	require.NoError(t, fs.Put(ctx, "real", []byte("1")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-orphan"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "child"), 0755))

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, keys)

	require.NoError(t, fs.Clear(ctx))

	_, err = os.Stat(filepath.Join(dir, ".tmp-orphan"))
	assert.True(t, os.IsNotExist(err), "orphaned temp file should be cleared")
	_, err = os.Stat(filepath.Join(dir, "README"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "child"))
	assert.NoError(t, err)
}

func TestFilesystemClearRemovesEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ns")
	fs := newFilesystemBackend(Options{Dir: dir, Logger: logging.Discard()})

	require.NoError(t, fs.Put(ctx, "k", []byte("v")))
	require.NoError(t, fs.Clear(ctx))

	exists, err := dirExists(dir)
	require.NoError(t, err)
	assert.False(t, exists)
}

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hpy/internal/logging"
)

func newTestWatcher(t *testing.T, root string) *FileWatcher {
	t.Helper()
	fw, err := New(root, 50*time.Millisecond, logging.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })
	return fw
}

func TestWatcherDeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	fw := newTestWatcher(t, root)
	require.NoError(t, fw.AddRecursive(root))

	var mutex sync.Mutex
	var batches [][]ChangeEvent
	fw.AddHandler(func(events []ChangeEvent) error {
		mutex.Lock()
		defer mutex.Unlock()
		batches = append(batches, events)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	// Rapid writes to the same file must coalesce into one event.
	path := filepath.Join(root, "index.hpy")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<html><p>x</p></html>"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	require.Len(t, batches, 1)
	paths := make(map[string]int)
	for _, e := range batches[0] {
		paths[e.Path]++
	}
	assert.Equal(t, 1, paths[path])
}

func TestWatcherFiltersReject(t *testing.T) {
	root := t.TempDir()
	fw := newTestWatcher(t, root)
	require.NoError(t, fw.AddRecursive(root))
	fw.AddFilter(func(path string) bool {
		return filepath.Ext(path) != ".tmp"
	})

	var mutex sync.Mutex
	seen := 0
	fw.AddHandler(func(events []ChangeEvent) error {
		mutex.Lock()
		defer mutex.Unlock()
		seen += len(events)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Zero(t, seen)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	fw := newTestWatcher(t, root)
	require.NoError(t, fw.AddRecursive(root))

	var mutex sync.Mutex
	var paths []string
	fw.AddHandler(func(events []ChangeEvent) error {
		mutex.Lock()
		defer mutex.Unlock()
		for _, e := range events {
			paths = append(paths, e.Path)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	sub := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(100 * time.Millisecond)
	inner := filepath.Join(sub, "guide.hpy")
	require.NoError(t, os.WriteFile(inner, []byte("<html><p>g</p></html>"), 0o644))

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		for _, p := range paths {
			if p == inner {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAddRecursiveRejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	fw := newTestWatcher(t, root)

	err := fw.AddRecursive(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the watch root")
}

func TestSourceFilter(t *testing.T) {
	assert.True(t, SourceFilter("src/index.hpy"))
	assert.True(t, SourceFilter("src/app.py"))
	assert.True(t, SourceFilter("src/style/site.css"))
	assert.True(t, SourceFilter("src/_app.html"))
	assert.False(t, SourceFilter("src/readme.txt"))
}

func TestNoHiddenFilter(t *testing.T) {
	assert.True(t, NoHiddenFilter("src/index.hpy"))
	assert.False(t, NoHiddenFilter("src/.git/config"))
	assert.False(t, NoHiddenFilter(".hpy_reload"))
}

func TestNoOutputFilter(t *testing.T) {
	filter := NoOutputFilter("dist", ".hpy_dev_output")
	assert.False(t, filter(filepath.Join("dist", "index.html")))
	assert.False(t, filter(filepath.Join(".hpy_dev_output", "index.html")))
	assert.True(t, filter(filepath.Join("src", "index.hpy")))
}

func TestAnyFilter(t *testing.T) {
	f := Any(
		func(p string) bool { return filepath.Ext(p) == ".a" },
		func(p string) bool { return filepath.Ext(p) == ".b" },
	)
	assert.True(t, f("x.a"))
	assert.True(t, f("x.b"))
	assert.False(t, f("x.c"))
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options, trigger TriggerFunc) {
	t.Helper()
	w, err := New(opts, trigger)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	startWatcher(t, Options{Dirs: []string{dir}, Debounce: 150 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file.js"), []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
}

func TestWatcher_IgnoresOutputDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(out, 0o750))

	var runs atomic.Int32
	startWatcher(t, Options{Dirs: []string{dir}, Ignore: []string{out}, Debounce: 50 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(filepath.Join(out, "main.js"), []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 0, runs.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.js"), []byte("x"), 0o600))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	startWatcher(t, Options{Dirs: []string{dir}, Debounce: 50 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	sub := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	before := runs.Load()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.js"), []byte("x"), 0o600))
	assert.Eventually(t, func() bool { return runs.Load() > before }, 2*time.Second, 20*time.Millisecond)
}

func TestNew_RequiresDirs(t *testing.T) {
	_, err := New(Options{}, func(context.Context) error { return nil })
	assert.Error(t, err)
}

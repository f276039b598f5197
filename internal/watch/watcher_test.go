package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixonmars/watchexec/internal/event"
)

type captureSubmitter struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *captureSubmitter) SubmitEvent(ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSubmitter) find(path string) (event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Path == path {
			return ev, true
		}
	}
	return event.Event{}, false
}

func waitFor(t *testing.T, cond func() bool, within time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, sub Submitter, paths ...string) *Watcher {
	t.Helper()
	w, err := NewWatcher(sub)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	for _, p := range paths {
		require.NoError(t, w.AddPath(p))
	}
	w.Start()
	return w
}

func TestCreateAndWriteEvents(t *testing.T) {
	dir := t.TempDir()
	sub := &captureSubmitter{}
	startWatcher(t, sub, dir)

	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))

	require.True(t, waitFor(t, func() bool {
		_, ok := sub.find(path)
		return ok
	}, 5*time.Second), "no event for created file")

	ev, _ := sub.find(path)
	assert.Equal(t, event.TypeFileChange, ev.Type)
	assert.Contains(t, []string{event.FileCreated, event.FileModified}, ev.FileKind)
	assert.Equal(t, event.Normal, ev.Priority())
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	sub := &captureSubmitter{}
	startWatcher(t, sub, dir)

	subdir := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(subdir, 0o755))

	// Wait for the directory watch to be registered.
	time.Sleep(300 * time.Millisecond)

	inner := filepath.Join(subdir, "inner.go")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))

	assert.True(t, waitFor(t, func() bool {
		_, ok := sub.find(inner)
		return ok
	}, 5*time.Second), "file in a new subdirectory must be seen")
}

func TestRemoveEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	sub := &captureSubmitter{}
	startWatcher(t, sub, dir)

	require.NoError(t, os.Remove(path))

	require.True(t, waitFor(t, func() bool {
		ev, ok := sub.find(path)
		return ok && ev.FileKind == event.FileDeleted
	}, 5*time.Second), "no delete event")
}

func TestAddPathTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	sub := &captureSubmitter{}
	w := startWatcher(t, sub, dir)
	assert.NoError(t, w.AddPath(dir))
}

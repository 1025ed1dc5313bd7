package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_EmitsCreatedThenModifiedThenDeleted(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")

	reg := NewRegistry()
	var events []EventKind
	id := reg.Watch(p, func(kind EventKind, path string) {
		events = append(events, kind)
		assert.Equal(t, p, path)
	}, Options{WatchSize: true})
	require.NotEmpty(t, id)

	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))
	reg.PollDue(time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0])

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte("v2-longer"), 0o644))
	reg.PollDue(time.Now())
	require.Len(t, events, 2)
	assert.Equal(t, EventModified, events[1])

	require.NoError(t, os.Remove(p))
	reg.PollDue(time.Now())
	require.Len(t, events, 3)
	assert.Equal(t, EventDeleted, events[2])
}

func TestRegistry_UnwatchStopsFutureCallbacks(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))

	reg := NewRegistry()
	count := 0
	id := reg.Watch(p, func(EventKind, string) { count++ }, Options{})
	require.True(t, reg.Unwatch(id))

	require.NoError(t, os.WriteFile(p, []byte("v2-longer"), 0o644))
	reg.PollDue(time.Now())
	assert.Equal(t, 0, count)
}

func TestRegistry_IndependentWatchersOnSamePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))

	reg := NewRegistry()
	var a, b int
	reg.Watch(p, func(EventKind, string) { a++ }, Options{})
	id2 := reg.Watch(p, func(EventKind, string) { b++ }, Options{})
	reg.Unwatch(id2)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte("v2-longer"), 0o644))
	reg.PollDue(time.Now())

	assert.Equal(t, 1, a)
	assert.Equal(t, 0, b)
}

func TestRegistry_WatchContentDetectsSameSizeChange(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("aaaa"), 0o644))

	reg := NewRegistry()
	var count int
	reg.Watch(p, func(EventKind, string) { count++ }, Options{WatchContent: true})

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte("bbbb"), 0o644))
	reg.PollDue(time.Now())
	assert.Equal(t, 1, count)
}

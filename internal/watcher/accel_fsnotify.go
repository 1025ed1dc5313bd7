package watcher

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FsnotifyAccelerator bridges fsnotify into the Registry's accelerator
// hook: on any event for a watched path, it forces an immediate re-poll
// of that path through the registry's normal snapshot-comparison code,
// rather than trusting fsnotify's own event payload. This is what makes
// it safe as a pure latency optimization instead of a second source of
// truth, matching the pack's fsnotify-backed config watcher pattern.
type FsnotifyAccelerator struct {
	fw       *fsnotify.Watcher
	registry *Registry

	mu      sync.Mutex
	watched map[string]int // refcount, since multiple watch() calls may share a path
	closed  bool
}

func NewFsnotifyAccelerator(registry *Registry) (*FsnotifyAccelerator, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	a := &FsnotifyAccelerator{fw: fw, registry: registry, watched: make(map[string]int)}
	go a.run()
	return a, nil
}

func (a *FsnotifyAccelerator) run() {
	for {
		select {
		case ev, ok := <-a.fw.Events:
			if !ok {
				return
			}
			a.registry.PollOnePath(ev.Name)
		case _, ok := <-a.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (a *FsnotifyAccelerator) Watch(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if a.watched[path] == 0 {
		if err := a.fw.Add(path); err != nil {
			return err
		}
	}
	a.watched[path]++
	return nil
}

func (a *FsnotifyAccelerator) Unwatch(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.watched[path]--
	if a.watched[path] <= 0 {
		delete(a.watched, path)
		_ = a.fw.Remove(path)
	}
}

func (a *FsnotifyAccelerator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.fw.Close()
	if err != nil && errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

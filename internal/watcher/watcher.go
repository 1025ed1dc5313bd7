// Package watcher implements the polling file-watch engine: per-path
// snapshot comparison each time the event loop polls the registry (once
// per loop tick), with an optional OS-event (inotify or fsnotify)
// acceleration layer that shortens detection latency without the polling
// path ever being bypassed as the source of truth.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies the kind of change a watcher observed.
type EventKind int

const (
	EventModified EventKind = iota
	EventCreated
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventModified:
		return "modified"
	case EventCreated:
		return "created"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Callback is invoked once per observed change, receiving the event kind
// and the watched path.
type Callback func(kind EventKind, path string)

const DefaultPollInterval = 100 * time.Millisecond

// Options configures a single watch registration, matching the
// polling_interval/watch_size/watch_content option trio from the
// operation table. PollInterval is recorded (defaulting to
// DefaultPollInterval) but not consulted by the Registry: PollDue re-stats
// every entry each time it is called.
type Options struct {
	PollInterval time.Duration
	WatchSize    bool
	WatchContent bool
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// snapshot is the last-observed state of a watched path.
type snapshot struct {
	present bool
	size    int64
	mtime   int64
	hash    string
}

func takeSnapshot(path string, watchContent bool) snapshot {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{present: false}
	}
	s := snapshot{present: true, size: info.Size(), mtime: info.ModTime().UnixNano()}
	if watchContent {
		s.hash = hashFile(path)
	}
	return s
}

func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// entry is one registered watch: a path, its callback, its options, and
// its last snapshot. Unwatch sets cancelled and removes the entry from the
// registry: a poll that had already selected the entry still delivers its
// callback, and no later poll selects it.
type entry struct {
	id       string
	path     string
	callback Callback
	opts     Options
	last     snapshot
	cancelled atomic.Bool
}

// Registry tracks every live watch and drives polling via PollDue, which
// the event loop calls once per tick so watcher callbacks run on the loop
// thread like every other continuation.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	nextID   int64
	accel    accelerator
}

// accelerator is the optional OS-event acceleration hook: on a hit for
// path, it should trigger an out-of-cycle poll of just that path. The
// watcher package works correctly with a nil accelerator; it only
// shortens worst-case detection latency.
type accelerator interface {
	Watch(path string) error
	Unwatch(path string)
	Close() error
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// SetAccelerator installs an OS-event acceleration backend (e.g. fsnotify
// or inotify). Passing nil disables acceleration; polling remains
// correct either way.
func (r *Registry) SetAccelerator(a accelerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accel = a
}

// Watch registers a new watch on path and returns its opaque id. The
// initial snapshot is captured synchronously so the very first poll
// compares against a real baseline rather than an empty one.
func (r *Registry) Watch(path string, cb Callback, opts Options) string {
	opts = opts.withDefaults()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := formatID(r.nextID)
	e := &entry{id: id, path: path, callback: cb, opts: opts, last: takeSnapshot(path, opts.WatchContent)}
	r.entries[id] = e
	if r.accel != nil {
		_ = r.accel.Watch(path)
	}
	return id
}

// Unwatch guarantees no further callbacks fire for id: entries already
// selected by an in-flight PollDue still deliver, but the entry is
// removed from the registry before the next poll begins.
func (r *Registry) Unwatch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.cancelled.Store(true)
	delete(r.entries, id)
	if r.accel != nil {
		stillWatched := false
		for _, other := range r.entries {
			if other.path == e.path {
				stillWatched = true
				break
			}
		}
		if !stillWatched {
			r.accel.Unwatch(e.path)
		}
	}
	return true
}

// PollDue re-stats every registered path and invokes callbacks for any
// observed change. The loop calls it once per tick. Watchers operate
// independently: pollOne recovers a panicking callback, so the remaining
// entries are still polled.
func (r *Registry) PollDue(now time.Time) {
	r.mu.Lock()
	due := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		due = append(due, e)
	}
	r.mu.Unlock()

	for _, e := range due {
		r.pollOne(e)
	}
}

// PollOnePath forces an immediate re-stat of every entry watching path,
// without waiting for the next loop tick. This is what an OS-event
// acceleration hit triggers; it runs the exact same comparison code path
// as the periodic poll, so correctness never depends on it being called.
func (r *Registry) PollOnePath(path string) {
	r.mu.Lock()
	var matches []*entry
	for _, e := range r.entries {
		if e.path == path {
			matches = append(matches, e)
		}
	}
	r.mu.Unlock()
	for _, e := range matches {
		r.pollOne(e)
	}
}

func (r *Registry) pollOne(e *entry) {
	current := takeSnapshot(e.path, e.opts.WatchContent)
	kind, changed := compare(e.last, current, e.opts)
	e.last = current
	if changed {
		func() {
			defer func() { _ = recover() }()
			e.callback(kind, e.path)
		}()
	}
}

func compare(prev, cur snapshot, opts Options) (EventKind, bool) {
	switch {
	case prev.present && !cur.present:
		return EventDeleted, true
	case !prev.present && cur.present:
		return EventCreated, true
	case !prev.present && !cur.present:
		return 0, false
	}
	if opts.WatchContent && prev.hash != cur.hash {
		return EventModified, true
	}
	if opts.WatchSize && prev.size != cur.size {
		return EventModified, true
	}
	if prev.mtime != cur.mtime {
		return EventModified, true
	}
	return 0, false
}

func formatID(n int64) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "w0"
	}
	buf := make([]byte, 0, 12)
	for n > 0 {
		buf = append(buf, alphabet[n%int64(len(alphabet))])
		n /= int64(len(alphabet))
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return "w" + string(buf)
}

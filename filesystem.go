// Package filesystem implements an asynchronous filesystem operations
// engine: every operation returns a future, runs on a single-threaded
// cooperative event loop, and offloads the actual blocking syscall to a
// bounded worker pool so the loop thread never blocks.
package filesystem

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hiblaphp/filesystem/internal/ferrors"
	"github.com/hiblaphp/filesystem/internal/fsops"
	"github.com/hiblaphp/filesystem/internal/future"
	"github.com/hiblaphp/filesystem/internal/loop"
	"github.com/hiblaphp/filesystem/internal/streaming"
	"github.com/hiblaphp/filesystem/internal/watcher"
)

// Stats is the file-stats mapping returned by GetStats: {size, atime,
// mtime, ctime}. Atime and Ctime hold the modification time; the file's
// access and status-change times are not read.
type Stats = fsops.Stats

// Logger is the structured logging sink every component of this engine
// logs through.
type Logger = loop.Logger

// Kind is a taxonomy error kind (see Error).
type Kind = ferrors.Kind

const (
	KindNotFound          = ferrors.KindNotFound
	KindAlreadyExists     = ferrors.KindAlreadyExists
	KindPermissionDenied  = ferrors.KindPermissionDenied
	KindReadFailed        = ferrors.KindReadFailed
	KindWriteFailed       = ferrors.KindWriteFailed
	KindCopyFailed        = ferrors.KindCopyFailed
	KindDirectoryNotEmpty = ferrors.KindDirectoryNotEmpty
	KindDiskFull          = ferrors.KindDiskFull
	KindInvalidPath       = ferrors.KindInvalidPath
	KindStreamFailed      = ferrors.KindStreamFailed
	KindGeneric           = ferrors.KindGeneric
)

// Error is the single concrete error type for every taxonomy kind.
type Error = ferrors.Error

// State is the settlement state of a future.
type State = future.State

const (
	Pending   = future.Pending
	Fulfilled = future.Fulfilled
	Rejected  = future.Rejected
	Cancelled = future.Cancelled
)

// Puller pulls the next chunk of a byte stream, as consumed/produced by
// the streaming operations.
type Puller = streaming.Puller

// LazySequence is the value readFromGenerator/readLines fulfill with.
type LazySequence = streaming.LazySequence

// ErrSequenceCancelled is returned by LazySequence.Pull once the
// originating operation's future has been cancelled.
var ErrSequenceCancelled = streaming.ErrSequenceCancelled

// EventKind identifies the kind of change a watch callback observed.
type EventKind = watcher.EventKind

const (
	EventModified = watcher.EventModified
	EventCreated  = watcher.EventCreated
	EventDeleted  = watcher.EventDeleted
)

// WatchCallback is invoked once per observed change.
type WatchCallback = watcher.Callback

// Future is a non-cancellable asynchronous result.
type Future struct{ n *future.Future }

func (f *Future) Then(onFulfilled, onRejected func(v any) (any, error)) *Future {
	return &Future{n: f.n.Then(wrap(onFulfilled), wrap(onRejected))}
}
func (f *Future) Catch(onRejected func(v any) (any, error)) *Future {
	return &Future{n: f.n.Catch(wrap(onRejected))}
}
func (f *Future) Finally(fn func()) *Future { return &Future{n: f.n.Finally(fn)} }
func (f *Future) Await() (any, error)       { return f.n.Await() }
func (f *Future) State() State              { return f.n.State() }

// CancellableFuture is an asynchronous result that can be cancelled
// before it settles.
type CancellableFuture struct{ n *future.CancellableFuture }

func (f *CancellableFuture) Then(onFulfilled, onRejected func(v any) (any, error)) *CancellableFuture {
	return &CancellableFuture{n: f.n.Then(wrap(onFulfilled), wrap(onRejected))}
}
func (f *CancellableFuture) Catch(onRejected func(v any) (any, error)) *CancellableFuture {
	return &CancellableFuture{n: f.n.Catch(wrap(onRejected))}
}
func (f *CancellableFuture) Finally(fn func()) *CancellableFuture {
	return &CancellableFuture{n: f.n.Finally(fn)}
}
func (f *CancellableFuture) Await() (any, error)      { return f.n.Await() }
func (f *CancellableFuture) State() State             { return f.n.State() }
func (f *CancellableFuture) IsCancelled() bool        { return f.n.IsCancelled() }
func (f *CancellableFuture) Cancel(reason any)        { f.n.Cancel(reason) }

// Signal returns the AbortSignal backing this future's cancellation, for
// code that wants abort notification without holding the future itself.
func (f *CancellableFuture) Signal() *AbortSignal { return f.n.Signal() }

// AbortSignal reports whether (and why) an operation was cancelled; see
// CancellableFuture.Signal.
type AbortSignal = future.AbortSignal

// CombinedSignal returns a signal that fires as soon as any of the given
// cancellable futures is cancelled, for watching a group of in-flight
// operations without polling each one's IsCancelled individually.
func CombinedSignal(futures []*CancellableFuture) *AbortSignal {
	signals := make([]*AbortSignal, len(futures))
	for i, f := range futures {
		signals[i] = f.Signal()
	}
	return future.AbortAny(signals)
}

func wrap(fn func(v any) (any, error)) future.Handler {
	if fn == nil {
		return nil
	}
	return future.Handler(fn)
}

// Awaitable is anything All/Race/AllSettled/Concurrent/Batch can wait on;
// both *Future and *CancellableFuture implement it.
type Awaitable interface {
	awaitable() future.Awaitable
}

func (f *Future) awaitable() future.Awaitable           { return f.n }
func (f *CancellableFuture) awaitable() future.Awaitable { return f.n }

func unwrapAll(items []Awaitable) []future.Awaitable {
	inner := make([]future.Awaitable, len(items))
	for i, it := range items {
		inner[i] = it.awaitable()
	}
	return inner
}

// All waits for every awaitable to fulfill, or rejects on the first
// rejection among them. An input that is cancelled never reports to All,
// so the result then settles only through another input's rejection.
func All(items []Awaitable) *Future {
	return &Future{n: future.All(getInstance().loop, unwrapAll(items))}
}

// Race settles with whichever awaitable settles first.
func Race(items []Awaitable) *Future {
	return &Future{n: future.Race(getInstance().loop, unwrapAll(items))}
}

// AllSettled waits for every awaitable to settle, never itself rejecting.
func AllSettled(items []Awaitable) *Future {
	return &Future{n: future.AllSettled(getInstance().loop, unwrapAll(items))}
}

// Outcome is one entry of an AllSettled result.
type Outcome = future.Outcome

// ConcurrentTask is a thunk that starts work and returns the Awaitable
// tracking it, used by Concurrent and Batch.
type ConcurrentTask func() Awaitable

func unwrapTasks(tasks []ConcurrentTask) []future.Task {
	inner := make([]future.Task, len(tasks))
	for i, t := range tasks {
		t := t
		inner[i] = func() future.Awaitable { return t().awaitable() }
	}
	return inner
}

// Concurrent runs tasks with at most limit in flight at once.
func Concurrent(tasks []ConcurrentTask, limit int) *Future {
	return &Future{n: future.Concurrent(getInstance().loop, unwrapTasks(tasks), limit)}
}

// Batch runs tasks in sequential groups of size.
func Batch(tasks []ConcurrentTask, size int) *Future {
	return &Future{n: future.Batch(getInstance().loop, unwrapTasks(tasks), size)}
}

// OpOption configures a single operation call; the recognized keys match
// the configuration-options table exactly (offset, length, chunk_size,
// trim, skip_empty, create_directories, buffer_size, recursive, mode).
type OpOption func(map[string]any)

func WithOffset(n int64) OpOption    { return func(m map[string]any) { m["offset"] = n } }
func WithLength(n int64) OpOption    { return func(m map[string]any) { m["length"] = n } }
func WithChunkSize(n int) OpOption   { return func(m map[string]any) { m["chunk_size"] = n } }
func WithTrim(b bool) OpOption       { return func(m map[string]any) { m["trim"] = b } }
func WithSkipEmpty(b bool) OpOption  { return func(m map[string]any) { m["skip_empty"] = b } }
func WithCreateDirectories(b bool) OpOption {
	return func(m map[string]any) { m["create_directories"] = b }
}
func WithBufferSize(n int) OpOption { return func(m map[string]any) { m["buffer_size"] = n } }
func WithRecursive(b bool) OpOption { return func(m map[string]any) { m["recursive"] = b } }
func WithDirMode(mode os.FileMode) OpOption {
	return func(m map[string]any) { m["mode"] = mode }
}

func buildOptions(opts []OpOption) map[string]any {
	m := make(map[string]any, len(opts))
	for _, o := range opts {
		o(m)
	}
	return m
}

// HandlerOption configures the process-wide singleton handler; pass to
// Configure before the first operation call.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	workerPoolSize int
	enableMetrics  bool
	enableOSAccel  bool
	logger         Logger
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{workerPoolSize: 16, enableMetrics: true}
}

func WithWorkerPoolSize(n int) HandlerOption {
	return func(c *handlerConfig) { c.workerPoolSize = n }
}
func WithMetrics(enabled bool) HandlerOption {
	return func(c *handlerConfig) { c.enableMetrics = enabled }
}

// WithOSEventAcceleration enables the optional OS-event acceleration
// layer (inotify on Linux, fsnotify elsewhere) for watch(). Polling
// remains the source of truth either way.
func WithOSEventAcceleration(enabled bool) HandlerOption {
	return func(c *handlerConfig) { c.enableOSAccel = enabled }
}
func WithHandlerLogger(l Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

var (
	instanceMu    sync.Mutex
	instance      *handler
	pendingConfig *handlerConfig
)

// Configure sets the configuration used to construct the process-wide
// singleton handler. It must be called before the first operation; once
// the singleton exists, Configure returns an error (call Reset first).
func Configure(opts ...HandlerOption) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return errors.New("filesystem: Configure called after the handler was already initialized")
	}
	cfg := defaultHandlerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	pendingConfig = &cfg
	return nil
}

// Reset tears down the process-wide singleton handler (stopping every
// watcher and the event loop), used by tests that need a clean slate.
func Reset() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		instance.close()
	}
	instance = nil
	pendingConfig = nil
}

func getInstance() *handler {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		cfg := defaultHandlerConfig()
		if pendingConfig != nil {
			cfg = *pendingConfig
		}
		instance = newHandler(cfg)
	}
	return instance
}

// pathSerializer enforces submission-order completion for mutating
// operations sharing a path, per the concurrency model's ordering
// guarantee; reads/exists/stat never go through it.
type pathSerializer struct {
	mu   sync.Mutex
	last map[string]chan struct{}
}

func newPathSerializer() *pathSerializer {
	return &pathSerializer{last: make(map[string]chan struct{})}
}

func (ps *pathSerializer) run(paths []string, fn func()) {
	ps.mu.Lock()
	seen := make(map[string]bool, len(paths))
	var prevs []chan struct{}
	done := make(chan struct{})
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if prev, ok := ps.last[p]; ok {
			prevs = append(prevs, prev)
		}
		ps.last[p] = done
	}
	ps.mu.Unlock()

	go func() {
		defer close(done)
		for _, prev := range prevs {
			<-prev
		}
		fn()
	}()
}

// handler is the facade's process-wide orchestrator: it owns the event
// loop, the FS operation registry, and the watcher registry, and binds
// every public operation to the correct future flavor.
type handler struct {
	loop       *loop.Loop
	fsreg      *fsops.Registry
	watchers   *watcher.Registry
	serializer *pathSerializer
	accel      interface {
		Watch(string) error
		Unwatch(string)
		Close() error
	}

	runCancel context.CancelFunc
	runDone   chan struct{}
}

func newHandler(cfg handlerConfig) *handler {
	logger := cfg.logger
	if logger == nil {
		logger = loop.NewDefaultLogger(loop.LevelWarn)
	}
	l, err := loop.New(
		loop.WithWorkerPoolSize(cfg.workerPoolSize),
		loop.WithMetrics(cfg.enableMetrics),
		loop.WithLogger(logger),
	)
	if err != nil {
		panic("filesystem: failed to construct event loop: " + err.Error())
	}

	h := &handler{
		loop:       l,
		fsreg:      fsops.NewRegistry(),
		watchers:   watcher.NewRegistry(),
		serializer: newPathSerializer(),
		runDone:    make(chan struct{}),
	}
	l.SetWatcherPoller(h.watchers)
	// The loop polls watchers once per tick; this timer keeps it ticking
	// while otherwise idle, so watched paths are re-stat'ed at least every
	// watcher.DefaultPollInterval.
	l.AddPeriodicTimer(watcher.DefaultPollInterval, func() {}, 0)

	if cfg.enableOSAccel {
		if accel, accelErr := newPlatformAccelerator(h.watchers); accelErr == nil {
			h.watchers.SetAccelerator(accel)
			h.accel = accel
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.runCancel = cancel
	go func() {
		defer close(h.runDone)
		_ = l.Run(ctx)
	}()
	return h
}

func (h *handler) close() {
	h.runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.loop.Shutdown(shutdownCtx)
	_ = h.loop.Close()
	<-h.runDone
	if h.accel != nil {
		_ = h.accel.Close()
	}
}

func (h *handler) runAtomic(op, path string, serialize bool, work func() (any, error)) *Future {
	f, resolve, reject := future.New(h.loop)
	settle := func() {
		done := make(chan struct{})
		h.loop.Offload(work, func(res any, err error) {
			if err != nil {
				reject(ferrors.Classify(op, path, err))
			} else {
				resolve(res)
			}
			close(done)
		})
		<-done
	}
	if serialize {
		h.serializer.run([]string{path}, settle)
	} else {
		go settle()
	}
	return &Future{n: f}
}

func (h *handler) runAtomicCopy(op, src, dst string, work func() (any, error)) *Future {
	f, resolve, reject := future.New(h.loop)
	h.serializer.run([]string{src, dst}, func() {
		done := make(chan struct{})
		h.loop.Offload(work, func(res any, err error) {
			if err != nil {
				reject(ferrors.ClassifyCopy(op, src, dst, err))
			} else {
				resolve(res)
			}
			close(done)
		})
		<-done
	})
	return &Future{n: f}
}

// runCancellable wires the standard cancel handler: deregistering the op
// and, for output-producing operations, scheduling deletion of the
// partial output via onCancel.
func (h *handler) runCancellable(op, path string, rec *fsops.Record, work func() (any, error), onCancel func()) *CancellableFuture {
	cf, resolve, reject := future.NewCancellable(h.loop)
	cf.SetCancelHandler(func() {
		rec.Cancel()
		h.fsreg.Release(rec.ID)
		if onCancel != nil {
			onCancel()
		}
	})
	h.loop.Offload(work, func(res any, err error) {
		h.fsreg.Release(rec.ID)
		if rec.IsCancelled() {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			reject(ferrors.ClassifyStream(op, path, bytesHandledOf(res), err))
			return
		}
		resolve(res)
	})
	return &CancellableFuture{n: cf}
}

func bytesHandledOf(res any) int64 {
	switch v := res.(type) {
	case int64:
		return v
	case []byte:
		return int64(len(v))
	}
	return 0
}

// ---- Read family ----

func Read(path string, opts ...OpOption) *Future {
	return getInstance().read(path, buildOptions(opts))
}

func (h *handler) read(path string, opts map[string]any) *Future {
	return h.runAtomic("read", path, false, func() (any, error) {
		return fsops.Read(path, opts)
	})
}

func ReadStream(path string, opts ...OpOption) *CancellableFuture {
	return getInstance().readStream(path, buildOptions(opts))
}

func (h *handler) readStream(path string, opts map[string]any) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindRead, path, opts)
	return h.runCancellable("readStream", path, rec, func() (any, error) {
		r, err := streaming.OpenChunkedReader(path, chunkedReaderOptions(opts))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		var out []byte
		for {
			if rec.IsCancelled() {
				return out, context.Canceled
			}
			chunk, end, err := r.Next()
			if err != nil {
				return out, err
			}
			out = append(out, chunk...)
			if end {
				return out, nil
			}
		}
	}, nil)
}

func ReadFromGenerator(path string, opts ...OpOption) *CancellableFuture {
	return getInstance().readFromGenerator(path, buildOptions(opts))
}

func (h *handler) readFromGenerator(path string, opts map[string]any) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindReadGenerator, path, opts)
	return h.runCancellable("readFromGenerator", path, rec, func() (any, error) {
		r, err := streaming.OpenChunkedReader(path, chunkedReaderOptions(opts))
		if err != nil {
			return nil, err
		}
		return streaming.NewLazySequence(rec.ID, r.Next, rec.IsCancelled), nil
	}, nil)
}

func ReadLines(path string, opts ...OpOption) *CancellableFuture {
	return getInstance().readLines(path, buildOptions(opts))
}

func (h *handler) readLines(path string, opts map[string]any) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindReadGenerator, path, opts)
	return h.runCancellable("readLines", path, rec, func() (any, error) {
		r, err := streaming.OpenChunkedReader(path, chunkedReaderOptions(opts))
		if err != nil {
			return nil, err
		}
		lr := streaming.NewLineReader(r.Next, streaming.LineReaderOptions{
			Trim:      boolOpt(opts, "trim"),
			SkipEmpty: boolOpt(opts, "skip_empty"),
		})
		next := func() ([]byte, bool, error) {
			line, ok, err := lr.Next()
			if err != nil {
				return nil, true, err
			}
			if !ok {
				return nil, true, nil
			}
			return []byte(line), false, nil
		}
		return streaming.NewLazySequence(rec.ID, next, rec.IsCancelled), nil
	}, nil)
}

// ---- Write family ----

func Write(path string, data []byte, opts ...OpOption) *Future {
	return getInstance().write(path, data, buildOptions(opts))
}

func (h *handler) write(path string, data []byte, opts map[string]any) *Future {
	return h.runAtomic("write", path, true, func() (any, error) {
		return fsops.Write(path, data, opts)
	})
}

// WriteStream accepts either a full byte string or a Puller producer. A
// bare func literal must be converted with Puller(...): without the
// conversion it matches neither case and the returned future rejects.
func WriteStream(path string, data any, opts ...OpOption) *CancellableFuture {
	return getInstance().writeStream(path, data, buildOptions(opts))
}

func (h *handler) writeStream(path string, data any, opts map[string]any) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindWrite, path, opts)
	var partial atomic.Pointer[streaming.ChunkedWriter]
	work := func() (any, error) {
		w, err := streaming.OpenChunkedWriter(path, chunkedWriterOptions(opts))
		if err != nil {
			return nil, err
		}
		partial.Store(w)
		if err := writeAllFrom(w, data, rec, intOpt(opts, "chunk_size")); err != nil {
			w.Abort()
			return w.BytesWritten(), err
		}
		if err := w.Close(); err != nil {
			return w.BytesWritten(), err
		}
		return w.BytesWritten(), nil
	}
	return h.runCancellable("writeStream", path, rec, work, func() {
		if w := partial.Load(); w != nil {
			_ = w.Abort()
		}
	})
}

func WriteFromGenerator(path string, producer Puller, opts ...OpOption) *CancellableFuture {
	return getInstance().writeFromGenerator(path, producer, buildOptions(opts))
}

func (h *handler) writeFromGenerator(path string, producer Puller, opts map[string]any) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindWriteGenerator, path, opts)
	if bufSize := intOpt(opts, "buffer_size"); bufSize > 0 {
		producer = streaming.AutoBuffer(producer, bufSize)
	}
	var partial atomic.Pointer[streaming.ChunkedWriter]
	work := func() (any, error) {
		w, err := streaming.OpenChunkedWriter(path, chunkedWriterOptions(opts))
		if err != nil {
			return nil, err
		}
		partial.Store(w)
		for {
			if rec.IsCancelled() {
				w.Abort()
				return w.BytesWritten(), context.Canceled
			}
			chunk, end, err := producer()
			if err != nil {
				w.Abort()
				return w.BytesWritten(), err
			}
			if len(chunk) > 0 {
				if err := w.WriteChunk(chunk); err != nil {
					w.Abort()
					return w.BytesWritten(), err
				}
			}
			if end {
				if err := w.Close(); err != nil {
					return w.BytesWritten(), err
				}
				return w.BytesWritten(), nil
			}
		}
	}
	return h.runCancellable("writeFromGenerator", path, rec, work, func() {
		if w := partial.Load(); w != nil {
			_ = w.Abort()
		}
	})
}

// writeAllFrom drains data (either a full []byte payload or a Puller) into
// w, checking rec.IsCancelled() at each chunk boundary so a cancellation
// mid-write is observed within one chunk regardless of which form data
// takes — a raw []byte payload is chunked the same way a Puller's output
// would be, rather than written in one uninterruptible call.
func writeAllFrom(w *streaming.ChunkedWriter, data any, rec *fsops.Record, chunkSize int) error {
	switch v := data.(type) {
	case []byte:
		if chunkSize <= 0 {
			chunkSize = streaming.DefaultChunkSize
		}
		for offset := 0; offset < len(v); offset += chunkSize {
			if rec.IsCancelled() {
				return context.Canceled
			}
			end := offset + chunkSize
			if end > len(v) {
				end = len(v)
			}
			if err := w.WriteChunk(v[offset:end]); err != nil {
				return err
			}
		}
		if rec.IsCancelled() {
			return context.Canceled
		}
		return nil
	case Puller:
		for {
			if rec.IsCancelled() {
				return context.Canceled
			}
			chunk, end, err := v()
			if err != nil {
				return err
			}
			if len(chunk) > 0 {
				if err := w.WriteChunk(chunk); err != nil {
					return err
				}
			}
			if end {
				return nil
			}
		}
	default:
		return errors.New("filesystem: writeStream data must be []byte or a Puller")
	}
}

func Append(path string, data []byte) *Future {
	return getInstance().runAtomic("append", path, true, func() (any, error) {
		return fsops.Append(path, data)
	})
}

// ---- Metadata / lifecycle family ----

func Exists(path string) *Future {
	return getInstance().runAtomic("exists", path, false, func() (any, error) {
		return fsops.Exists(path)
	})
}

func GetStats(path string) *Future {
	return getInstance().runAtomic("stat", path, false, func() (any, error) {
		return fsops.GetStats(path)
	})
}

func Delete(path string) *Future {
	return getInstance().runAtomic("delete", path, true, func() (any, error) {
		return true, fsops.Delete(path)
	})
}

func Copy(src, dst string) *Future {
	return getInstance().runAtomicCopy("copy", src, dst, func() (any, error) {
		return true, fsops.Copy(src, dst)
	})
}

func CopyStream(src, dst string) *CancellableFuture {
	return getInstance().copyStream(src, dst)
}

func (h *handler) copyStream(src, dst string) *CancellableFuture {
	rec := h.fsreg.New(fsops.KindCopy, src, nil)
	rec.Secondary = dst
	var partial atomic.Pointer[streaming.ChunkedWriter]
	work := func() (any, error) {
		r, err := streaming.OpenChunkedReader(src, streaming.ChunkedReaderOptions{})
		if err != nil {
			return nil, err
		}
		defer r.Close()
		w, err := streaming.OpenChunkedWriter(dst, streaming.ChunkedWriterOptions{})
		if err != nil {
			return nil, err
		}
		partial.Store(w)
		for {
			if rec.IsCancelled() {
				w.Abort()
				return true, context.Canceled
			}
			chunk, end, err := r.Next()
			if err != nil {
				w.Abort()
				return true, err
			}
			if len(chunk) > 0 {
				if err := w.WriteChunk(chunk); err != nil {
					w.Abort()
					return true, err
				}
			}
			if end {
				if err := w.Close(); err != nil {
					return true, err
				}
				return true, nil
			}
		}
	}
	cf, resolve, reject := future.NewCancellable(h.loop)
	cf.SetCancelHandler(func() {
		rec.Cancel()
		h.fsreg.Release(rec.ID)
		if w := partial.Load(); w != nil {
			_ = w.Abort()
		}
	})
	h.loop.Offload(work, func(res any, err error) {
		h.fsreg.Release(rec.ID)
		if rec.IsCancelled() {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			reject(ferrors.ClassifyCopy("copyStream", src, dst, err))
			return
		}
		resolve(res)
	})
	return &CancellableFuture{n: cf}
}

func Rename(oldPath, newPath string) *Future {
	return getInstance().runAtomicCopy("rename", oldPath, newPath, func() (any, error) {
		return true, fsops.Rename(oldPath, newPath)
	})
}

func CreateDirectory(path string, opts ...OpOption) *Future {
	o := buildOptions(opts)
	mode := os.FileMode(0o755)
	if m, ok := o["mode"]; ok {
		if fm, ok := m.(os.FileMode); ok {
			mode = fm
		}
	}
	recursive := boolOpt(o, "recursive")
	return getInstance().runAtomic("mkdir", path, true, func() (any, error) {
		return true, fsops.CreateDirectory(path, mode, recursive)
	})
}

func RemoveDirectory(path string) *Future {
	return getInstance().runAtomic("rmdir", path, true, func() (any, error) {
		return true, fsops.RemoveDirectory(path)
	})
}

// ---- Watcher family ----

func Watch(path string, cb WatchCallback, opts ...WatchOption) string {
	return getInstance().watch(path, cb, opts)
}

type WatchOption func(*watcher.Options)

// WithPollingInterval records a polling interval on the watch. Watched
// paths are re-stat'ed on every event-loop tick, and the handler ticks the
// loop at least every 100ms, so the value does not change how often a path
// is checked.
func WithPollingInterval(d time.Duration) WatchOption {
	return func(o *watcher.Options) { o.PollInterval = d }
}
func WithWatchSize(b bool) WatchOption    { return func(o *watcher.Options) { o.WatchSize = b } }
func WithWatchContent(b bool) WatchOption { return func(o *watcher.Options) { o.WatchContent = b } }

func (h *handler) watch(path string, cb WatchCallback, opts []WatchOption) string {
	o := watcher.Options{WatchSize: true}
	for _, fn := range opts {
		fn(&o)
	}
	return h.watchers.Watch(path, cb, o)
}

func Unwatch(id string) *Future {
	h := getInstance()
	return h.runAtomic("unwatch", id, false, func() (any, error) {
		return h.watchers.Unwatch(id), nil
	})
}

// ---- option-map helpers shared across operations ----

func intOpt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func boolOpt(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func chunkedReaderOptions(opts map[string]any) streaming.ChunkedReaderOptions {
	o := streaming.ChunkedReaderOptions{ChunkSize: intOpt(opts, "chunk_size")}
	if v, ok := opts["offset"]; ok {
		switch n := v.(type) {
		case int64:
			o.Offset = n
		case int:
			o.Offset = int64(n)
		}
	}
	if v, ok := opts["length"]; ok {
		o.HasLength = true
		switch n := v.(type) {
		case int64:
			o.Length = n
		case int:
			o.Length = int64(n)
		}
	}
	return o
}

func chunkedWriterOptions(opts map[string]any) streaming.ChunkedWriterOptions {
	return streaming.ChunkedWriterOptions{CreateDirectories: boolOpt(opts, "create_directories")}
}

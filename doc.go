// Package filesystem provides a Promise/A+-flavored asynchronous
// filesystem engine: read, write, copy, rename, directory management,
// and change-watching, every one of them dispatched through a single
// event loop and offloaded to a bounded worker pool.
//
// # Architecture
//
// Every public function (Read, Write, Copy, Watch, ...) is a thin facade
// over three building blocks:
//
//   - internal/future: the Future/CancellableFuture abstraction, exposed
//     here as [Future] and [CancellableFuture], plus the [All], [Race],
//     [AllSettled], [Concurrent], and [Batch] combinators.
//   - internal/loop: the single-threaded cooperative event loop that
//     serializes continuation invocation and offloads blocking syscalls.
//   - internal/fsops, internal/streaming, internal/watcher: the OS
//     primitive wrappers, the chunked/line streaming engine, and the
//     polling (optionally OS-event-accelerated) file watcher.
//
// # Atomic vs cancellable
//
// Read, Write, Append, Exists, GetStats, Delete, Copy, Rename,
// CreateDirectory, and RemoveDirectory return [*Future]: they cannot be
// cancelled once submitted. ReadStream, ReadFromGenerator, ReadLines,
// WriteStream, WriteFromGenerator, and CopyStream return
// [*CancellableFuture]: cancelling one stops the underlying I/O at the
// next chunk boundary and, for the write-side operations, deletes any
// partial output.
//
// # Errors
//
// Every raw OS error is classified exactly once, at this boundary, into
// an [*Error] carrying one of the [Kind] values ([KindNotFound],
// [KindPermissionDenied], [KindWriteFailed], and so on). Use errors.As to
// recover it.
//
// # Usage
//
//	f := filesystem.Write("/tmp/out.txt", []byte("hello"))
//	if _, err := f.Await(); err != nil {
//	    var fsErr *filesystem.Error
//	    if errors.As(err, &fsErr) {
//	        log.Printf("write failed: %s", fsErr.Kind)
//	    }
//	}
//
// The process-wide handler backing these calls starts lazily on first
// use; call [Configure] beforehand to size its worker pool or enable
// watcher acceleration, and [Reset] to tear it down (tests use this to
// get a clean slate between cases).
package filesystem

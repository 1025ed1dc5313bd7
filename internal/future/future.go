// Package future implements the two-tier future/promise abstraction: a
// plain atomic Future (resolve/reject once, then/catch/finally chaining)
// and a CancellableFuture that additionally carries a Cancelled terminal
// state and a cancel-handler slot. Adapted from a Promise/A+ implementation
// (microtask-scheduled continuation firing, thenable adoption, FIFO
// continuation ordering) paired with a DOM-style AbortSignal/AbortController
// for the cancellable variant's cancel propagation.
package future

import (
	"fmt"
	"sync"
)

// State is the settlement state of a future.
type State int32

const (
	Pending State = iota
	Fulfilled
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Scheduler schedules a continuation to run asynchronously (a microtask).
// *loop.Loop satisfies this interface. A nil Scheduler falls back to
// running continuations synchronously on the resolving goroutine — still
// correct, but not Promise/A+ compliant (matches the teacher's own
// documented "thenStandalone" fallback for use outside a loop).
type Scheduler interface {
	ScheduleMicrotask(fn func()) error
}

// CancelledError is the rejection-shaped reason carried by a cancelled
// future's internal err field; it is never delivered to a then/catch
// handler (cancelled futures invoke neither), but is returned by Await. A
// lazy sequence pulled after cancellation reports
// streaming.ErrSequenceCancelled instead.
type CancelledError struct {
	Reason any
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("future: cancelled: %v", e.Reason)
}

// Handler transforms a settled value/error into a new value, an error
// (rejecting the child), or another future (adopted: the child follows it).
type Handler func(value any) (any, error)

type handlerEntry struct {
	onFulfilled Handler
	onRejected  Handler
	target      *node
}

type node struct {
	mu          sync.Mutex
	state       State
	value       any
	err         error
	handlers    []handlerEntry
	sched       Scheduler
	cancellable bool

	cancelHandlerFn func()
	cancelHandlerSet bool
	parent          *node

	abortCtrl *AbortController

	done chan struct{}
}

func newNode(sched Scheduler, cancellable bool) *node {
	return &node{sched: sched, cancellable: cancellable, done: make(chan struct{})}
}

func (n *node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// signal lazily creates (or returns) the AbortController backing this
// node's cancellation, and returns its signal. If the node is already
// cancelled, the returned signal is already aborted.
func (n *node) signal() *AbortSignal {
	n.mu.Lock()
	if n.abortCtrl == nil {
		n.abortCtrl = NewAbortController()
		if n.state == Cancelled {
			reason := n.err
			n.mu.Unlock()
			n.abortCtrl.Abort(reason)
			return n.abortCtrl.Signal()
		}
	}
	ctrl := n.abortCtrl
	n.mu.Unlock()
	return ctrl.Signal()
}

func (n *node) settle(newState State, value any, err error) {
	n.mu.Lock()
	if n.state != Pending {
		n.mu.Unlock()
		return
	}
	// thenable adoption: if fulfilling with another future, adopt its
	// eventual settlement instead of treating it as a plain value.
	if newState == Fulfilled {
		if adoptee := asNode(value); adoptee != nil {
			n.mu.Unlock()
			adoptee.addHandler(handlerEntry{
				onFulfilled: func(v any) (any, error) { return v, nil },
				onRejected:  func(e any) (any, error) { return nil, e.(error) },
				target:      n,
			})
			return
		}
	}
	n.state = newState
	n.value = value
	n.err = err
	handlers := n.handlers
	n.handlers = nil
	close(n.done)
	n.mu.Unlock()

	for _, h := range handlers {
		n.scheduleHandler(h, newState, value, err)
	}
}

func asNode(v any) *node {
	switch t := v.(type) {
	case *Future:
		return t.n
	case *CancellableFuture:
		return t.n
	}
	return nil
}

func (n *node) resolve(value any) { n.settle(Fulfilled, value, nil) }
func (n *node) reject(err error)  { n.settle(Rejected, nil, err) }

func (n *node) addHandler(h handlerEntry) {
	n.mu.Lock()
	state := n.state
	value, err := n.value, n.err
	if state == Pending {
		n.handlers = append(n.handlers, h)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()
	if state == Cancelled {
		// Continuations attached after cancellation remain Pending
		// forever: they inherited nothing from a parent that was already
		// terminal when they attached, so there is nothing to propagate.
		// Only continuations registered *before* cancellation (fired via
		// node.cancel's walk over n.handlers) inherit the Cancelled state.
		return
	}
	n.scheduleHandler(h, state, value, err)
}

func (n *node) scheduleHandler(h handlerEntry, state State, value any, err error) {
	run := func() { executeHandler(h, state, value, err) }
	if n.sched != nil {
		if schedErr := n.sched.ScheduleMicrotask(run); schedErr == nil {
			return
		}
	}
	run()
}

func executeHandler(h handlerEntry, state State, value any, err error) {
	if h.target == nil {
		return
	}
	switch state {
	case Cancelled:
		// continuations attached before cancellation receive no callback;
		// they simply inherit the cancelled state.
		h.target.settle(Cancelled, nil, err)
		return
	case Fulfilled:
		if h.onFulfilled == nil {
			h.target.resolve(value)
			return
		}
		runHandlerInto(h.target, h.onFulfilled, value)
	case Rejected:
		if h.onRejected == nil {
			h.target.reject(err)
			return
		}
		runHandlerInto(h.target, h.onRejected, err)
	}
}

func runHandlerInto(target *node, fn Handler, arg any) {
	defer func() {
		if r := recover(); r != nil {
			var asErr error
			if e, ok := r.(error); ok {
				asErr = e
			} else {
				asErr = fmt.Errorf("future: handler panicked: %v", r)
			}
			target.reject(asErr)
		}
	}()
	out, err := fn(arg)
	if err != nil {
		target.reject(err)
		return
	}
	target.resolve(out)
}

// awaitNode blocks until n settles and returns its value/error in the
// standard (value, err) shape; a cancelled future returns a *CancelledError.
func awaitNode(n *node) (any, error) {
	<-n.done
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case Fulfilled:
		return n.value, nil
	case Rejected:
		return nil, n.err
	default: // Cancelled
		return nil, n.err
	}
}

// Future is the atomic (non-cancellable) future: resolve/reject exactly
// once, chain with Then/Catch/Finally, block with Await.
type Future struct {
	n *node
}

// New constructs a pending Future and its resolve/reject functions. sched
// may be nil to run continuations synchronously.
func New(sched Scheduler) (f *Future, resolve func(any), reject func(error)) {
	n := newNode(sched, false)
	f = &Future{n: n}
	return f, n.resolve, n.reject
}

// Resolved returns an already-fulfilled Future.
func Resolved(sched Scheduler, value any) *Future {
	f, resolve, _ := New(sched)
	resolve(value)
	return f
}

// RejectedFuture returns an already-rejected Future.
func RejectedFuture(sched Scheduler, err error) *Future {
	f, _, reject := New(sched)
	reject(err)
	return f
}

func (f *Future) State() State   { return f.n.State() }
func (f *Future) Value() any     { return f.n.value }
func (f *Future) ReasonErr() error { return f.n.err }

// Then registers success/failure handlers and returns a new Future that
// settles from their outcome. Either handler may be nil to pass the
// corresponding settlement through unchanged.
func (f *Future) Then(onFulfilled, onRejected Handler) *Future {
	child := newNode(f.n.sched, false)
	f.n.addHandler(handlerEntry{onFulfilled: onFulfilled, onRejected: onRejected, target: child})
	return &Future{n: child}
}

func (f *Future) Catch(onRejected Handler) *Future {
	return f.Then(nil, onRejected)
}

// Finally runs fn on both settlement paths; it does not alter the
// propagated value unless fn itself panics, in which case the returned
// future rejects with the panic value (wrapped in an error when it is not
// one already).
func (f *Future) Finally(fn func()) *Future {
	return f.Then(
		func(v any) (any, error) { fn(); return v, nil },
		func(e any) (any, error) { fn(); return nil, e.(error) },
	)
}

// Await blocks the calling goroutine until the future settles.
func (f *Future) Await() (any, error) { return awaitNode(f.n) }

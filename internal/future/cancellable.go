package future

// CancellableFuture extends Future with an additional Cancelled terminal
// state and a cancel-handler slot, set at most once. Cancelling a chained
// future propagates the cancellation to its immediate upstream parent
// (§5), and cancelling a parent propagates Cancelled down to every child
// registered before the cancellation (§4.1 ordering invariant) without
// invoking their success/failure handlers.
type CancellableFuture struct {
	n *node
}

// NewCancellable constructs a pending CancellableFuture and its
// resolve/reject functions.
func NewCancellable(sched Scheduler) (f *CancellableFuture, resolve func(any), reject func(error)) {
	n := newNode(sched, true)
	f = &CancellableFuture{n: n}
	return f, n.resolve, n.reject
}

func (f *CancellableFuture) State() State     { return f.n.State() }
func (f *CancellableFuture) Value() any       { return f.n.value }
func (f *CancellableFuture) ReasonErr() error { return f.n.err }

// IsCancelled reports whether the future has reached the Cancelled state.
func (f *CancellableFuture) IsCancelled() bool { return f.State() == Cancelled }

// Signal returns the AbortSignal backing this future's cancellation,
// for downstream consumers that want abort notification (OnAbort,
// ThrowIfAborted) without holding the future itself. Safe to call
// before or after cancellation; a signal requested after the future is
// already cancelled is returned already-aborted.
func (f *CancellableFuture) Signal() *AbortSignal { return f.n.signal() }

// Cancel transitions the future to Cancelled (if not already terminal),
// invokes the cancel handler, propagates Cancelled to already-registered
// continuations, and propagates the cancellation to the immediate
// upstream parent, if any. Safe to call multiple times; later calls are
// no-ops.
func (f *CancellableFuture) Cancel(reason any) {
	f.n.cancel(&CancelledError{Reason: reason})
}

// SetCancelHandler installs the cancel handler. If the future is already
// cancelled, the handler runs immediately.
func (f *CancellableFuture) SetCancelHandler(fn func()) {
	f.n.setCancelHandler(fn)
}

// Then preserves cancellability: the returned future is itself a
// CancellableFuture whose Cancel also cancels this future (and, from
// there, this future's own parent chain).
func (f *CancellableFuture) Then(onFulfilled, onRejected Handler) *CancellableFuture {
	child := newNode(f.n.sched, true)
	child.parent = f.n
	f.n.addHandler(handlerEntry{onFulfilled: onFulfilled, onRejected: onRejected, target: child})
	return &CancellableFuture{n: child}
}

func (f *CancellableFuture) Catch(onRejected Handler) *CancellableFuture {
	return f.Then(nil, onRejected)
}

func (f *CancellableFuture) Finally(fn func()) *CancellableFuture {
	return f.Then(
		func(v any) (any, error) { fn(); return v, nil },
		func(e any) (any, error) { fn(); return nil, e.(error) },
	)
}

func (f *CancellableFuture) Await() (any, error) { return awaitNode(f.n) }

func (n *node) cancel(reason error) {
	n.mu.Lock()
	if n.state != Pending {
		n.mu.Unlock()
		return
	}
	n.state = Cancelled
	n.err = reason
	handlers := n.handlers
	n.handlers = nil
	close(n.done)
	cancelFn := n.cancelHandlerFn
	abortCtrl := n.abortCtrl
	n.mu.Unlock()

	if abortCtrl != nil {
		abortCtrl.Abort(reason)
	}
	if cancelFn != nil {
		cancelFn()
	}
	for _, h := range handlers {
		n.scheduleHandler(h, Cancelled, nil, reason)
	}
	if n.parent != nil {
		n.parent.cancel(reason)
	}
}

func (n *node) setCancelHandler(fn func()) {
	n.mu.Lock()
	if n.state == Cancelled {
		n.mu.Unlock()
		if fn != nil {
			fn()
		}
		return
	}
	n.cancelHandlerFn = fn
	n.cancelHandlerSet = true
	n.mu.Unlock()
}

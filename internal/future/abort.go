// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package future

import "sync"

// AbortSignal communicates cancellation to an asynchronous operation. It
// backs CancellableFuture.Signal, fired alongside the explicit
// cancel-handler slot when a future is cancelled, and follows the W3C DOM
// AbortController/AbortSignal shape: https://dom.spec.whatwg.org/#interface-abortsignal
//
// Thread Safety: AbortSignal is safe for concurrent access from multiple
// goroutines; all state mutations are protected by an internal mutex.
type AbortSignal struct {
	mu       sync.RWMutex
	aborted  bool
	reason   any
	handlers []func(reason any)
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Reason returns the abort reason, or nil if not aborted.
func (s *AbortSignal) Reason() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnAbort registers a handler invoked when the signal aborts. If already
// aborted, the handler runs immediately (synchronously, on the calling
// goroutine).
func (s *AbortSignal) OnAbort(handler func(reason any)) {
	s.mu.Lock()
	if s.aborted {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// ThrowIfAborted returns the abort reason as an error if aborted, else nil.
func (s *AbortSignal) ThrowIfAborted() error {
	if !s.Aborted() {
		return nil
	}
	reason := s.Reason()
	if err, ok := reason.(error); ok {
		return err
	}
	return &AbortError{Reason: reason}
}

func (s *AbortSignal) abort(reason any) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.reason = reason
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	// handlers run with the lock released; they are not recovered from
	// panics, matching JS semantics where exceptions propagate.
	for _, h := range handlers {
		h(reason)
	}
}

// AbortController owns an AbortSignal and is the only way to fire it.
type AbortController struct {
	signal *AbortSignal
}

func NewAbortController() *AbortController {
	return &AbortController{signal: &AbortSignal{}}
}

func (c *AbortController) Signal() *AbortSignal { return c.signal }

// Abort fires the controller's signal. A nil reason defaults to a generic
// AbortError.
func (c *AbortController) Abort(reason any) {
	if reason == nil {
		reason = &AbortError{Reason: "Aborted"}
	}
	c.signal.abort(reason)
}

// AbortError is the default reason used when cancel() is called without an
// explicit error.
type AbortError struct {
	Reason any
}

func (e *AbortError) Error() string {
	if s, ok := e.Reason.(string); ok {
		return s
	}
	if err, ok := e.Reason.(error); ok {
		return err.Error()
	}
	return "aborted"
}

func (e *AbortError) Is(target error) bool {
	_, ok := target.(*AbortError)
	return ok
}

// AbortAny returns a composite signal that aborts as soon as any of the
// input signals aborts.
func AbortAny(signals []*AbortSignal) *AbortSignal {
	composite := &AbortSignal{}
	for _, s := range signals {
		if s.Aborted() {
			composite.abort(s.Reason())
			return composite
		}
	}
	var once sync.Once
	for _, s := range signals {
		s.OnAbort(func(reason any) {
			once.Do(func() { composite.abort(reason) })
		})
	}
	return composite
}

package loop

import (
	"sync/atomic"
)

// State is the lifecycle state of a Loop, stored as a lock-free atomic value
// so hot-path checks never take a mutex.
type State uint64

const (
	StateAwake State = iota
	StateTerminated
	StateSleeping
	StateRunning
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateTerminated:
		return "terminated"
	case StateSleeping:
		return "sleeping"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// FastState is a cache-line-padded atomic state machine. Valid transitions:
//
//	Awake -> Running -> Sleeping -> Running -> ... -> Terminating -> Terminated
//	Awake -> Terminated (fast shutdown with no ticks ever run)
//
// Using Store to set Running or Sleeping directly (bypassing TryTransition)
// breaks the CAS discipline callers rely on; always go through
// TryTransition/TransitionAny.
type FastState struct {
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func NewFastState() *FastState {
	fs := &FastState{}
	fs.v.Store(uint64(StateAwake))
	return fs
}

func (f *FastState) Load() State { return State(f.v.Load()) }

func (f *FastState) Store(s State) { f.v.Store(uint64(s)) }

func (f *FastState) TryTransition(from, to State) bool {
	return f.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny CASes from any of validFrom to to, retrying until it
// succeeds or the current state is not in validFrom.
func (f *FastState) TransitionAny(to State, validFrom ...State) bool {
	for {
		cur := f.Load()
		ok := false
		for _, vf := range validFrom {
			if cur == vf {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if f.v.CompareAndSwap(uint64(cur), uint64(to)) {
			return true
		}
	}
}

func (f *FastState) IsTerminal() bool {
	s := f.Load()
	return s == StateTerminated || s == StateTerminating
}

func (f *FastState) CanAcceptWork() bool {
	return f.Load() != StateTerminated
}

package future

import "sync"

// Awaitable is implemented by both Future and CancellableFuture so the
// combinators below can accept a mix of either.
type Awaitable interface {
	node() *node
}

func (f *Future) node() *node           { return f.n }
func (f *CancellableFuture) node() *node { return f.n }

// Outcome is one entry of an AllSettled result: either {Status:"fulfilled",
// Value} or {Status:"rejected", Reason}.
type Outcome struct {
	Status string
	Value  any
	Reason error
}

// All fulfills with the positionally-indexed slice of values once every
// input fulfills, or rejects with the first rejection (other outcomes are
// discarded). Cancellable inputs are cancelled on first rejection.
func All(sched Scheduler, items []Awaitable) *Future {
	result, resolve, reject := New(sched)
	if len(items) == 0 {
		resolve([]any{})
		return result
	}

	values := make([]any, len(items))
	var mu sync.Mutex
	remaining := len(items)
	var done bool

	for idx, item := range items {
		idx := idx
		item.node().addHandler(handlerEntry{
			onFulfilled: func(v any) (any, error) {
				mu.Lock()
				if done {
					mu.Unlock()
					return nil, nil
				}
				values[idx] = v
				remaining--
				finished := remaining == 0
				mu.Unlock()
				if finished {
					resolve(append([]any(nil), values...))
				}
				return nil, nil
			},
			onRejected: func(e any) (any, error) {
				mu.Lock()
				alreadyDone := done
				done = true
				mu.Unlock()
				if !alreadyDone {
					reject(e.(error))
					cancelRemaining(items)
				}
				return nil, nil
			},
			target: newNode(sched, false),
		})
	}
	return result
}

func cancelRemaining(items []Awaitable) {
	for _, it := range items {
		if cf, ok := it.(*CancellableFuture); ok {
			cf.Cancel("All: sibling rejected")
		}
	}
}

// Race settles with the first settlement (fulfill or reject) among items.
// With zero items, the returned future never settles.
func Race(sched Scheduler, items []Awaitable) *Future {
	result, resolve, reject := New(sched)
	var once sync.Once
	for _, item := range items {
		item.node().addHandler(handlerEntry{
			onFulfilled: func(v any) (any, error) {
				once.Do(func() { resolve(v) })
				return nil, nil
			},
			onRejected: func(e any) (any, error) {
				once.Do(func() { reject(e.(error)) })
				return nil, nil
			},
			target: newNode(sched, false),
		})
	}
	return result
}

// AllSettled never rejects: it fulfills with one Outcome per input,
// preserving positional order.
func AllSettled(sched Scheduler, items []Awaitable) *Future {
	result, resolve, _ := New(sched)
	if len(items) == 0 {
		resolve([]Outcome{})
		return result
	}
	outcomes := make([]Outcome, len(items))
	var mu sync.Mutex
	remaining := len(items)

	for idx, item := range items {
		idx := idx
		item.node().addHandler(handlerEntry{
			onFulfilled: func(v any) (any, error) {
				mu.Lock()
				outcomes[idx] = Outcome{Status: "fulfilled", Value: v}
				remaining--
				finished := remaining == 0
				mu.Unlock()
				if finished {
					resolve(append([]Outcome(nil), outcomes...))
				}
				return nil, nil
			},
			onRejected: func(e any) (any, error) {
				mu.Lock()
				outcomes[idx] = Outcome{Status: "rejected", Reason: e.(error)}
				remaining--
				finished := remaining == 0
				mu.Unlock()
				if finished {
					resolve(append([]Outcome(nil), outcomes...))
				}
				return nil, nil
			},
			target: newNode(sched, false),
		})
	}
	return result
}

// Task is a thunk that produces an Awaitable when invoked; used by
// Concurrent and Batch, which unlike All/Race/AllSettled start work
// themselves rather than combining already-started futures.
type Task func() Awaitable

// Concurrent runs tasks with at most `limit` in flight at any moment,
// starting new tasks as earlier ones settle. Results preserve task order,
// not completion order. The first rejection rejects the combinator
// immediately; not-yet-started tasks are skipped (in-flight ones run to
// completion but their results are discarded).
func Concurrent(sched Scheduler, tasks []Task, limit int) *Future {
	result, resolve, reject := New(sched)
	if len(tasks) == 0 {
		resolve([]any{})
		return result
	}
	if limit <= 0 {
		limit = 1
	}

	values := make([]any, len(tasks))
	var mu sync.Mutex
	next := 0
	remaining := len(tasks)
	var failed bool

	var startNext func()
	startNext = func() {
		mu.Lock()
		if failed || next >= len(tasks) {
			mu.Unlock()
			return
		}
		idx := next
		next++
		mu.Unlock()

		aw := tasks[idx]()
		aw.node().addHandler(handlerEntry{
			onFulfilled: func(v any) (any, error) {
				mu.Lock()
				if failed {
					mu.Unlock()
					return nil, nil
				}
				values[idx] = v
				remaining--
				finished := remaining == 0
				mu.Unlock()
				if finished {
					resolve(append([]any(nil), values...))
				} else {
					startNext()
				}
				return nil, nil
			},
			onRejected: func(e any) (any, error) {
				mu.Lock()
				alreadyFailed := failed
				failed = true
				mu.Unlock()
				if !alreadyFailed {
					reject(e.(error))
				}
				return nil, nil
			},
			target: newNode(sched, false),
		})
	}

	started := limit
	if started > len(tasks) {
		started = len(tasks)
	}
	for i := 0; i < started; i++ {
		startNext()
	}
	return result
}

// Batch partitions tasks into consecutive groups of `size`; groups run in
// order, each group internally parallel. Results preserve task order.
func Batch(sched Scheduler, tasks []Task, size int) *Future {
	result, resolve, reject := New(sched)
	if len(tasks) == 0 {
		resolve([]any{})
		return result
	}
	if size <= 0 {
		size = len(tasks)
	}

	values := make([]any, len(tasks))
	var runGroup func(start int)
	runGroup = func(start int) {
		if start >= len(tasks) {
			resolve(append([]any(nil), values...))
			return
		}
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		groupItems := make([]Awaitable, 0, end-start)
		offsets := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			groupItems = append(groupItems, tasks[i]())
			offsets = append(offsets, i)
		}
		groupResult := All(sched, groupItems)
		groupResult.Then(
			func(v any) (any, error) {
				vs := v.([]any)
				for j, val := range vs {
					values[offsets[j]] = val
				}
				runGroup(end)
				return nil, nil
			},
			func(e any) (any, error) {
				reject(e.(error))
				return nil, nil
			},
		)
	}
	runGroup(0)
	return result
}

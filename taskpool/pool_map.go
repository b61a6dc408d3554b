package taskpool

import (
	"fmt"
	"time"
)

var errMapRequiresLocal = fmt.Errorf("taskpool: Map/Starmap require a Local pool")

// Result is one item's outcome from a Map/Starmap call: either a value
// or the error the underlying task raised.
type Result struct {
	Value any
	Err   error
}

// Starmap runs target once per element of items (each element supplies
// target's positional arguments), grouping chunkSize items per
// dispatched task. It returns a channel that yields results in the
// same order as items. Unlike StarmapAll, it is lazy: at most
// bufferSize subtasks are ever in flight at once, so submission of the
// (bufferSize+1)'th subtask blocks until the oldest one completes.
// timeout, when non-nil, budgets the whole call; once it elapses the
// channel yields one ErrTimeout result and is closed.
func (p *Pool) Starmap(target Target, items []Args, chunkSize, bufferSize int, timeout *time.Duration) (<-chan Result, error) {
	return p.starmapLazy(target, items, chunkSize, bufferSize, timeout, false)
}

// StarmapUnordered is Starmap, yielding results in completion order
// rather than input order.
func (p *Pool) StarmapUnordered(target Target, items []Args, chunkSize, bufferSize int, timeout *time.Duration) (<-chan Result, error) {
	return p.starmapLazy(target, items, chunkSize, bufferSize, timeout, true)
}

// StarmapAll is Starmap, submitting every subtask up front and
// blocking until every item has completed, returning the full ordered
// slice (or the first error encountered). Using it instead of Starmap
// may use much more memory for large inputs.
func (p *Pool) StarmapAll(target Target, items []Args, chunkSize int, timeout *time.Duration) ([]any, error) {
	return collectChan(p.starmapEager(target, items, chunkSize, timeout, false))
}

// StarmapAllUnordered is StarmapAll in completion order.
func (p *Pool) StarmapAllUnordered(target Target, items []Args, chunkSize int, timeout *time.Duration) ([]any, error) {
	return collectChan(p.starmapEager(target, items, chunkSize, timeout, true))
}

// Map is Starmap over column iterables zipped into argument tuples:
// Map(f, 1, 4, nil, xs, ys) calls f(x, y) for each (x, y) pair.
func (p *Pool) Map(target Target, chunkSize, bufferSize int, timeout *time.Duration, columns ...[]any) (<-chan Result, error) {
	return p.Starmap(target, zipColumns(columns), chunkSize, bufferSize, timeout)
}

// MapUnordered is Map in completion order.
func (p *Pool) MapUnordered(target Target, chunkSize, bufferSize int, timeout *time.Duration, columns ...[]any) (<-chan Result, error) {
	return p.StarmapUnordered(target, zipColumns(columns), chunkSize, bufferSize, timeout)
}

// MapAll is Map, blocking for every result in input order.
func (p *Pool) MapAll(target Target, chunkSize int, timeout *time.Duration, columns ...[]any) ([]any, error) {
	return p.StarmapAll(target, zipColumns(columns), chunkSize, timeout)
}

// MapAllUnordered is Map, blocking for every result in completion order.
func (p *Pool) MapAllUnordered(target Target, chunkSize int, timeout *time.Duration, columns ...[]any) ([]any, error) {
	return p.StarmapAllUnordered(target, zipColumns(columns), chunkSize, timeout)
}

// starmapLazy submits subtasks incrementally, never holding more than
// bufferSize of them in flight: the (bufferSize+1)'th submission
// blocks on the oldest future (ordered) or on the next one to complete
// via a FutureFilter (unordered) before the loop continues. A single
// Countdown budgets every blocking wait across the whole call.
func (p *Pool) starmapLazy(target Target, items []Args, chunkSize, bufferSize int, timeout *time.Duration, unordered bool) (<-chan Result, error) {
	if p.cfg.WorkerType != Local {
		return nil, errMapRequiresLocal
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	subtasks := SplitStarmapTask(target, items, chunkSize)

	out := make(chan Result)
	go func() {
		defer close(out)
		countdown := NewCountdown(timeout)

		budget := func() *time.Duration {
			slice, has := countdown.Check()
			if !has {
				return nil
			}
			return slice
		}

		emit := func(f *Future) bool {
			v, err := f.Collect(budget())
			if err != nil {
				out <- Result{Err: err}
				return false
			}
			for _, item := range v.([]any) {
				out <- Result{Value: item}
			}
			return true
		}

		submit := func(fn func() (any, error)) (*Future, bool) {
			f, err := p.submitLocal(func(args ...any) (any, error) { return fn() }, nil)
			if err != nil {
				out <- Result{Err: err}
				return nil, false
			}
			return f, true
		}

		if unordered {
			filter := NewFutureFilter()
			for i, fn := range subtasks {
				f, ok := submit(fn)
				if !ok {
					return
				}
				filter.Put(f)
				if i >= bufferSize-1 {
					next, err := filter.Get(budget())
					if err != nil {
						out <- Result{Err: err}
						return
					}
					if !emit(next) {
						return
					}
				}
			}
			for f := range filter.GetAll(budget()) {
				if !emit(f) {
					return
				}
			}
			return
		}

		var buffer []*Future
		for i, fn := range subtasks {
			f, ok := submit(fn)
			if !ok {
				return
			}
			buffer = append(buffer, f)
			if i >= bufferSize-1 {
				head := buffer[0]
				buffer = buffer[1:]
				if !emit(head) {
					return
				}
			}
		}
		for _, f := range buffer {
			if !emit(f) {
				return
			}
		}
	}()
	return out, nil
}

// starmapEager submits every subtask up front (MapAll/StarmapAll).
func (p *Pool) starmapEager(target Target, items []Args, chunkSize int, timeout *time.Duration, unordered bool) (<-chan Result, error) {
	if p.cfg.WorkerType != Local {
		return nil, errMapRequiresLocal
	}
	subtasks := SplitStarmapTask(target, items, chunkSize)
	futures := make([]*Future, len(subtasks))
	for i, fn := range subtasks {
		fn := fn
		wrapped := func(args ...any) (any, error) { return fn() }
		f, err := p.submitLocal(wrapped, nil)
		if err != nil {
			return nil, err
		}
		futures[i] = f
	}

	out := make(chan Result)
	done := AsDone(futures, !unordered, timeout)
	go func() {
		defer close(out)
		seen := 0
		defer func() {
			// AsDone closes early only when the timeout expires.
			if seen < len(futures) {
				out <- Result{Err: ErrTimeout}
			}
		}()
		for f := range done {
			seen++
			v, err := f.Collect(nil)
			if err != nil {
				out <- Result{Err: err}
				continue
			}
			for _, item := range v.([]any) {
				out <- Result{Value: item}
			}
		}
	}()
	return out, nil
}

// collectChan drains a Result channel into an ordered slice, returning
// the first error it encounters (having already drained whatever was
// in flight so goroutines feeding the channel don't leak).
func collectChan(ch <-chan Result, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	var results []any
	var firstErr error
	for r := range ch {
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
			continue
		}
		if firstErr == nil {
			results = append(results, r.Value)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

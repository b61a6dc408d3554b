package taskpool

import "time"

// Wait blocks for every future in futures to become done, budgeted by
// a single shared timeout (nil means forever). It returns true iff all
// of them finished within the budget.
func Wait(futures []*Future, timeout *time.Duration) bool {
	countdown := NewCountdown(timeout)
	for _, f := range futures {
		slice, has := countdown.Check()
		if !has {
			slice = nil
		}
		if !f.Wait(slice) {
			return false
		}
	}
	return true
}

// Collect gathers the results of futures in their input order, under a
// single shared timeout budget. It returns the first exception or
// ErrTimeout/ErrCancelled encountered.
func Collect(futures []*Future, timeout *time.Duration) ([]any, error) {
	countdown := NewCountdown(timeout)
	results := make([]any, 0, len(futures))
	for _, f := range futures {
		slice, has := countdown.Check()
		if !has {
			slice = nil
		}
		v, err := f.Collect(slice)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// AsDone yields futures as they complete. When keepOrder is true it
// walks the input sequence in order, blocking on each in turn (so the
// output preserves submission order); otherwise it multiplexes through
// a FutureFilter and yields in actual completion order.
func AsDone(futures []*Future, keepOrder bool, timeout *time.Duration) <-chan *Future {
	out := make(chan *Future)
	if keepOrder {
		go func() {
			defer close(out)
			countdown := NewCountdown(timeout)
			for _, f := range futures {
				slice, has := countdown.Check()
				if !has {
					slice = nil
				}
				if !f.Wait(slice) {
					return
				}
				out <- f
			}
		}()
		return out
	}
	filter := NewFutureFilter(futures...)
	return filter.GetAll(timeout)
}

package taskpool

import (
	"sync"
	"time"
)

// FutureFilter is a completion-order multiplexer: futures are pushed
// in via Put/Populate and drained via Get/GetAll in the order they
// finish, ties broken by arrival order.
type FutureFilter struct {
	mu      sync.Mutex
	signal  chan struct{} // replaced on every push so waiters wake up
	queue   []*Future
	pending int
}

// NewFutureFilter creates a filter, optionally pre-populated.
func NewFutureFilter(futures ...*Future) *FutureFilter {
	ff := &FutureFilter{signal: make(chan struct{})}
	if len(futures) > 0 {
		ff.Populate(futures)
	}
	return ff
}

// Put adds one future to the filter.
func (ff *FutureFilter) Put(f *Future) {
	ff.Populate([]*Future{f})
}

// Populate adds a batch of futures to the filter.
func (ff *FutureFilter) Populate(futures []*Future) {
	ff.mu.Lock()
	ff.pending += len(futures)
	ff.mu.Unlock()
	for _, f := range futures {
		f.AddCallback(ff.onDone)
	}
}

func (ff *FutureFilter) onDone(done *Future) {
	ff.mu.Lock()
	ff.queue = append(ff.queue, done)
	close(ff.signal)
	ff.signal = make(chan struct{})
	ff.mu.Unlock()
}

// Get retrieves one future that is done. It returns (nil, nil)
// immediately if nothing is pending in the filter at all. When timeout
// is non-nil and expires before a future becomes available, it returns
// ErrTimeout; timeout == nil blocks forever.
func (ff *FutureFilter) Get(timeout *time.Duration) (*Future, error) {
	countdown := NewCountdown(timeout)
	for {
		ff.mu.Lock()
		if ff.pending == 0 {
			ff.mu.Unlock()
			return nil, nil
		}
		if len(ff.queue) > 0 {
			f := ff.queue[0]
			ff.queue = ff.queue[1:]
			ff.pending--
			ff.mu.Unlock()
			return f, nil
		}
		wake := ff.signal
		ff.mu.Unlock()

		slice, hasDeadline := countdown.Check()
		if !hasDeadline {
			<-wake
			continue
		}
		if *slice <= 0 {
			return nil, ErrTimeout
		}
		timer := time.NewTimer(*slice)
		select {
		case <-wake:
			timer.Stop()
		case <-timer.C:
			return nil, ErrTimeout
		}
	}
}

// GetAll drains the filter, sending each future as it becomes done
// onto the returned channel, honoring a single shared Countdown across
// the whole call. The channel is closed once the filter empties or the
// timeout expires.
func (ff *FutureFilter) GetAll(timeout *time.Duration) <-chan *Future {
	out := make(chan *Future)
	go func() {
		defer close(out)
		countdown := NewCountdown(timeout)
		for {
			ff.mu.Lock()
			empty := ff.pending == 0
			ff.mu.Unlock()
			if empty {
				return
			}
			slice, _ := countdown.Check()
			f, err := ff.Get(slice)
			if err != nil || f == nil {
				return
			}
			out <- f
		}
	}()
	return out
}

package taskpool

import "time"

// remoteSubmission pairs a pending Future with the kind-based request
// that will run it in a child process. The dispatcher sits between
// Submit and the cross-boundary queue so cancellation can be honored
// before a task ever leaves the parent process.
type remoteSubmission struct {
	future *Future
	kind   string
	args   Args
}

// dispatcher drains pool.pending, drops already-cancelled futures
// without ever dispatching them, and pushes everything else onto the
// shared remoteQueue that the remoteWorker pool consumes from.
func (p *Pool) dispatcher() {
	defer close(p.dispatcherDone)
	for {
		sub, ok := p.pending.Pop(nil)
		if !ok {
			return
		}
		if sub.future.CancelFlag() {
			_ = sub.future.SetStatus(Cancelled, time.Now())
			p.removeStoredFuture(sub.future.TaskID())
			p.recordTaskOutcome(sub.future)
			sub.future = nil
			continue
		}
		p.remoteQueue.Push(&remoteTask{TaskID: sub.future.TaskID(), Kind: sub.kind, Args: sub.args})
		sub = nil
	}
}

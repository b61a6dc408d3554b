package taskpool

import "go.uber.org/zap"

// consumer reads wireMessages produced by remoteWorkers and applies
// them to the matching stored Future. It runs on its own goroutine,
// same as the dispatcher, so each concern owns its own channel rather
// than sharing a condition variable.
func (p *Pool) consumer() {
	defer close(p.consumerDone)
	for msg := range p.messageCh {
		switch msg.Tag {
		case msgRunning:
			if future, ok := p.lookupStoredFuture(msg.TaskID); ok {
				_ = future.SetStatus(Running, msg.Instant)
			}
		case msgResult:
			if future, ok := p.lookupStoredFuture(msg.TaskID); ok {
				_ = future.SetResult(msg.Result, msg.Instant)
				p.removeStoredFuture(msg.TaskID)
				p.recordTaskOutcome(future)
			}
		case msgException:
			if future, ok := p.lookupStoredFuture(msg.TaskID); ok {
				err := error(msg.Err.toRemoteError())
				_ = future.SetException(err, msg.Instant)
				p.removeStoredFuture(msg.TaskID)
				p.recordTaskOutcome(future)
			}
		case msgShutdown:
			p.onWorkerShutdown(msg.WorkerID)
		case msgWorkerException:
			p.log.Warn("remote worker reported a fatal exception", zap.String("worker", msg.WorkerID))
			p.onWorkerException(msg.WorkerID, msg.Err.toRemoteError())
		}
	}
}

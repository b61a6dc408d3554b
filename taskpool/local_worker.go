package taskpool

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// localWorker runs a task loop on its own goroutine, reading from the
// pool's shared in-process queue.
type localWorker struct {
	id      string
	pool    *Pool
	queue   *queue[*localTask]
	cfg     Config
	log     *zap.Logger
	started atomic.Bool
	alive   atomic.Bool
	busy    atomic.Bool
	done    chan struct{}
}

func newLocalWorker(id string, pool *Pool, q *queue[*localTask], cfg Config) *localWorker {
	return &localWorker{
		id:    id,
		pool:  pool,
		queue: q,
		cfg:   cfg,
		log:   cfg.logger().With(zap.String("worker", id)),
		done:  make(chan struct{}),
	}
}

func (w *localWorker) ID() string { return w.id }

func (w *localWorker) Start() bool {
	if !w.started.CompareAndSwap(false, true) {
		return false
	}
	go w.run()
	return true
}

func (w *localWorker) Alive() bool { return w.alive.Load() }
func (w *localWorker) Busy() bool  { return w.busy.Load() }

func (w *localWorker) Join(timeout *time.Duration) bool {
	if timeout == nil {
		<-w.done
		return true
	}
	timer := time.NewTimer(*timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

func (w *localWorker) run() {
	w.alive.Store(true)
	defer func() {
		w.alive.Store(false)
		close(w.done)
	}()

	if w.cfg.Initializer != nil {
		if err := w.cfg.Initializer(); err != nil {
			w.log.Error("initializer failed", zap.Error(err))
			w.pool.onWorkerException(w.id, &InitializerError{WorkerName: w.id, Cause: err})
			return
		}
	}

	taskCount := 0
	for {
		if w.cfg.MaxTasksPerWorker > 0 && taskCount == w.cfg.MaxTasksPerWorker {
			break
		}
		task, ok := w.queue.Pop(w.cfg.IdleTimeout)
		if !ok {
			break // idle timeout elapsed, or queue closed
		}
		w.busy.Store(true)
		w.runTask(task)
		w.busy.Store(false)
		taskCount++
	}

	if w.cfg.Finalizer != nil {
		if err := w.cfg.Finalizer(); err != nil {
			w.log.Error("finalizer failed", zap.Error(err))
			w.pool.onWorkerException(w.id, &FinalizerError{WorkerName: w.id, Cause: err})
			return
		}
	}
	w.pool.onWorkerShutdown(w.id)
}

// runTask is the scheduling point that honors cancellation: a future
// whose cancel flag was set before this point never runs its target.
func (w *localWorker) runTask(task *localTask) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in task: %v\n%s", r, debug.Stack())
			_ = task.future.SetException(err, time.Now())
			w.pool.recordTaskOutcome(task.future)
		}
	}()

	if task.future.CancelFlag() {
		_ = task.future.SetStatus(Cancelled, time.Now())
		w.pool.recordTaskOutcome(task.future)
		return
	}
	_ = task.future.SetStatus(Running, time.Now())
	result, err := task.target(task.args...)
	if err != nil {
		_ = task.future.SetException(err, time.Now())
	} else {
		_ = task.future.SetResult(result, time.Now())
	}
	w.pool.recordTaskOutcome(task.future)
}

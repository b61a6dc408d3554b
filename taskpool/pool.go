package taskpool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pool runs tasks on a fleet of Local (goroutine) or Remote (child
// process) workers. It is the central type of the package: a
// pool-level lock guards lifecycle transitions, a workers-level lock
// guards the worker map, and a futures-level lock guards the
// stored-future table used by Remote pools. Always acquire pool ->
// workers -> futures, never the reverse.
type Pool struct {
	cfg Config
	log *zap.Logger

	pending     *queue[*remoteSubmission] // Remote pools only
	local       *queue[*localTask]        // Local pools only
	remoteQueue *queue[*remoteTask]       // Remote pools only, shared by remoteWorkers
	messageCh   chan *wireMessage         // Remote pools only

	dispatcherDone chan struct{}
	consumerDone   chan struct{}

	poolLock    sync.Mutex
	workersLock sync.Mutex
	futuresLock sync.Mutex

	workers         map[string]worker
	inactiveWorkers []string
	storedFutures   map[uint64]*Future
	cancelledTasks  []*Future

	nextTaskID   atomic.Uint64
	nextWorkerID atomic.Uint64

	stats *statsCollector

	closed     bool
	terminated bool
	broken     bool
	brokenErr  error
}

// New validates cfg and constructs a Pool. No workers are spawned yet;
// call SpawnWorkers or rely on lazy spawn-on-submit.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:             cfg,
		log:             cfg.logger().With(zap.String("pool", cfg.Name)),
		workers:         make(map[string]worker),
		inactiveWorkers: nil,
		stats:           newStatsCollector(),
	}
	if cfg.WorkerType == Remote {
		p.pending = newQueue[*remoteSubmission](0)
		p.remoteQueue = newQueue[*remoteTask](cfg.Workers + 1)
		p.messageCh = make(chan *wireMessage, cfg.Workers*2+1)
		p.storedFutures = make(map[uint64]*Future)
		p.dispatcherDone = make(chan struct{})
		p.consumerDone = make(chan struct{})
		go p.dispatcher()
		go p.consumer()
	} else {
		p.local = newQueue[*localTask](0)
	}
	globalShutdown.register(p)
	globalShutdown.activate()
	return p, nil
}

// Submit schedules target(args...) on a Local pool and returns its
// Future immediately. Use SubmitRemote for Remote pools, since a
// closure cannot cross the process boundary.
func (p *Pool) Submit(target Target, args ...Args) (*Future, error) {
	if p.cfg.WorkerType != Local {
		return nil, fmt.Errorf("taskpool: Submit requires a Local pool, use SubmitRemote")
	}
	var a Args
	if len(args) > 0 {
		a = args[0]
	}
	return p.submitLocal(target, a)
}

func (p *Pool) submitLocal(target Target, args Args) (*Future, error) {
	if err := p.checkSubmittable(); err != nil {
		p.recordRejection()
		return nil, err
	}
	future := newFuture(p, p.nextTaskID.Add(1))
	_ = future.SetStatus(Pending, time.Now())
	p.local.Push(&localTask{future: future, target: target, args: args})
	p.ensureWorker()
	return future, nil
}

// SubmitRemote schedules a registered kind on a Remote pool.
func (p *Pool) SubmitRemote(kind string, args Args) (*Future, error) {
	if p.cfg.WorkerType != Remote {
		return nil, fmt.Errorf("taskpool: SubmitRemote requires a Remote pool, use Submit")
	}
	if _, ok := p.cfg.Registry.Lookup(kind); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := p.checkSubmittable(); err != nil {
		p.recordRejection()
		return nil, err
	}
	future := newFuture(p, p.nextTaskID.Add(1))
	_ = future.SetStatus(Pending, time.Now())
	p.storeFuture(future)
	p.pending.Push(&remoteSubmission{future: future, kind: kind, args: args})
	p.ensureWorker()
	return future, nil
}

// Run submits target and blocks for its result, equivalent to
// Submit(target, args).Collect(nil).
func (p *Pool) Run(target Target, args Args) (any, error) {
	future, err := p.submitLocal(target, args)
	if err != nil {
		return nil, err
	}
	return future.Collect(nil)
}

func (p *Pool) checkSubmittable() error {
	p.poolLock.Lock()
	defer p.poolLock.Unlock()
	if p.closed || p.terminated {
		return ErrPoolClosed
	}
	if p.broken {
		return &BrokenPoolError{Cause: p.brokenErr}
	}
	return nil
}

// ensureWorker spawns one new worker per call while the fleet is below
// cfg.Workers. It does not check whether an existing worker is free.
func (p *Pool) ensureWorker() {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	if len(p.workers) >= p.cfg.Workers {
		return
	}
	p.spawnWorkerLocked()
}

func (p *Pool) spawnWorkerLocked() worker {
	id := fmt.Sprintf("%s-%d", p.workerPrefix(), p.nextWorkerID.Add(1))
	var w worker
	if p.cfg.WorkerType == Remote {
		w = newRemoteWorker(id, p, p.remoteQueue, p.messageCh, p.cfg)
	} else {
		w = newLocalWorker(id, p, p.local, p.cfg)
	}
	p.workers[id] = w
	w.Start()
	return w
}

func (p *Pool) workerPrefix() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return "worker"
}

// SpawnWorkers eagerly spawns up to n additional workers, capped at
// cfg.Workers total. It returns the number actually spawned.
func (p *Pool) SpawnWorkers(n int) int {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	spawned := 0
	for spawned < n && len(p.workers) < p.cfg.Workers {
		p.spawnWorkerLocked()
		spawned++
	}
	return spawned
}

// SpawnMaxWorkers tops the fleet up to cfg.Workers immediately.
func (p *Pool) SpawnMaxWorkers() int {
	return p.SpawnWorkers(p.cfg.Workers)
}

// CountWorkers returns the number of workers currently tracked
// (alive or exiting, not yet reaped).
func (p *Pool) CountWorkers() int {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	return len(p.workers)
}

// CountBusyWorkers returns the number of workers currently running a task.
func (p *Pool) CountBusyWorkers() int {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	n := 0
	for _, w := range p.workers {
		if w.Busy() {
			n++
		}
	}
	return n
}

// CountFreeWorkers returns CountWorkers() - CountBusyWorkers().
func (p *Pool) CountFreeWorkers() int {
	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	busy := 0
	for _, w := range p.workers {
		if w.Busy() {
			busy++
		}
	}
	return len(p.workers) - busy
}

// CountPendingTasks returns the number of tasks queued but not yet
// picked up by a worker.
func (p *Pool) CountPendingTasks() int {
	if p.cfg.WorkerType == Remote {
		return p.pending.Len() + p.remoteQueue.Len()
	}
	return p.local.Len()
}

// Stats returns a point-in-time snapshot of pool statistics.
func (p *Pool) Stats() Stats {
	return p.stats.snapshot(p.CountWorkers(), p.CountBusyWorkers(), p.CountPendingTasks())
}

// Test submits a no-op task and waits for it to complete, exercising a
// pool end-to-end without the caller needing a real workload. It
// returns any error the round trip surfaces (including ErrPoolClosed
// or a BrokenPoolError).
func (p *Pool) Test(timeout *time.Duration) error {
	if p.cfg.WorkerType == Remote {
		return fmt.Errorf("taskpool: Test is only supported on Local pools")
	}
	future, err := p.submitLocal(func(args ...any) (any, error) { return nil, nil }, nil)
	if err != nil {
		return err
	}
	_, err = future.Collect(timeout)
	return err
}

// Join blocks until every submitted task has reached a terminal state
// and no worker is mid-task, without closing the pool for further
// submissions. Workers themselves are left running (they shrink on
// their own idle timeout). timeout nil blocks forever; it returns
// false if the timeout elapses first.
func (p *Pool) Join(timeout *time.Duration) bool {
	countdown := NewCountdown(timeout)
	for {
		if p.CountPendingTasks() == 0 && p.CountBusyWorkers() == 0 {
			return true
		}
		slice, has := countdown.Check()
		if has && *slice <= 0 {
			return false
		}
		wait := 10 * time.Millisecond
		if has && *slice < wait {
			wait = *slice
		}
		time.Sleep(wait)
	}
}

// Shutdown stops accepting new submissions, cancels every task still
// sitting in the queue (undelivered to a worker), waits for workers
// already running a task to finish it, and tears down the fleet (and,
// for Remote pools, the dispatcher/consumer goroutines). It is
// idempotent and safe to call more than once. Unlike Join, Shutdown
// never waits for queued-but-undelivered work to run; that work is
// cancelled instead.
func (p *Pool) Shutdown() {
	p.poolLock.Lock()
	if p.closed {
		p.poolLock.Unlock()
		return
	}
	p.closed = true
	p.poolLock.Unlock()

	if p.cfg.WorkerType == Remote {
		p.pending.Close()
		for _, sub := range p.pending.Drain() {
			p.cancelRemoteSubmission(sub)
		}
		<-p.dispatcherDone
		p.remoteQueue.Close()
		for _, task := range p.remoteQueue.Drain() {
			p.cancelRemoteTask(task)
		}
		p.workersLock.Lock()
		for _, w := range p.workers {
			if rw, ok := w.(*remoteWorker); ok {
				rw.Stop()
			}
		}
		p.workersLock.Unlock()
		p.joinWorkers(nil)
		close(p.messageCh)
		<-p.consumerDone
	} else {
		p.local.Close()
		for _, task := range p.local.Drain() {
			p.cancelLocalTask(task)
		}
		p.joinWorkers(nil)
	}

	p.poolLock.Lock()
	p.terminated = true
	p.poolLock.Unlock()
	globalShutdown.deregister(p)
}

func (p *Pool) cancelLocalTask(task *localTask) {
	if task == nil {
		return
	}
	_ = task.future.SetStatus(Cancelled, time.Now())
	p.recordCancelledTask(task.future)
}

func (p *Pool) cancelRemoteSubmission(sub *remoteSubmission) {
	if sub == nil {
		return
	}
	_ = sub.future.SetStatus(Cancelled, time.Now())
	p.removeStoredFuture(sub.future.TaskID())
	p.recordCancelledTask(sub.future)
}

func (p *Pool) cancelRemoteTask(task *remoteTask) {
	if task == nil {
		return
	}
	future, ok := p.lookupStoredFuture(task.TaskID)
	if !ok {
		return
	}
	_ = future.SetStatus(Cancelled, time.Now())
	p.removeStoredFuture(task.TaskID)
	p.recordCancelledTask(future)
}

// recordCancelledTask appends future to the pool's cancelled_tasks
// list and feeds the stats collector, for a future whose status has
// already been set to Cancelled.
func (p *Pool) recordCancelledTask(future *Future) {
	p.poolLock.Lock()
	p.cancelledTasks = append(p.cancelledTasks, future)
	p.poolLock.Unlock()
	p.recordTaskOutcome(future)
}

// CancelledTasks returns the futures that were drained, undelivered,
// from the queue at Shutdown time.
func (p *Pool) CancelledTasks() []*Future {
	p.poolLock.Lock()
	defer p.poolLock.Unlock()
	out := make([]*Future, len(p.cancelledTasks))
	copy(out, p.cancelledTasks)
	return out
}

func (p *Pool) joinWorkers(timeout *time.Duration) {
	p.workersLock.Lock()
	ws := make([]worker, 0, len(p.workers))
	for _, w := range p.workers {
		ws = append(ws, w)
	}
	p.workersLock.Unlock()
	for _, w := range ws {
		w.Join(timeout)
	}
}

// onWorkerShutdown is called by a worker's run loop on a clean exit
// (idle timeout, max tasks reached, or queue drained). The worker is
// removed from the active map, then the fleet is rebalanced against
// whatever backlog remains so a recycle never strands queued tasks
// mid-run: if the pool isn't closed, enough workers are respawned to
// cover the tasks still pending, capped at cfg.Workers.
func (p *Pool) onWorkerShutdown(id string) {
	p.workersLock.Lock()
	delete(p.workers, id)
	p.inactiveWorkers = append(p.inactiveWorkers, id)
	p.workersLock.Unlock()
	p.log.Debug("worker shut down", zap.String("worker", id))
	p.rebalance()
}

// rebalance tops the fleet back up after a clean worker exit, spawning
// just enough workers to cover pending tasks that free workers can't
// absorb, never exceeding cfg.Workers and never acting on a closed
// pool.
func (p *Pool) rebalance() {
	p.poolLock.Lock()
	closed := p.closed || p.terminated
	p.poolLock.Unlock()
	if closed {
		return
	}

	p.workersLock.Lock()
	defer p.workersLock.Unlock()
	free := 0
	for _, w := range p.workers {
		if !w.Busy() {
			free++
		}
	}
	maxSpawn := p.cfg.Workers - len(p.workers)
	n := p.CountPendingTasks() - free
	if n > maxSpawn {
		n = maxSpawn
	}
	for ; n > 0; n-- {
		p.spawnWorkerLocked()
	}
}

// onWorkerException marks the pool broken: a worker's initializer,
// finalizer, or transport failed in a way the pool cannot recover
// from. Every future still pending is failed with the same cause so
// callers don't block forever waiting on a dead pool.
func (p *Pool) onWorkerException(id string, cause error) {
	p.poolLock.Lock()
	if !p.broken {
		p.broken = true
		p.brokenErr = cause
	}
	p.poolLock.Unlock()
	p.workersLock.Lock()
	delete(p.workers, id)
	p.workersLock.Unlock()
	p.log.Error("worker failed, pool is now broken", zap.String("worker", id), zap.Error(cause))

	brokenErr := &BrokenPoolError{Cause: cause}
	if p.cfg.WorkerType == Remote {
		p.futuresLock.Lock()
		futures := make([]*Future, 0, len(p.storedFutures))
		for _, f := range p.storedFutures {
			futures = append(futures, f)
		}
		p.storedFutures = make(map[uint64]*Future)
		p.futuresLock.Unlock()
		for _, f := range futures {
			_ = f.SetException(brokenErr, time.Now())
			p.recordTaskOutcome(f)
		}
	} else {
		for _, task := range p.local.Drain() {
			if task == nil {
				continue
			}
			_ = task.future.SetException(brokenErr, time.Now())
			p.recordTaskOutcome(task.future)
		}
	}
}

// recordTaskOutcome feeds a just-completed future's timing into the
// stats collector. Safe to call once per future, after its terminal
// transition.
func (p *Pool) recordTaskOutcome(f *Future) {
	_, duration := f.Duration()
	status := f.Status()
	switch status {
	case Completed:
		p.stats.recordCompletion(duration)
	case Failed:
		p.stats.recordFailure(duration)
	case Cancelled:
		p.stats.recordCancellation()
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordOutcome(status)
		p.cfg.Metrics.Observe(p.stats.snapshot(p.CountWorkers(), p.CountBusyWorkers(), p.CountPendingTasks()))
	}
}

func (p *Pool) recordRejection() {
	p.stats.recordRejection()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordRejection()
	}
}

// logCallbackPanic reports a callback panic through the pool's logger
// instead of letting it escape the worker/consumer goroutine.
func (p *Pool) logCallbackPanic(taskID uint64, r any) {
	p.log.Error("future callback panicked", zap.Uint64("task_id", taskID), zap.Any("recover", r))
}

func (p *Pool) storeFuture(f *Future) {
	p.futuresLock.Lock()
	p.storedFutures[f.TaskID()] = f
	p.futuresLock.Unlock()
}

func (p *Pool) lookupStoredFuture(taskID uint64) (*Future, bool) {
	p.futuresLock.Lock()
	defer p.futuresLock.Unlock()
	f, ok := p.storedFutures[taskID]
	return f, ok
}

func (p *Pool) removeStoredFuture(taskID uint64) {
	p.futuresLock.Lock()
	delete(p.storedFutures, taskID)
	p.futuresLock.Unlock()
}

package taskpool

import (
	"encoding/gob"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// remoteWorker owns one child process (spawned from cfg.RemoteCommand)
// and relays tasks to it over gob-encoded pipes. Several remoteWorkers
// share one remoteQueue the way a pool of consumers pulls from a
// single shared work queue; since an os/exec child only gets private
// stdio, the "shared queue" lives here in the parent process instead
// of in the kernel.
type remoteWorker struct {
	id        string
	pool      *Pool
	cfg       Config
	queue     *queue[*remoteTask]
	messageCh chan<- *wireMessage
	log       *zap.Logger

	started atomic.Bool
	alive   atomic.Bool
	busy    atomic.Bool
	done    chan struct{}
	stop    chan struct{}
}

func newRemoteWorker(id string, pool *Pool, q *queue[*remoteTask], messageCh chan<- *wireMessage, cfg Config) *remoteWorker {
	return &remoteWorker{
		id:        id,
		pool:      pool,
		cfg:       cfg,
		queue:     q,
		messageCh: messageCh,
		log:       cfg.logger().With(zap.String("worker", id)),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

func (w *remoteWorker) ID() string { return w.id }
func (w *remoteWorker) Alive() bool { return w.alive.Load() }
func (w *remoteWorker) Busy() bool  { return w.busy.Load() }

func (w *remoteWorker) Start() bool {
	if !w.started.CompareAndSwap(false, true) {
		return false
	}
	go w.run()
	return true
}

func (w *remoteWorker) Join(timeout *time.Duration) bool {
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

// Stop asks the respawn loop to exit instead of relaunching a child.
func (w *remoteWorker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

func (w *remoteWorker) run() {
	w.alive.Store(true)
	defer func() {
		w.alive.Store(false)
		close(w.done)
	}()

	boff := backoff.NewExponentialBackOff()
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		generation := uuid.NewString()
		log := w.log.With(zap.String("generation", generation))

		cmd, enc, dec, stdin, err := w.spawn()
		if err != nil {
			wait := boff.NextBackOff()
			log.Error("failed to spawn remote worker, backing off", zap.Error(err), zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
				continue
			case <-w.stop:
				return
			}
		}
		boff.Reset()
		log.Debug("remote worker child spawned")

		quiescent, fatal := w.serve(enc, dec, stdin)
		_ = cmd.Wait()
		if fatal != nil {
			log.Warn("remote worker child exited with a transport failure", zap.Error(fatal))
			w.pool.onWorkerException(w.id, &BrokenPoolError{Cause: fatal})
		}
		if quiescent {
			w.pool.onWorkerShutdown(w.id)
			return
		}
		select {
		case <-w.stop:
			return
		default:
		}
	}
}

func (w *remoteWorker) spawn() (*exec.Cmd, *gob.Encoder, *gob.Decoder, io.WriteCloser, error) {
	if len(w.cfg.RemoteCommand) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("taskpool: remote pool has no RemoteCommand configured")
	}
	cmd := exec.Command(w.cfg.RemoteCommand[0], w.cfg.RemoteCommand[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, nil, err
	}
	return cmd, gob.NewEncoder(stdin), gob.NewDecoder(stdout), stdin, nil
}

// serve pumps tasks to the child and relays its replies until the
// worker hits max tasks, the pipe breaks, or the queue is drained and
// closed. quiescent reports a clean recycle/shutdown; fatal reports a
// transport failure that should be surfaced as a worker exception.
func (w *remoteWorker) serve(enc *gob.Encoder, dec *gob.Decoder, stdin io.WriteCloser) (quiescent bool, fatal error) {
	defer stdin.Close()

	taskCount := 0
	for {
		if w.cfg.MaxTasksPerWorker > 0 && taskCount == w.cfg.MaxTasksPerWorker {
			_ = enc.Encode(taskEnvelope{Shutdown: true})
			w.drainShutdown(dec)
			return true, nil
		}

		task, ok := w.queue.Pop(w.cfg.IdleTimeout)
		if !ok {
			_ = enc.Encode(taskEnvelope{Shutdown: true})
			w.drainShutdown(dec)
			return true, nil
		}

		w.busy.Store(true)
		if err := enc.Encode(taskEnvelope{TaskID: task.TaskID, Kind: task.Kind, Args: task.Args}); err != nil {
			w.busy.Store(false)
			return false, err
		}
		if err := w.relayUntilDone(dec, task.TaskID); err != nil {
			w.busy.Store(false)
			return false, err
		}
		w.busy.Store(false)
		taskCount++
	}
}

// relayUntilDone forwards messages for taskID until a terminal one
// (RESULT or EXCEPTION) arrives.
func (w *remoteWorker) relayUntilDone(dec *gob.Decoder, taskID uint64) error {
	for {
		var msg wireMessage
		if err := dec.Decode(&msg); err != nil {
			return err
		}
		msg.WorkerID = w.id
		w.messageCh <- &msg
		if msg.Tag == msgResult || msg.Tag == msgException {
			return nil
		}
	}
}

func (w *remoteWorker) drainShutdown(dec *gob.Decoder) {
	var msg wireMessage
	if err := dec.Decode(&msg); err == nil && msg.Tag == msgShutdown {
		msg.WorkerID = w.id
		w.messageCh <- &msg
	}
}

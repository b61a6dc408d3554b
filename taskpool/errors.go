package taskpool

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is/errors.As to inspect them; BrokenPool
// wraps whatever underlying cause broke the pool (an initializer,
// finalizer, or worker-loop failure).
var (
	ErrPoolClosed    = errors.New("taskpool: pool is closed")
	ErrInvalidConfig = errors.New("taskpool: invalid pool configuration")
	ErrTimeout       = errors.New("taskpool: operation timed out")
	ErrCancelled     = errors.New("taskpool: task was cancelled")
	ErrInvalidState  = errors.New("taskpool: future is already done")
	ErrUnknownKind   = errors.New("taskpool: unregistered remote task kind")
)

// BrokenPoolError is the umbrella condition for "further work on this
// pool is undefined". InitializerError and FinalizerError are
// specializations raised by worker lifecycle failures.
type BrokenPoolError struct {
	Cause error
}

func (e *BrokenPoolError) Error() string {
	if e.Cause == nil {
		return "taskpool: pool is broken"
	}
	return fmt.Sprintf("taskpool: pool is broken: %v", e.Cause)
}

func (e *BrokenPoolError) Unwrap() error { return e.Cause }

// InitializerError reports a failure of the worker initializer.
type InitializerError struct {
	WorkerName string
	Cause      error
}

func (e *InitializerError) Error() string {
	return fmt.Sprintf("taskpool: initializer failed in %q: %v", e.WorkerName, e.Cause)
}

func (e *InitializerError) Unwrap() error { return e.Cause }

// FinalizerError reports a failure of the worker finalizer.
type FinalizerError struct {
	WorkerName string
	Cause      error
}

func (e *FinalizerError) Error() string {
	return fmt.Sprintf("taskpool: finalizer failed in %q: %v", e.WorkerName, e.Cause)
}

func (e *FinalizerError) Unwrap() error { return e.Cause }

// RemoteError wraps an exception raised inside an out-of-process task.
// It exposes the original error message, the textual backtrace
// rendered in the child, and the cause chain reconstructed on this
// side. String() reproduces the remote traceback.
type RemoteError struct {
	Message   string
	Traceback string
	cause     *RemoteError
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return e.cause
}

func (e *RemoteError) String() string {
	return fmt.Sprintf("\n\"\"\"\n%s\"\"\"", e.Traceback)
}

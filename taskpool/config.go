package taskpool

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// WorkerType selects whether a Pool runs tasks on in-process goroutines
// or out-of-process child workers.
type WorkerType int

const (
	// Local runs tasks on goroutines within this process.
	Local WorkerType = iota
	// Remote runs tasks in child processes started via os/exec.
	Remote
)

// DefaultIdleTimeout is how long an idle in-process/out-of-process
// worker waits for a task before shrinking the fleet.
const DefaultIdleTimeout = 60 * time.Second

// WindowsMaxProcessWorkers caps Remote pools on Windows; child-process
// scheduling overhead makes larger fleets counterproductive there.
const WindowsMaxProcessWorkers = 60

// Config configures a Pool. Workers must be set for every pool; Remote
// pools also need RemoteCommand and Registry.
type Config struct {
	// Workers is the max number of concurrently alive workers.
	Workers int
	// Name identifies the pool in logs and spawned goroutine/process
	// names.
	Name string
	// IdleTimeout bounds how long a worker waits for a task before
	// shrinking the fleet. Nil disables shrinking entirely.
	IdleTimeout *time.Duration
	// Initializer runs once per Local worker before it starts
	// dequeuing tasks. A non-nil error breaks the pool
	// (InitializerError). Remote workers never run it.
	Initializer func() error
	// Finalizer runs once per Local worker after its last task, before
	// it exits. A non-nil error breaks the pool (FinalizerError).
	// Remote workers never run it.
	Finalizer func() error
	// MaxTasksPerWorker recycles a worker after it has executed this
	// many tasks. Zero means unlimited.
	MaxTasksPerWorker int
	// WorkerType selects Local (goroutine) or Remote (child process)
	// workers.
	WorkerType WorkerType
	// RemoteCommand is the argv used to start a Remote worker's child
	// process (argv[0] is the executable path). Required when
	// WorkerType == Remote.
	RemoteCommand []string
	// Registry declares the task kinds a Remote pool may dispatch.
	// Required when WorkerType == Remote.
	Registry *Registry
	// Logger receives structured lifecycle events. A no-op logger is
	// used when nil.
	Logger *zap.Logger
	// Metrics, when set, receives Prometheus observations for every
	// rejected submission and every task outcome. Nil disables metrics.
	Metrics *MetricsCollector
}

// DefaultConfig returns sensible Local-worker defaults: Workers =
// runtime.NumCPU(), IdleTimeout = DefaultIdleTimeout.
func DefaultConfig() Config {
	idle := DefaultIdleTimeout
	return Config{
		Workers:     runtime.NumCPU(),
		IdleTimeout: &idle,
		WorkerType:  Local,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.MaxTasksPerWorker < 0 {
		return fmt.Errorf("%w: max tasks per worker must be >= 0, got %d", ErrInvalidConfig, c.MaxTasksPerWorker)
	}
	if c.IdleTimeout != nil && *c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must be >= 0", ErrInvalidConfig)
	}
	if c.WorkerType == Remote {
		if len(c.RemoteCommand) == 0 {
			return fmt.Errorf("%w: remote command is required for Remote pools", ErrInvalidConfig)
		}
		if c.Registry == nil {
			return fmt.Errorf("%w: registry is required for Remote pools", ErrInvalidConfig)
		}
		if runtime.GOOS == "windows" && c.Workers > WindowsMaxProcessWorkers {
			return fmt.Errorf("%w: Windows caps Remote pools at %d workers, got %d",
				ErrInvalidConfig, WindowsMaxProcessWorkers, c.Workers)
		}
	}
	return nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

package taskpool

import "time"

// worker is the lifecycle contract shared by localWorker and
// remoteWorker: spawn, liveness, busy flag, join.
type worker interface {
	ID() string
	// Start is idempotent; it returns true only the first time it
	// actually spawns the underlying goroutine/process.
	Start() bool
	Alive() bool
	Busy() bool
	Join(timeout *time.Duration) bool
}

package taskpool

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of pool statistics, safe to read after Stats()
// returns.
type Stats struct {
	ActiveWorkers    int
	BusyWorkers      int
	QueuedTasks      int
	CompletedTasks   int64
	FailedTasks      int64
	CancelledTasks   int64
	RejectedTasks    int64
	AverageLatency   time.Duration
	Uptime           time.Duration
}

// statsCollector holds the atomics backing Stats; it never takes a
// lock on the hot path.
type statsCollector struct {
	completedTasks atomic.Int64
	failedTasks    atomic.Int64
	cancelledTasks atomic.Int64
	rejectedTasks  atomic.Int64
	totalLatency   atomic.Int64 // nanoseconds, completed+failed tasks only
	startTime      time.Time
}

func newStatsCollector() *statsCollector {
	return &statsCollector{startTime: time.Now()}
}

func (s *statsCollector) recordCompletion(d time.Duration) {
	s.completedTasks.Add(1)
	s.totalLatency.Add(int64(d))
}

func (s *statsCollector) recordFailure(d time.Duration) {
	s.failedTasks.Add(1)
	s.totalLatency.Add(int64(d))
}

func (s *statsCollector) recordCancellation() {
	s.cancelledTasks.Add(1)
}

func (s *statsCollector) recordRejection() {
	s.rejectedTasks.Add(1)
}

func (s *statsCollector) snapshot(active, busy, queued int) Stats {
	completed := s.completedTasks.Load()
	failed := s.failedTasks.Load()
	var avg time.Duration
	if n := completed + failed; n > 0 {
		avg = time.Duration(s.totalLatency.Load() / n)
	}
	return Stats{
		ActiveWorkers:  active,
		BusyWorkers:    busy,
		QueuedTasks:    queued,
		CompletedTasks: completed,
		FailedTasks:    failed,
		CancelledTasks: s.cancelledTasks.Load(),
		RejectedTasks:  s.rejectedTasks.Load(),
		AverageLatency: avg,
		Uptime:         time.Since(s.startTime),
	}
}

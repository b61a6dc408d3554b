package taskpool

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector exposes a Pool's Stats as Prometheus series. It
// registers into its own prometheus.Registry rather than the global
// one, since a process may run several pools concurrently (tests in
// particular) and the global registry panics on duplicate metric
// names.
type MetricsCollector struct {
	registry *prometheus.Registry

	activeWorkers  prometheus.Gauge
	busyWorkers    prometheus.Gauge
	queuedTasks    prometheus.Gauge
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksCancelled prometheus.Counter
	tasksRejected  prometheus.Counter
	taskLatency    prometheus.Histogram
}

// NewMetricsCollector builds a collector labeled by pool name.
func NewMetricsCollector(poolName string) *MetricsCollector {
	labels := prometheus.Labels{"pool": poolName}
	c := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_active_workers", Help: "Workers currently alive.", ConstLabels: labels,
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_busy_workers", Help: "Workers currently running a task.", ConstLabels: labels,
		}),
		queuedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_queued_tasks", Help: "Tasks submitted but not yet picked up.", ConstLabels: labels,
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_completed_total", Help: "Tasks that returned a result.", ConstLabels: labels,
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_failed_total", Help: "Tasks that raised an exception.", ConstLabels: labels,
		}),
		tasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_cancelled_total", Help: "Tasks cancelled before they ran.", ConstLabels: labels,
		}),
		tasksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_rejected_total", Help: "Submissions rejected by a closed or broken pool.", ConstLabels: labels,
		}),
		taskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "taskpool_task_duration_seconds", Help: "Average task execution time (RUNNING to terminal), sampled on each Observe call.",
			Buckets: prometheus.DefBuckets, ConstLabels: labels,
		}),
	}
	c.registry.MustRegister(
		c.activeWorkers, c.busyWorkers, c.queuedTasks,
		c.tasksCompleted, c.tasksFailed, c.tasksCancelled, c.tasksRejected,
		c.taskLatency,
	)
	return c
}

// Observe snapshots a pool's Stats into the collector's series. Call it
// on a ticker, or once before scraping /metrics.
func (c *MetricsCollector) Observe(s Stats) {
	c.activeWorkers.Set(float64(s.ActiveWorkers))
	c.busyWorkers.Set(float64(s.BusyWorkers))
	c.queuedTasks.Set(float64(s.QueuedTasks))
	c.taskLatency.Observe(s.AverageLatency.Seconds())
}

// RecordOutcome increments the counter matching a terminal status.
// Called once per future by Pool.recordTaskOutcome when a
// MetricsCollector is attached.
func (c *MetricsCollector) RecordOutcome(status Status) {
	switch status {
	case Completed:
		c.tasksCompleted.Inc()
	case Failed:
		c.tasksFailed.Inc()
	case Cancelled:
		c.tasksCancelled.Inc()
	}
}

// RecordRejection increments the rejected-submission counter.
func (c *MetricsCollector) RecordRejection() {
	c.tasksRejected.Inc()
}

// Handler returns the http.Handler that serves this collector's
// metrics in Prometheus exposition format.
func (c *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

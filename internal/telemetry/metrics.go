// Package telemetry exposes Prometheus counters and gauges for the
// scheduler, adapted from the teacher's internal/telemetry/metrics.go:
// same once-registered package-level vars plus a singleton /metrics
// handler, renamed to this spec's task/queue/dedup vocabulary
// (SPEC_FULL.md §2 component I).
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TasksSubmitted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_submitted_total", Help: "Total tasks submitted by producers"})
	TasksDuplicate  = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_duplicate_total", Help: "Submissions rejected by the dedup layer"})
	TasksCompleted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_completed_total", Help: "Tasks that reached COMPLETED"})
	TasksFailed     = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_failed_total", Help: "Tasks that reached FAILED"})
	TasksCancelled  = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_cancelled_total", Help: "Tasks that reached CANCELLED"})
	TasksRetried    = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_tasks_retried_total", Help: "RUNNING to PENDING retry transitions"})
	BadEnvelopes    = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_bad_envelopes_total", Help: "Malformed envelopes dropped by workers"})
	RateLimitReject = prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetryhub_rate_limit_rejects_total", Help: "Producer submissions rejected by the rate limiter"})

	QueueDepth    = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "telemetryhub_queue_depth", Help: "Broker-side queue depth by queue name"}, []string{"queue"})
	DedupSetSize  = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "telemetryhub_dedup_set_size", Help: "Dedup set cardinality by queue name"}, []string{"queue"})
	InFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetryhub_tasks_inflight", Help: "Tasks currently RUNNING on this worker"})

	DequeueLatency = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetryhub_dequeue_latency_seconds", Help: "Time spent blocked in a pop call", Buckets: prometheus.DefBuckets})
)

// Handler exposes the /metrics HTTP handler, registering every collector
// exactly once regardless of how many times Handler is called.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TasksSubmitted,
			TasksDuplicate,
			TasksCompleted,
			TasksFailed,
			TasksCancelled,
			TasksRetried,
			BadEnvelopes,
			RateLimitReject,
			QueueDepth,
			DedupSetSize,
			InFlightGauge,
			DequeueLatency,
		)
	})
	return promhttp.Handler()
}

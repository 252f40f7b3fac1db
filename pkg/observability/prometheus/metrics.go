package prometheus

import "github.com/prometheus/client_golang/prometheus"

// DefaultRegistry is the process-wide registry scraped at /metrics.
var DefaultRegistry = prometheus.NewRegistry()

// Metrics are the orchestrator's core instrumentation, grouped by the
// component that reports them (§4.4-§4.6 monitors, §4.5 worker pool).
var (
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_queue_depth",
		Help: "Ready rows popped from execution_queue by the latest input monitor cycle.",
	})

	WorkerThreadCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_worker_thread_count",
		Help: "Task threads currently running inside a worker process.",
	}, []string{"worker_id"})

	WorkerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_worker_count",
		Help: "Worker processes currently registered with the supervisor.",
	})

	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_dispatch_latency_seconds",
		Help:    "Time from task becoming ready to task being dispatched to a worker.",
		Buckets: prometheus.DefBuckets,
	})

	InputMonitorPollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_input_monitor_poll_seconds",
		Help:    "Duration of a single input monitor poll cycle.",
		Buckets: prometheus.DefBuckets,
	})

	OutputMonitorPollInterval = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_output_monitor_poll_interval_seconds",
		Help: "Current adaptive poll interval of the output monitor.",
	})

	AutoscaleEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_autoscale_events_total",
		Help: "Worker pool scale-up/scale-down decisions.",
	}, []string{"direction"})

	TasksDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_tasks_dispatched_total",
		Help: "Tasks handed to a worker, by outcome.",
	}, []string{"status"})
)

func init() {
	DefaultRegistry.MustRegister(
		QueueDepth,
		WorkerThreadCount,
		WorkerCount,
		DispatchLatency,
		InputMonitorPollDuration,
		OutputMonitorPollInterval,
		AutoscaleEvents,
		TasksDispatchedTotal,
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the instruments for one runner invocation. Each invocation
// gets a fresh registry so a push never mixes state across runs.
type Metrics struct {
	registry *prometheus.Registry

	// TasksDue is the number of tasks selected as due in this run.
	TasksDue prometheus.Gauge
	// TasksProcessed counts dispatched tasks by terminal status (completed, failed).
	TasksProcessed *prometheus.CounterVec
	// TaskDuration tracks wall time per dispatched task in seconds.
	TaskDuration prometheus.Histogram
	// LastRun is the Unix time the invocation finished.
	LastRun prometheus.Gauge
}

// New creates and registers the instruments on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TasksDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskbeat_tasks_due",
			Help: "Number of tasks selected as due in this run",
		}),
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbeat_tasks_processed_total",
			Help: "Tasks dispatched in this run by outcome",
		}, []string{"status"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskbeat_task_duration_seconds",
			Help:    "Wall time per dispatched task",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskbeat_last_run_timestamp_seconds",
			Help: "Unix time of the last completed runner invocation",
		}),
	}
	reg.MustRegister(m.TasksDue, m.TasksProcessed, m.TaskDuration, m.LastRun)
	return m
}

// ObserveTask records one dispatched task's outcome and duration.
func (m *Metrics) ObserveTask(status string, seconds float64) {
	m.TasksProcessed.WithLabelValues(status).Inc()
	m.TaskDuration.Observe(seconds)
}

// Push sends the collected metrics to a Pushgateway, grouped under the
// "taskbeat" job. A one-shot process cannot be scraped, so the runner pushes
// after each invocation. An empty URL is a no-op.
func (m *Metrics) Push(gatewayURL string) error {
	if gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, "taskbeat").Gatherer(m.registry).Push()
}

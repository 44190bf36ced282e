// Package metrics exposes Prometheus collectors for the application.
// Collectors are registered on a dedicated registry so tests can create
// isolated instances without global state collisions.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// TasksProcessed counts finished task executions by outcome
	// (completed, failed, retried).
	TasksProcessed *prometheus.CounterVec

	// TasksEnqueued counts accepted enqueue requests by trigger source.
	TasksEnqueued *prometheus.CounterVec

	// RunningTasks tracks the number of in-flight task executions.
	RunningTasks prometheus.Gauge

	// ReviewDuration observes end-to-end review pipeline duration in seconds.
	ReviewDuration prometheus.Histogram

	// ModelRequests counts model invocations by outcome (ok, error).
	ModelRequests *prometheus.CounterVec

	// CommentsPosted counts inline review comments successfully published.
	CommentsPosted prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewpilot_tasks_processed_total",
			Help: "Finished task executions by outcome",
		}, []string{"outcome"}),
		TasksEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewpilot_tasks_enqueued_total",
			Help: "Accepted enqueue requests by trigger source",
		}, []string{"source"}),
		RunningTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviewpilot_running_tasks",
			Help: "Number of in-flight task executions",
		}),
		ReviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewpilot_review_duration_seconds",
			Help:    "End-to-end review pipeline duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ModelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewpilot_model_requests_total",
			Help: "Model invocations by outcome",
		}, []string{"outcome"}),
		CommentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewpilot_comments_posted_total",
			Help: "Inline review comments successfully published",
		}),
	}

	registry.MustRegister(
		m.TasksProcessed,
		m.TasksEnqueued,
		m.RunningTasks,
		m.ReviewDuration,
		m.ModelRequests,
		m.CommentsPosted,
	)
	return m
}

// Handler returns a gin handler serving the registry in Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics stores Prometheus collectors used by the API and the batch processor.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	itemsProcessedTotal  *prometheus.CounterVec
	itemProcessDuration  *prometheus.HistogramVec
	tasksInflight        prometheus.Gauge
	batchRunsTotal       *prometheus.CounterVec
	batchRunDuration     prometheus.Histogram
	batchItemsLastRun    prometheus.Gauge
	statusMirrorFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "item_processor",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "item_processor",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		itemsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "item_processor",
				Name:      "items_processed_total",
				Help:      "Total number of item processing tasks by terminal outcome.",
			},
			[]string{"outcome"},
		),
		itemProcessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "item_processor",
				Name:      "item_process_duration_seconds",
				Help:      "Single item processing duration in seconds by outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		tasksInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "item_processor",
				Name:      "tasks_inflight",
				Help:      "Current number of in-flight item processing tasks.",
			},
		),
		batchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "item_processor",
				Name:      "batch_runs_total",
				Help:      "Total number of batch processing runs by result.",
			},
			[]string{"result"},
		),
		batchRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "item_processor",
				Name:      "batch_run_duration_seconds",
				Help:      "Wall-clock duration of a batch processing run.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		batchItemsLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "item_processor",
				Name:      "batch_items_last_run",
				Help:      "Number of items dispatched by the most recent batch run.",
			},
		),
		statusMirrorFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "item_processor",
				Name:      "status_mirror_failures_total",
				Help:      "Total number of failed writes to the shared status mirror.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.itemsProcessedTotal,
		m.itemProcessDuration,
		m.tasksInflight,
		m.batchRunsTotal,
		m.batchRunDuration,
		m.batchItemsLastRun,
		m.statusMirrorFailures,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveItemProcessed(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	label := normalizeOutcome(outcome)
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.itemsProcessedTotal.WithLabelValues(label).Inc()
	m.itemProcessDuration.WithLabelValues(label).Observe(seconds)
}

func (m *Metrics) IncTasksInFlight() {
	if m == nil {
		return
	}
	m.tasksInflight.Inc()
}

func (m *Metrics) DecTasksInFlight() {
	if m == nil {
		return
	}
	m.tasksInflight.Dec()
}

func (m *Metrics) ObserveBatchRun(err error, items int, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batchRunsTotal.WithLabelValues(result).Inc()
	m.batchRunDuration.Observe(duration.Seconds())
	m.batchItemsLastRun.Set(float64(items))
}

func (m *Metrics) IncStatusMirrorFailure() {
	if m == nil {
		return
	}
	m.statusMirrorFailures.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeOutcome(outcome string) string {
	normalized := strings.ToLower(strings.TrimSpace(outcome))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

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

const namespace = "kandidatvarsel"

// Metrics stores Prometheus collectors used by the HTTP surface and the worker loops.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	varslerCreatedTotal       *prometheus.CounterVec
	varslerDispatchedTotal    *prometheus.CounterVec
	dispatchErrorsTotal       *prometheus.CounterVec
	dispatchDuration          prometheus.Histogram
	statusUpdatesAppliedTotal *prometheus.CounterVec
	statusUpdatesIgnoredTotal prometheus.Counter
	reconcileCyclesTotal      *prometheus.CounterVec
	ingestionEventsTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		varslerCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "varsler_created_total",
				Help:      "Total number of varsel records created, by content tag.",
			},
			[]string{"mal"},
		),
		varslerDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "varsler_dispatched_total",
				Help:      "Total number of varsler confirmed by the broker and marked dispatched, by content tag.",
			},
			[]string{"mal"},
		),
		dispatchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_errors_total",
				Help:      "Total number of dispatch attempts rolled back, by reason.",
			},
			[]string{"reason"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time from claim to dispatched flag, including lookup and broker confirm.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		statusUpdatesAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_updates_applied_total",
				Help:      "Total number of status updates applied to a known varsel, by kind.",
			},
			[]string{"kind"},
		),
		statusUpdatesIgnoredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_updates_ignored_total",
				Help:      "Total number of status updates for varsler this service does not own.",
			},
		),
		reconcileCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliation_cycles_total",
				Help:      "Total number of non-empty reconciliation cycles, by result.",
			},
			[]string{"result"},
		),
		ingestionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_events_total",
				Help:      "Total number of upstream events seen by an adapter, by result.",
			},
			[]string{"adapter", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.varslerCreatedTotal,
		m.varslerDispatchedTotal,
		m.dispatchErrorsTotal,
		m.dispatchDuration,
		m.statusUpdatesAppliedTotal,
		m.statusUpdatesIgnoredTotal,
		m.reconcileCyclesTotal,
		m.ingestionEventsTotal,
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

func (m *Metrics) AddVarslerCreated(mal string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.varslerCreatedTotal.WithLabelValues(normalizeLabel(mal)).Add(float64(n))
}

func (m *Metrics) IncVarselDispatched(mal string) {
	if m == nil {
		return
	}
	m.varslerDispatchedTotal.WithLabelValues(normalizeLabel(mal)).Inc()
}

func (m *Metrics) IncDispatchError(reason string) {
	if m == nil {
		return
	}
	m.dispatchErrorsTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveDispatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncStatusUpdateApplied(kind string) {
	if m == nil {
		return
	}
	m.statusUpdatesAppliedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncStatusUpdateIgnored() {
	if m == nil {
		return
	}
	m.statusUpdatesIgnoredTotal.Inc()
}

func (m *Metrics) IncReconcileCycle(result string) {
	if m == nil {
		return
	}
	m.reconcileCyclesTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncIngestionEvent(adapter string, result string) {
	if m == nil {
		return
	}
	m.ingestionEventsTotal.WithLabelValues(normalizeLabel(adapter), normalizeLabel(result)).Inc()
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

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statuspulse"

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Ingest outcomes, used as the "result" label of ingest_requests_total.
const (
	ResultAccepted  = "accepted"
	ResultInvalid   = "invalid"
	ResultThrottled = "throttled"
)

// Metrics is the set of server self-metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	ingestRequests *prometheus.CounterVec
	rowsAccepted   prometheus.Counter
	rowsDropped    prometheus.Counter
	alertsFired    *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

// New builds and registers the collectors. services, if non-nil, is sampled
// on every scrape to report the number of tracked services.
func New(services func() int) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route"})

	m.ingestRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Ingest requests by outcome",
	}, []string{"result"})

	m.rowsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rows_accepted_total",
		Help:      "Rows stored from ingest requests",
	})

	m.rowsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rows_dropped_total",
		Help:      "Rows discarded as malformed or older than retention",
	})

	m.alertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "evaluations_total",
		Help:      "Alert evaluations by service",
	}, []string{"service"})

	m.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected WebSocket clients",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestLatency,
		m.ingestRequests,
		m.rowsAccepted,
		m.rowsDropped,
		m.alertsFired,
		m.wsClients,
	)

	if services != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services currently held in the store",
		}, func() float64 { return float64(services()) }))
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// IngestResult counts one ingest request with the given outcome.
func (m *Metrics) IngestResult(result string) {
	m.ingestRequests.WithLabelValues(result).Inc()
}

// Rows adds to the accepted and dropped row counters.
func (m *Metrics) Rows(accepted, dropped int) {
	m.rowsAccepted.Add(float64(accepted))
	m.rowsDropped.Add(float64(dropped))
}

// AlertEvaluated counts one alert evaluation for service.
func (m *Metrics) AlertEvaluated(service string) {
	m.alertsFired.WithLabelValues(service).Inc()
}

// SetWSClients reports the number of connected WebSocket clients.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

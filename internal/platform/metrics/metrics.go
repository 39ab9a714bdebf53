package metrics

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the server exports. All recording methods are
// safe on a nil *Collector so services can run without metrics wired.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	OrdersTotal        *prometheus.CounterVec
	SampleTransitions  *prometheus.CounterVec
	ResultEntriesTotal *prometheus.CounterVec
	PaymentsTotal      *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec

	DBConnections *prometheus.GaugeVec
}

func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		OrdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "lab",
			Name:      "orders_total",
			Help:      "Order lifecycle events by operation.",
		}, []string{"op"}),

		SampleTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "lab",
			Name:      "sample_transitions_total",
			Help:      "Sample status changes by target status.",
		}, []string{"status"}),

		ResultEntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "lab",
			Name:      "result_entries_total",
			Help:      "Result entries written by operation (insert, overwrite, delete).",
		}, []string{"op"}),

		PaymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Payment writes by resulting status.",
		}, []string{"status"}),

		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by outcome.",
		}, []string{"outcome"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, miss, error).",
		}, []string{"result"}),

		DBConnections: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "connections",
			Help:      "Pool connections by state.",
		}, []string{"state"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Order(op string) {
	if c == nil {
		return
	}
	c.OrdersTotal.WithLabelValues(op).Inc()
}

func (c *Collector) Sample(status string) {
	if c == nil {
		return
	}
	c.SampleTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) ResultEntries(op string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ResultEntriesTotal.WithLabelValues(op).Add(float64(n))
}

func (c *Collector) Payment(status string) {
	if c == nil {
		return
	}
	c.PaymentsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) Notification(outcome string) {
	if c == nil {
		return
	}
	c.NotificationsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) Cache(result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// ObservePool copies pool statistics into the connection gauges.
func (c *Collector) ObservePool(pool *pgxpool.Pool) {
	if c == nil || pool == nil {
		return
	}
	stat := pool.Stat()
	c.DBConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	c.DBConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	c.DBConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
}

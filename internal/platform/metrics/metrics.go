package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	PatientsCreatedTotal prometheus.Counter
	PrescriptionsIssued  prometheus.Counter
	DocumentsRendered    *prometheus.CounterVec
	ExportsTotal         *prometheus.CounterVec
	EmailsSent           *prometheus.CounterVec
	SubscriptionDenied   prometheus.Counter

	IdentityCacheHits   prometheus.Counter
	IdentityCacheMisses prometheus.Counter

	AuditEntriesTotal  prometheus.Counter
	AuditEntriesFailed prometheus.Counter
	AuditBufferDropped prometheus.Counter
}

// NewCollector registers every metric on a private registry, which also
// carries the Go runtime and process collectors.
func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
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

		PatientsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "patients_created_total",
			Help:      "Total number of patient records created.",
		}),

		PrescriptionsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "prescriptions_issued_total",
			Help:      "Total prescriptions issued.",
		}),

		DocumentsRendered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "documents",
			Name:      "rendered_total",
			Help:      "Prescription documents rendered by target and outcome.",
		}, []string{"target", "outcome"}),

		ExportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "documents",
			Name:      "exports_total",
			Help:      "Report exports by report and format.",
		}, []string{"report", "format"}),

		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "mail",
			Name:      "sent_total",
			Help:      "Prescription emails by outcome.",
		}, []string{"outcome"}),

		SubscriptionDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "subscription",
			Name:      "denied_total",
			Help:      "Writes refused because the clinic subscription is inactive.",
		}),

		IdentityCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "identity",
			Name:      "cache_hits_total",
			Help:      "Identity resolutions served from cache.",
		}),

		IdentityCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "identity",
			Name:      "cache_misses_total",
			Help:      "Identity resolutions loaded from the database.",
		}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditEntriesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_failed_total",
			Help:      "Audit log entries the store rejected.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

// Registry exposes the collector's registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request count, latency and in-flight requests labelled
// by route pattern.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			c.InFlightGauge.Inc()
			defer c.InFlightGauge.Dec()

			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}

			route := ec.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{ec.Request().Method, route, strconv.Itoa(status)}
			c.RequestsTotal.WithLabelValues(labels...).Inc()
			c.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

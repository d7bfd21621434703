// Package metrics records envelope and request metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config defines the metric names.
type Config struct {
	Namespace string // Namespace for metrics
	Subsystem string // Subsystem for metrics

	// Registry to register with. A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Collector implements the envelope middleware's Observer and exposes
// a request middleware and a scrape handler.
type Collector struct {
	registry  *prometheus.Registry
	envelopes *prometheus.CounterVec
	sizes     *prometheus.HistogramVec
	bypassed  prometheus.Counter
	failures  prometheus.Counter
	requests  *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them.
func NewCollector(config Config) (*Collector, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "envelopes_total",
			Help:      "Responses wrapped in an envelope, by status label and source kind.",
		}, []string{"status", "source"}),
		sizes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "envelope_size_bytes",
			Help:      "Size of enveloped response bodies.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"source"}),
		bypassed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "envelope_bypassed_total",
			Help:      "JSON responses sent without an envelope.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "envelope_failures_total",
			Help:      "Responses whose envelope could not be built.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}

	for _, collector := range []prometheus.Collector{c.envelopes, c.sizes, c.bypassed, c.failures, c.requests} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveEnvelope implements middleware.Observer.
func (c *Collector) ObserveEnvelope(status string, kind envelope.Kind, size int) {
	c.envelopes.WithLabelValues(status, string(kind)).Inc()
	c.sizes.WithLabelValues(string(kind)).Observe(float64(size))
}

// ObserveBypass implements middleware.Observer.
func (c *Collector) ObserveBypass() {
	c.bypassed.Inc()
}

// ObserveFailure implements middleware.Observer.
func (c *Collector) ObserveFailure() {
	c.failures.Inc()
}

// Middleware records request latency.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		c.requests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

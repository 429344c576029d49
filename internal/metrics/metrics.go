// Package metrics exposes Prometheus instrumentation for conversions and
// the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/types"
)

const namespace = "geoshift"

// Recorder implements converter.Observer and collects HTTP request metrics.
type Recorder struct {
	registry *prometheus.Registry

	conversions *prometheus.CounterVec
	rows        *prometheus.CounterVec
	duration    prometheus.Histogram
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var _ converter.Observer = (*Recorder)(nil)

// NewRecorder registers its collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion runs by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows handled by conversion runs, by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting one table.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.conversions,
		r.rows,
		r.duration,
		r.requests,
		r.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveConversion counts one finished run.
func (r *Recorder) ObserveConversion(res *types.ConversionResult, elapsed time.Duration, err error) {
	r.conversions.WithLabelValues(outcome(err)).Inc()
	r.duration.Observe(elapsed.Seconds())

	if res == nil {
		return
	}
	r.rows.WithLabelValues("converted").Add(float64(res.RowsConverted))
	r.rows.WithLabelValues("failed").Add(float64(res.RowsFailed))
	r.rows.WithLabelValues("dropped").Add(float64(res.RowsDropped))
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(route string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, converter.ErrColumnResolution):
		return "column_resolution_error"
	case errors.Is(err, converter.ErrIngestion):
		return "ingestion_error"
	case errors.Is(err, converter.ErrConfiguration):
		return "configuration_error"
	default:
		return "error"
	}
}

// Package metrics holds the Prometheus collectors for the email functions and the digest scheduler.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "applytrak"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "sent_total",
			Help:      "Emails handed to the email API, by kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	emailDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "send_duration_seconds",
			Help:      "Duration of email API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"kind"},
	)

	digestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "runs_total",
			Help:      "Digest runs, by kind and success.",
		},
		[]string{"kind", "success"},
	)

	digestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "run_duration_seconds",
			Help:      "Duration of digest runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"kind"},
	)
)

// Email outcomes.
const (
	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		emailsSent,
		emailDuration,
		digestRuns,
		digestDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and durations for next.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordEmail records one email outcome. Skipped emails carry no duration.
func RecordEmail(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	emailsSent.WithLabelValues(kind, result).Inc()
	if result != ResultSkipped {
		emailDuration.WithLabelValues(kind).Observe(max(duration, time.Millisecond).Seconds())
	}
}

// RecordDigest records one digest run.
func RecordDigest(kind string, duration time.Duration, success bool) {
	digestRuns.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
	digestDuration.WithLabelValues(kind).Observe(max(duration, time.Millisecond).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps only the first path segment so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	first, _, _ := strings.Cut(trimmed, "/")
	return "/" + first
}

package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

const namespace = "lde"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal     *prometheus.CounterVec
	overridesTotal   *prometheus.CounterVec
	riskQuotesTotal  *prometheus.CounterVec
	evaluationsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Document uploads by document type and outcome.",
		},
		[]string{"service", "document_type", "status"},
	)
	overridesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "overrides_total",
			Help:      "Administrative decision overrides by resulting decision.",
		},
		[]string{"service", "decision"},
	)
	riskQuotesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "quotes_total",
			Help:      "Stateless risk quotes by decision.",
		},
		[]string{"service", "decision"},
	)
	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "evaluations_requested_total",
			Help:      "Evaluation requests by outcome.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		overridesTotal,
		riskQuotesTotal,
		evaluationsTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		uploadsTotal:     uploadsTotal,
		overridesTotal:   overridesTotal,
		riskQuotesTotal:  riskQuotesTotal,
		evaluationsTotal: evaluationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := routeLabel(r)
		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel prefers the ServeMux pattern so ids never become label values.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/applications/"):
		rest := strings.TrimPrefix(path, "/v1/applications/")
		if _, sub, ok := strings.Cut(rest, "/"); ok {
			return "/v1/applications/{id}/" + sub
		}
		return "/v1/applications/{id}"
	case path == "/healthz", path == "/metrics", path == "/openapi.json",
		path == "/v1/applications", path == "/v1/risk/score", path == "/v1/admin/references/reload":
		return path
	default:
		return "unmatched"
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, documentType string, err error) {
	if documentType == "" {
		documentType = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, documentType, outcome(err)).Inc()
}

func (m *HTTPServerMetrics) RecordOverride(service, decision string) {
	m.overridesTotal.WithLabelValues(service, decision).Inc()
}

func (m *HTTPServerMetrics) RecordRiskQuote(service, decision string) {
	m.riskQuotesTotal.WithLabelValues(service, decision).Inc()
}

func (m *HTTPServerMetrics) RecordEvaluationRequest(service string, err error) {
	m.evaluationsTotal.WithLabelValues(service, outcome(err)).Inc()
}

// outcome labels failures by error kind so dashboards can split client
// mistakes from outages.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return domain.ErrorCode(err)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

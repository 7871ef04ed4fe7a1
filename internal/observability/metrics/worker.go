package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// WorkerMetrics implements ports.PipelineObserver.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal       *prometheus.CounterVec
	processDuration    *prometheus.HistogramVec
	processInFlight    prometheus.Gauge
	queueLag           *prometheus.HistogramVec
	verificationsTotal *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "application_process_total",
			Help:      "Total processed application evaluations by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "application_process_duration_seconds",
			Help:      "Application evaluation duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "application_process_in_flight",
			Help:      "Number of in-flight application evaluations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between the last application update and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	verificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "documents_total",
			Help:      "Document verification outcomes by type, status and result reuse.",
		},
		[]string{"service", "document_type", "status", "reused"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "recorded_total",
			Help:      "Recorded decisions by value and maker.",
		},
		[]string{"service", "decision", "maker"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, verificationsTotal, decisionsTotal, breakerState)

	return &WorkerMetrics{
		service:            service,
		registry:           registry,
		processTotal:       processTotal,
		processDuration:    processDuration,
		processInFlight:    processInFlight,
		queueLag:           queueLag,
		verificationsTotal: verificationsTotal,
		decisionsTotal:     decisionsTotal,
		breakerState:       breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartApplication() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishApplication(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := outcome(err)
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveVerification(docType domain.DocumentType, status domain.ValidationStatus, reused bool) {
	reusedLabel := "false"
	if reused {
		reusedLabel = "true"
	}
	m.verificationsTotal.WithLabelValues(m.service, string(docType), string(status), reusedLabel).Inc()
}

func (m *WorkerMetrics) ObserveDecision(decision domain.Decision, maker domain.DecisionMaker) {
	m.decisionsTotal.WithLabelValues(m.service, string(decision), string(maker)).Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *WorkerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	value := 0.0
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

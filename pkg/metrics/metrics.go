package metrics

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/logger"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogfetch"

// Metrics exposes pipeline events as Prometheus collectors. It implements
// pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	attemptsTotal      *prometheus.CounterVec
	attemptDuration    *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	processedTotal     prometheus.Counter
	failedTotal        *prometheus.CounterVec
	inflight           prometheus.Gauge
	batchDuration      prometheus.Histogram
	batchesTotal       prometheus.Counter
	runWritten         prometheus.Gauge
	storageErrorsTotal *prometheus.CounterVec

	mu        sync.Mutex
	processed int
}

var _ pipeline.Observer = (*Metrics)(nil)

// New creates Metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Total number of catalog requests by outcome class.",
			},
			[]string{"outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_attempt_duration_seconds",
				Help:      "Catalog request duration in seconds by outcome class.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_scheduled_total",
				Help:      "Total number of retries scheduled by reason.",
			},
			[]string{"reason"},
		),
		processedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "products_fetched_total",
				Help:      "Total number of products fetched successfully.",
			},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "products_failed_total",
				Help:      "Total number of identifiers that ended in failure by reason.",
			},
			[]string{"reason"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fetch_inflight",
				Help:      "Current number of in-flight catalog requests.",
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Wall time of one batch including write and checkpoint.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		batchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_completed_total",
				Help:      "Total number of batches completed.",
			},
		),
		runWritten: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_written_ids",
				Help:      "Identifiers written to batch files in the current run.",
			},
		),
		storageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of batch write or checkpoint save failures.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.attemptsTotal,
		m.attemptDuration,
		m.retriesTotal,
		m.processedTotal,
		m.failedTotal,
		m.inflight,
		m.batchDuration,
		m.batchesTotal,
		m.runWritten,
		m.storageErrorsTotal,
	)

	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AttemptStarted(id string, attempt int) {
	m.inflight.Inc()
}

func (m *Metrics) AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration) {
	m.inflight.Dec()
	label := outcome.Kind.String()
	m.attemptsTotal.WithLabelValues(label).Inc()

	seconds := elapsed.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.attemptDuration.WithLabelValues(label).Observe(seconds)
}

func (m *Metrics) RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration) {
	m.retriesTotal.WithLabelValues(reason.String()).Inc()
}

func (m *Metrics) Finished(result models.Result) {
	if result.Failed() {
		m.failedTotal.WithLabelValues(normalizeReason(result.Failure.Reason)).Inc()
		return
	}
	m.processedTotal.Inc()
}

func (m *Metrics) BatchStarted(number, total, size int) {}

func (m *Metrics) BatchCompleted(report pipeline.BatchReport) {
	m.batchesTotal.Inc()
	m.batchDuration.Observe(report.Duration.Seconds())

	if report.WriteError != nil {
		m.storageErrorsTotal.WithLabelValues("batch_write").Inc()
	}
	if report.CheckpointError != nil {
		m.storageErrorsTotal.WithLabelValues("checkpoint_save").Inc()
	}

	m.mu.Lock()
	if report.WriteError == nil {
		m.processed += report.Succeeded
	}
	m.runWritten.Set(float64(m.processed))
	m.mu.Unlock()
}

func (m *Metrics) RunCompleted(summary pipeline.Summary) {}

func normalizeReason(reason string) string {
	normalized := strings.ToLower(strings.TrimSpace(reason))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// Server exposes /metrics on its own listener
type Server struct {
	srv    *http.Server
	logger logger.Logger
}

// NewServer creates a metrics server bound to address
func NewServer(address string, m *Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithField("component", "metrics"),
	}
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		s.logger.InfoWithFields("Metrics server listening", map[string]interface{}{
			"address": s.srv.Addr,
		})
		if err := s.srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

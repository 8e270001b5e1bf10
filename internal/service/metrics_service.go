package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the workflow engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitionsTotal     *prometheus.CounterVec
	violationsTotal      *prometheus.CounterVec
	escalationsTotal     *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	sweepDuration        prometheus.Observer

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_transitions_total",
		Help: "Committed referral workflow transitions by action",
	}, []string{"action"})

	violationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "violations_recorded_total",
		Help: "Violation records created, by degree",
	}, []string{"degree"})

	escalationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_escalations_total",
		Help: "Absence cases escalated, by action level",
	}, []string{"level"})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Parent notification dispatch failures, by dispatcher",
	}, []string{"dispatcher"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "absence_sweep_duration_seconds",
		Help:    "Duration of attendance escalation sweeps",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitionsTotal, violationsTotal,
		escalationsTotal, notificationFailures, sweepDuration, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		transitionsTotal:     transitionsTotal,
		violationsTotal:      violationsTotal,
		escalationsTotal:     escalationsTotal,
		notificationFailures: notificationFailures,
		sweepDuration:        sweepDuration,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordTransition counts a committed workflow transition.
func (m *MetricsService) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action).Inc()
}

// RecordViolation counts a persisted violation record.
func (m *MetricsService) RecordViolation(degree int) {
	if m == nil {
		return
	}
	m.violationsTotal.WithLabelValues(fmt.Sprintf("%d", degree)).Inc()
}

// RecordEscalation counts an absence case escalation.
func (m *MetricsService) RecordEscalation(level string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(level).Inc()
}

// RecordNotificationFailure counts a failed dispatch.
func (m *MetricsService) RecordNotificationFailure(dispatcher string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(dispatcher).Inc()
}

// ObserveSweep records the duration of one escalation sweep.
func (m *MetricsService) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-roster-sync/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the reconciliation engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	enrolledTotal   prometheus.Counter
	unenrolledTotal prometheus.Counter
	unmatchedTotal  prometheus.Counter
	registrarErrors prometheus.Counter
	rolesPurged     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_sync_runs_total",
		Help: "Instance sync passes by outcome",
	}, []string{"outcome"})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roster_sync_duration_seconds",
		Help:    "Duration of one instance sync pass",
		Buckets: prometheus.DefBuckets,
	})

	enrolledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_sync_enrolled_total",
		Help: "Users enrolled by the reconciliation engine",
	})

	unenrolledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_sync_unenrolled_total",
		Help: "Users unenrolled by the reconciliation engine",
	})

	unmatchedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_sync_unmatched_students_total",
		Help: "External students with no matching local account",
	})

	registrarErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_sync_registrar_errors_total",
		Help: "Sync passes aborted by registrar fetch or decode failures",
	})

	rolesPurged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_sync_roles_purged_total",
		Help: "Orphaned role assignments removed by the purge pass",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, syncRuns, syncDuration,
		enrolledTotal, unenrolledTotal, unmatchedTotal, registrarErrors, rolesPurged, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncRuns:        syncRuns,
		syncDuration:    syncDuration,
		enrolledTotal:   enrolledTotal,
		unenrolledTotal: unenrolledTotal,
		unmatchedTotal:  unmatchedTotal,
		registrarErrors: registrarErrors,
		rolesPurged:     rolesPurged,
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

// ObserveSyncResult records the outcome of one instance pass.
func (m *MetricsService) ObserveSyncResult(result models.SyncResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(string(result.Outcome)).Inc()
	m.syncDuration.Observe(duration.Seconds())
	m.enrolledTotal.Add(float64(result.Enrolled))
	m.unenrolledTotal.Add(float64(result.Unenrolled))
	m.unmatchedTotal.Add(float64(result.Unmatched))
	if result.Outcome == models.OutcomeFetchError {
		m.registrarErrors.Inc()
	}
}

// AddRolesPurged records the size of a purge pass.
func (m *MetricsService) AddRolesPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rolesPurged.Add(float64(n))
}

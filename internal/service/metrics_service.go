package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the scheduling workflows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	swapTransitions *prometheus.CounterVec
	violationsFound *prometheus.CounterVec
	calendarHits    prometheus.Counter
	calendarMisses  prometheus.Counter
	importRows      prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
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

	swapTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_transitions_total",
		Help: "Swap workflow transitions by resulting status",
	}, []string{"status"})

	violationsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duty_hour_violations_total",
		Help: "Duty-hour violations reported by the validator",
	}, []string{"code"})

	calendarHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_cache_hits_total",
		Help: "Calendar feed cache hits",
	})

	calendarMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_cache_misses_total",
		Help: "Calendar feed cache misses",
	})

	importRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_import_assignments_total",
		Help: "Assignments written by Excel imports",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, swapTransitions, violationsFound, calendarHits, calendarMisses, importRows, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		swapTransitions: swapTransitions,
		violationsFound: violationsFound,
		calendarHits:    calendarHits,
		calendarMisses:  calendarMisses,
		importRows:      importRows,
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

// RecordSwapTransition counts a completed workflow transition.
func (m *MetricsService) RecordSwapTransition(status string) {
	if m == nil {
		return
	}
	m.swapTransitions.WithLabelValues(status).Inc()
}

// RecordViolations counts validator findings by code.
func (m *MetricsService) RecordViolations(codes []string) {
	if m == nil {
		return
	}
	for _, code := range codes {
		m.violationsFound.WithLabelValues(code).Inc()
	}
}

// RecordCalendarLookup counts a calendar feed cache outcome.
func (m *MetricsService) RecordCalendarLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.calendarHits.Inc()
	} else {
		m.calendarMisses.Inc()
	}
}

// RecordImport counts assignments written by an import.
func (m *MetricsService) RecordImport(assignments int) {
	if m == nil {
		return
	}
	m.importRows.Add(float64(assignments))
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tocguard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tocguard",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Constraint metrics
	constraintEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "constraint",
			Name:      "evaluations_total",
			Help:      "Total number of constraint evaluations by entity type and outcome",
		},
		[]string{"entity_type", "outcome"},
	)

	violationsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "constraint",
			Name:      "violations_detected_total",
			Help:      "Total number of constraint violations detected",
		},
		[]string{"severity"},
	)

	violationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "constraint",
			Name:      "violation_transitions_total",
			Help:      "Total number of violations resolved or waived",
		},
		[]string{"status"},
	)

	openViolations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tocguard",
			Subsystem: "constraint",
			Name:      "open_violations",
			Help:      "Number of open violations by severity, as of the last summary",
		},
		[]string{"severity"},
	)

	// Buffer metrics
	bufferObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "buffer",
			Name:      "observations_total",
			Help:      "Total number of buffer level observations by zone",
		},
		[]string{"zone"},
	)

	bufferZoneTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "buffer",
			Name:      "zone_transitions_total",
			Help:      "Total number of buffer zone changes",
		},
		[]string{"from", "to"},
	)

	bufferPenetration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tocguard",
			Subsystem: "buffer",
			Name:      "red_penetration_percent",
			Help:      "Latest red zone penetration per buffer",
		},
		[]string{"buffer"},
	)

	// Drum metrics
	drumAnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tocguard",
			Subsystem: "drum",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of drum analysis passes in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	drumDesignationChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "drum",
			Name:      "designation_changes_total",
			Help:      "Total number of drum designation changes",
		},
		[]string{"action", "method"},
	)

	// Cache metrics
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocguard",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Buffer definition cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tocguard",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "driver"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvaluation records one constraint evaluation call
func RecordEvaluation(entityType, outcome string) {
	constraintEvaluationsTotal.WithLabelValues(entityType, outcome).Inc()
}

// RecordViolation records a detected violation
func RecordViolation(severity string) {
	violationsDetectedTotal.WithLabelValues(severity).Inc()
}

// RecordViolationTransition records a violation leaving the open state
func RecordViolationTransition(status string) {
	violationTransitionsTotal.WithLabelValues(status).Inc()
}

// SetOpenViolations sets the gauge for open violations by severity
func SetOpenViolations(severity string, count float64) {
	openViolations.WithLabelValues(severity).Set(count)
}

// RecordBufferObservation records a buffer level observation
func RecordBufferObservation(buffer, zone string, penetration float64) {
	bufferObservationsTotal.WithLabelValues(zone).Inc()
	bufferPenetration.WithLabelValues(buffer).Set(penetration)
}

// RecordZoneTransition records a buffer moving between zones
func RecordZoneTransition(from, to string) {
	bufferZoneTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordDrumAnalysis records the duration of a drum analysis pass
func RecordDrumAnalysis(duration time.Duration) {
	drumAnalysisDuration.Observe(duration.Seconds())
}

// RecordDrumChange records a drum designation or clearance
func RecordDrumChange(action, method string) {
	drumDesignationChangesTotal.WithLabelValues(action, method).Inc()
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

// RecordDBQuery records the time elapsed since start for a database call
func RecordDBQuery(operation, driver string, start time.Time) {
	dbQueryDuration.WithLabelValues(operation, driver).Observe(time.Since(start).Seconds())
}

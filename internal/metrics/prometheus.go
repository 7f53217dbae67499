package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Collections metrics
	detectionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_detection_runs_total",
			Help: "Detection runs by outcome (ok, partial, failed, busy)",
		},
		[]string{"outcome"},
	)

	detectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collections_detection_duration_seconds",
			Help:    "Detection run duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	casesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_cases_created_total",
			Help: "Total number of delinquency cases opened",
		},
		[]string{"source"},
	)

	casesRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collections_cases_refreshed_total",
			Help: "Open cases whose derived fields were recomputed by detection",
		},
	)

	casesAutoResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collections_cases_auto_resolved_total",
			Help: "Cases resolved automatically after the obligation was paid",
		},
	)

	casesStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_cases_status_changed_total",
			Help: "Total number of case status changes",
		},
		[]string{"from_status", "to_status"},
	)

	sourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_source_failures_total",
			Help: "Obligation source queries that failed or timed out",
		},
		[]string{"source"},
	)

	actionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_actions_recorded_total",
			Help: "Follow-up actions appended to the action log",
		},
		[]string{"type"},
	)

	noticesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_notices_sent_total",
			Help: "Notice and reminder deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := routeTemplate(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeTemplate labels requests by their mux template so ids never become label values
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func RecordDetectionRun(outcome string, duration time.Duration) {
	detectionRuns.WithLabelValues(outcome).Inc()
	if duration > 0 {
		detectionDuration.Observe(duration.Seconds())
	}
}

func RecordCaseCreated(source string) {
	casesCreated.WithLabelValues(source).Inc()
}

func RecordCasesRefreshed(n int) {
	casesRefreshed.Add(float64(n))
}

func RecordCaseAutoResolved() {
	casesAutoResolved.Inc()
}

func RecordCaseStatusChange(fromStatus, toStatus string) {
	casesStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

func RecordSourceFailure(source string) {
	sourceFailures.WithLabelValues(source).Inc()
}

func RecordActionRecorded(actionType string) {
	actionsRecorded.WithLabelValues(actionType).Inc()
}

func RecordNotice(channel, outcome string) {
	noticesSent.WithLabelValues(channel, outcome).Inc()
}

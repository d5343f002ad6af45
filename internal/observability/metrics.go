package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Approval metrics
	WorkflowsCreatedTotal   prometheus.Counter
	DecisionsTotal          *prometheus.CounterVec
	ReviewsRequestedTotal   prometheus.Counter
	EscalationsTotal        *prometheus.CounterVec
	WorkflowStatusChanges   *prometheus.CounterVec
	NotificationsTotal      *prometheus.CounterVec
	DeadlineIssues          *prometheus.GaugeVec
	CatalogRequirementCount prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signoff_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signoff_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signoff_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Approvals
		WorkflowsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signoff_workflows_created_total",
			Help: "Total number of approval workflows created.",
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_decisions_total",
			Help: "Total number of stakeholder decisions recorded.",
		}, []string{"approval_type", "decision"}),
		ReviewsRequestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signoff_reviews_requested_total",
			Help: "Total number of review requests.",
		}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_escalations_total",
			Help: "Total number of requirement escalations.",
		}, []string{"requirement_id"}),
		WorkflowStatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_workflow_status_changes_total",
			Help: "Total number of overall workflow status changes.",
		}, []string{"status"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_notifications_total",
			Help: "Total number of notifications dispatched.",
		}, []string{"kind", "status"}),
		DeadlineIssues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signoff_deadline_issues",
			Help: "Deadline issues found by the last monitor sweep.",
		}, []string{"kind"}),
		CatalogRequirementCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signoff_catalog_requirements",
			Help: "Number of requirements in the loaded catalog.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Approvals
		m.WorkflowsCreatedTotal,
		m.DecisionsTotal,
		m.ReviewsRequestedTotal,
		m.EscalationsTotal,
		m.WorkflowStatusChanges,
		m.NotificationsTotal,
		m.DeadlineIssues,
		m.CatalogRequirementCount,
	)

	return m
}

// --- Recording helpers ---
//
// All helpers are safe to call on a nil *Metrics so components can run
// without a registry in tests.

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordWorkflowCreated records a workflow creation.
func (m *Metrics) RecordWorkflowCreated() {
	if m == nil {
		return
	}
	m.WorkflowsCreatedTotal.Inc()
}

// RecordDecision records a stakeholder decision.
func (m *Metrics) RecordDecision(approvalType, decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(approvalType, decision).Inc()
}

// RecordReviewRequested records a review request.
func (m *Metrics) RecordReviewRequested() {
	if m == nil {
		return
	}
	m.ReviewsRequestedTotal.Inc()
}

// RecordEscalation records a requirement escalation.
func (m *Metrics) RecordEscalation(requirementID string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(requirementID).Inc()
}

// RecordStatusChange records a change of the overall workflow status.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.WorkflowStatusChanges.WithLabelValues(status).Inc()
}

// RecordNotification records a dispatched notification. Status is "sent" or
// "failed".
func (m *Metrics) RecordNotification(kind, status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
}

// SetDeadlineIssues sets the number of deadline issues of a kind.
func (m *Metrics) SetDeadlineIssues(kind string, count float64) {
	if m == nil {
		return
	}
	m.DeadlineIssues.WithLabelValues(kind).Set(count)
}

// SetCatalogRequirements sets the number of loaded catalog requirements.
func (m *Metrics) SetCatalogRequirements(count float64) {
	if m == nil {
		return
	}
	m.CatalogRequirementCount.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}
		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler bound to a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.ReplaceAll(pattern, "/*/", "/")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// requestDuration tracks request duration per route template
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "route", "status"},
	)

	// corsPreflights counts OPTIONS requests answered with CORS headers
	corsPreflights = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cors_preflights_total",
			Help: "Total number of CORS preflight requests",
		},
		[]string{"route"},
	)

	// corsOriginDecisions counts the origin matcher outcomes
	corsOriginDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cors_origin_decisions_total",
			Help: "Total number of CORS origin decisions by kind",
		},
		[]string{"decision"},
	)

	corsConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cors_conflicts_total",
			Help: "Total number of routes rejected for conflicting CORS options",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(corsPreflights)
	prometheus.MustRegister(corsOriginDecisions)
	prometheus.MustRegister(corsConflicts)
}

// MetricsMiddleware provides metrics collection and endpoints
type MetricsMiddleware struct {
	config *config.MetricsConfig
	log    logger.Logger
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(config *config.MetricsConfig, log logger.Logger) *MetricsMiddleware {
	return &MetricsMiddleware{
		config: config,
		log:    log,
	}
}

func (m *MetricsMiddleware) enabled() bool {
	return m != nil && m.config != nil && m.config.Enabled
}

// RegisterMetricsEndpoint serves the Prometheus registry on the configured
// endpoint next to router
func (m *MetricsMiddleware) RegisterMetricsEndpoint(router http.Handler) http.Handler {
	if !m.enabled() {
		return router
	}

	handler := http.NewServeMux()
	handler.Handle("/", router)
	handler.Handle(m.config.Endpoint, promhttp.Handler())

	m.log.Info("Registered metrics endpoint",
		logger.String("endpoint", m.config.Endpoint),
	)

	return handler
}

// Metrics middleware collects metrics for each request
func (m *MetricsMiddleware) Metrics(next http.Handler) http.Handler {
	if !m.enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := routeTemplate(r)
		status := strconv.Itoa(recorder.statusCode)
		requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// IncrementPreflight counts a preflight answered on route
func (m *MetricsMiddleware) IncrementPreflight(route string) {
	if m.enabled() {
		corsPreflights.WithLabelValues(route).Inc()
	}
}

// ObserveOriginDecision counts one origin matcher outcome
func (m *MetricsMiddleware) ObserveOriginDecision(decision string) {
	if m.enabled() {
		corsOriginDecisions.WithLabelValues(decision).Inc()
	}
}

// IncrementConflict counts a route rejected for conflicting CORS options
func (m *MetricsMiddleware) IncrementConflict(path string) {
	if m.enabled() {
		corsConflicts.WithLabelValues(path).Inc()
	}
}

// routeTemplate labels r with its mux path template, falling back to the
// raw path outside a mux router
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// informational reports a 1xx status that is followed by the final status
// line. 101 is final: the connection switches protocols after it.
func informational(statusCode int) bool {
	return statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols
}

// statusRecorder captures the status code written through it
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if informational(statusCode) {
		r.ResponseWriter.WriteHeader(statusCode)
		return
	}
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

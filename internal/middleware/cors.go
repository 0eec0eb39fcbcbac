package middleware

import (
	"net/http"

	"cors-gateway/internal/cors"
	"cors-gateway/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CORSMiddleware decorates route responses with the route's CORS policy
type CORSMiddleware struct {
	log     logger.Logger
	metrics *MetricsMiddleware
}

// NewCORSMiddleware creates a new CORS middleware. metrics may be nil.
func NewCORSMiddleware(log logger.Logger, metrics *MetricsMiddleware) *CORSMiddleware {
	return &CORSMiddleware{
		log:     log,
		metrics: metrics,
	}
}

// CORS wraps next so that its responses carry the headers of the policy
// source. The policy is resolved per request, which lets a preflight route
// pick up sibling methods registered after it.
func (c *CORSMiddleware) CORS(source cors.PolicySource, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		policy := source.Effective()
		if !policy.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		wrapper := &corsResponseWriter{
			ResponseWriter: w,
			middleware:     c,
			policy:         policy,
			request:        r,
		}
		next.ServeHTTP(wrapper, r)

		// The handler may not have written anything
		if !wrapper.wroteHeader {
			wrapper.WriteHeader(http.StatusOK)
		}
	})
}

// observe reports a decoration on logs, metrics and the request span
func (c *CORSMiddleware) observe(r *http.Request, out cors.Outcome) {
	route := routeTemplate(r)
	c.metrics.ObserveOriginDecision(out.Origin.Kind.String())

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("cors.origin_decision", out.Origin.Kind.String()),
		attribute.String("cors.allow_origin", out.AllowOrigin),
		attribute.Bool("cors.preflight", out.Preflight),
	)

	if out.Preflight {
		c.metrics.IncrementPreflight(route)
		c.log.Debug("CORS preflight request processed",
			logger.String("route", route),
			logger.String("origin", r.Header.Get("Origin")),
			logger.String("allow_origin", out.AllowOrigin),
		)
	}
}

// corsResponseWriter applies the policy right before the status line goes
// out, once the handler had its chance to set headers
type corsResponseWriter struct {
	http.ResponseWriter
	middleware  *CORSMiddleware
	policy      *cors.Policy
	request     *http.Request
	wroteHeader bool
	discardBody bool
}

// WriteHeader decorates the headers, then writes the status. Successful
// preflights always answer 200 with no body. Interim 1xx responses pass
// through undecorated.
func (w *corsResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	if informational(statusCode) {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}
	w.wroteHeader = true

	out := cors.Decorate(w.policy, w.request, w.Header())
	w.middleware.observe(w.request, out)

	if out.Preflight && statusCode < http.StatusBadRequest {
		statusCode = http.StatusOK
		w.discardBody = true
		w.Header().Del("Content-Length")
		w.Header().Del("Content-Type")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write makes sure the headers are decorated before the first byte
func (w *corsResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.discardBody {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *corsResponseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *corsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

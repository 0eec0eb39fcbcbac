package middleware

import (
	"net/http"
	"strings"

	"cors-gateway/internal/config"
	"cors-gateway/pkg/logger"
)

// HeaderTransformer applies a route's header rewrites. It sits inside the
// CORS wrapper, so response headers it sets look handler-set to the
// override modes.
type HeaderTransformer struct {
	log logger.Logger
}

// NewHeaderTransformer creates a new header transformation middleware
func NewHeaderTransformer(log logger.Logger) *HeaderTransformer {
	return &HeaderTransformer{
		log: log,
	}
}

// Transform wraps next with the request and response rewrites of transform.
// A nil transform returns next untouched.
func (h *HeaderTransformer) Transform(next http.Handler, transform *config.HeaderTransform) http.Handler {
	if transform == nil {
		return next
	}
	if touchesCORS(transform) {
		h.log.Debug("Header transform sets CORS response headers",
			logger.Strings("headers", corsKeys(transform)))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for key, value := range transform.Request {
			if value == "" {
				r.Header.Del(key)
				continue
			}
			r.Header.Set(key, value)
		}

		tw := &transformResponseWriter{
			ResponseWriter: w,
			transform:      transform,
		}
		next.ServeHTTP(tw, r)

		// Handlers that write nothing still get their headers rewritten
		// before the outer writer finalizes the response.
		if !tw.applied {
			tw.apply()
		}
	})
}

func touchesCORS(transform *config.HeaderTransform) bool {
	return len(corsKeys(transform)) > 0
}

func corsKeys(transform *config.HeaderTransform) []string {
	var keys []string
	for key := range transform.Response {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), "Access-Control-") {
			keys = append(keys, key)
		}
	}
	for _, key := range transform.Remove {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), "Access-Control-") {
			keys = append(keys, key)
		}
	}
	return keys
}

// transformResponseWriter rewrites response headers once, right before
// they are handed to the wrapped writer
type transformResponseWriter struct {
	http.ResponseWriter
	transform *config.HeaderTransform
	applied   bool
}

func (tw *transformResponseWriter) apply() {
	tw.applied = true
	header := tw.ResponseWriter.Header()

	// Empty value means remove the header
	for key, value := range tw.transform.Response {
		if value == "" {
			header.Del(key)
			continue
		}
		header.Set(key, value)
	}
	for _, key := range tw.transform.Remove {
		header.Del(key)
	}
}

func (tw *transformResponseWriter) WriteHeader(statusCode int) {
	if tw.applied {
		return
	}
	if informational(statusCode) {
		tw.ResponseWriter.WriteHeader(statusCode)
		return
	}
	tw.apply()
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *transformResponseWriter) Write(b []byte) (int, error) {
	if !tw.applied {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

func (tw *transformResponseWriter) Flush() {
	if !tw.applied {
		tw.WriteHeader(http.StatusOK)
	}
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (tw *transformResponseWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cors-gateway/internal/config"
)

// Version is reported by the health check; set at build time
var Version = "dev"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HealthCheckHandler handles health check requests
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   Version,
	})
}

// NotFoundHandler handles 404 not found requests
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Code:    http.StatusNotFound,
		Message: "The requested resource was not found",
	})
}

// MethodNotAllowedHandler answers requests whose path exists under other
// methods. A bare OPTIONS request gets a 404: a path without a preflight
// route has no CORS to offer.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		NotFoundHandler(w, r)
		return
	}
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Code:    http.StatusMethodNotAllowed,
		Message: "The requested method is not allowed for this resource",
	})
}

// UpstreamErrorHandler answers for an upstream that could not be reached.
// Its signature matches httputil.ReverseProxy.ErrorHandler.
func UpstreamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "service_unavailable",
		Code:    http.StatusServiceUnavailable,
		Message: "The upstream service is unavailable",
	})
}

// PreflightHandler is the handler of synthesized OPTIONS routes: an empty
// 200. The CORS headers come from the middleware wrapping it.
func PreflightHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// NewStaticHandler serves a fixed response configured on a route
func NewStaticHandler(resp *config.StaticResponse) http.Handler {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := []byte(resp.Body)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if len(body) > 0 {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			w.Write(body)
		}
	})
}

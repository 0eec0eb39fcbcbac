package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/handlers"
	"cors-gateway/pkg/logger"
)

// HTTPProxy builds reverse proxy handlers for upstream routes
type HTTPProxy struct {
	log logger.Logger
}

// NewHTTPProxy creates a new HTTP proxy
func NewHTTPProxy(log logger.Logger) *HTTPProxy {
	return &HTTPProxy{log: log}
}

// Handler returns the handler forwarding requests of route to its upstream.
// Upstream Access-Control-* headers pass through untouched; whether the
// gateway keeps them is decided by the route's CORS override mode.
func (p *HTTPProxy) Handler(route config.Route) (http.Handler, error) {
	target, err := url.Parse(route.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", route.Upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host are required", route.Upstream)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		if route.StripPrefix {
			req.URL.Path = stripPrefix(req.URL.Path, route.Path)
			req.URL.RawPath = ""
		}

		originalDirector(req)

		if _, ok := req.Header["X-Forwarded-Host"]; !ok {
			req.Header.Set("X-Forwarded-Host", req.Host)
		}
		req.Host = target.Host
		req.Header.Set("X-Gateway-Proxy", "true")
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Error("Proxy error",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.String("upstream", target.String()),
			logger.Error(err),
		)
		handlers.UpstreamErrorHandler(w, r, err)
	}

	if route.Timeout > 0 {
		timeout := time.Duration(route.Timeout) * time.Second
		proxy.Transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.log.Debug("Proxying request",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.String("upstream", target.String()),
		)
		proxy.ServeHTTP(w, r)
	}), nil
}

// stripPrefix removes the literal part of a route template from path. Route
// templates with variables are only stripped up to the first variable.
func stripPrefix(path, routePath string) string {
	prefix := routePath
	if i := strings.Index(prefix, "{"); i >= 0 {
		prefix = prefix[:i]
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return path
	}
	path = strings.TrimPrefix(path, prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

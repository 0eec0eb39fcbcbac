package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/internal/handlers"
	"cors-gateway/internal/middleware"
	"cors-gateway/internal/proxy"
	"cors-gateway/pkg/logger"
)

// ErrRouterFrozen is returned when routes are added after Handler was called
var ErrRouterFrozen = errors.New("router is frozen: routes must be added before serving")

// DuplicateRouteError reports a method and path registered twice
type DuplicateRouteError struct {
	Method string
	Path   string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("route %s %s is already registered", e.Method, e.Path)
}

// RouteEntry is one row of the route table
type RouteEntry struct {
	Method string
	Path   string
	// Synthetic marks the OPTIONS routes added for CORS preflights
	Synthetic bool
	Policy    *cors.Policy
}

type routeEntry struct {
	method    string
	path      string
	synthetic bool
	source    cors.PolicySource
}

// Router builds the route table: user routes, their compiled CORS policies
// and the preflight routes they need. It is not safe for concurrent use and
// must be fully built before Handler is served.
type Router struct {
	router   *mux.Router
	defaults config.CorsSetting
	registry *cors.Registry
	cors     *middleware.CORSMiddleware
	metrics  *middleware.MetricsMiddleware
	proxy    *proxy.HTTPProxy
	headers  *middleware.HeaderTransformer
	log      logger.Logger
	entries  []routeEntry
	index    map[string]int
	frozen   bool
}

// NewRouter creates a router whose routes start from the connection-wide CORS
// defaults. metrics may be nil.
func NewRouter(defaults config.CorsSetting, log logger.Logger, metrics *middleware.MetricsMiddleware) (*Router, error) {
	policy, err := cors.CompileDefaults(defaults)
	if err != nil {
		return nil, fmt.Errorf("invalid CORS defaults: %w", err)
	}
	log.Info("CORS defaults compiled", logger.String("policy", policy.String()))

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowedHandler)

	return &Router{
		router:   router,
		defaults: defaults,
		registry: cors.NewRegistry(),
		cors:     middleware.NewCORSMiddleware(log, metrics),
		metrics:  metrics,
		proxy:    proxy.NewHTTPProxy(log),
		headers:  middleware.NewHeaderTransformer(log),
		log:      log,
		index:    make(map[string]int),
	}, nil
}

// Use adds middleware run for every matched route, preflights included
func (r *Router) Use(mwf ...mux.MiddlewareFunc) {
	r.router.Use(mwf...)
}

// SetupRoutes registers every configured route, one route per method
func (r *Router) SetupRoutes(routeConfig *config.RouteConfig) error {
	for _, route := range routeConfig.Routes {
		if err := r.setupRoute(route); err != nil {
			return fmt.Errorf("failed to setup route %s: %w", route.Path, err)
		}
	}
	return nil
}

func (r *Router) setupRoute(route config.Route) error {
	var handler http.Handler
	switch {
	case route.Upstream != "":
		h, err := r.proxy.Handler(route)
		if err != nil {
			return err
		}
		handler = h
	case route.Response != nil:
		handler = handlers.NewStaticHandler(route.Response)
	default:
		return fmt.Errorf("route has neither upstream nor response")
	}
	handler = r.headers.Transform(handler, route.Headers)

	for _, method := range route.Methods {
		if err := r.Handle(method, route.Path, handler, route.Cors); err != nil {
			return err
		}
	}
	return nil
}

// Handle registers handler for method and path with the route's CORS
// setting. The first CORS-enabled route on a path also gets an OPTIONS
// route answering preflights, unless the path already has a user OPTIONS
// route. Routes sharing a path must share their CORS options.
func (r *Router) Handle(method, path string, handler http.Handler, setting config.CorsSetting) error {
	if r.frozen {
		return ErrRouterFrozen
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return fmt.Errorf("route %s: method is required", path)
	}
	if _, exists := r.index[routeKey(method, path)]; exists {
		return &DuplicateRouteError{Method: method, Path: path}
	}

	policy, err := cors.Compile(r.defaults, setting)
	if err != nil {
		return fmt.Errorf("route %s %s: %w", method, path, err)
	}

	group, created, err := r.registry.Register(method, path, policy)
	if err != nil {
		var conflict *cors.ConflictError
		if errors.As(err, &conflict) {
			r.metrics.IncrementConflict(path)
			r.log.Error("Conflicting CORS options",
				logger.String("method", method),
				logger.String("path", path),
				logger.String("policy", policy.String()),
			)
		}
		return err
	}

	var source cors.PolicySource = policy.WithMethods(method)
	if method == http.MethodOptions && group != nil {
		source = group
	}
	r.add(method, path, handler, source, false)

	_, hasOptions := r.index[routeKey(http.MethodOptions, path)]
	if created && !hasOptions {
		r.add(http.MethodOptions, path, http.HandlerFunc(handlers.PreflightHandler), group, true)
	}
	return nil
}

func (r *Router) add(method, path string, handler http.Handler, source cors.PolicySource, synthetic bool) {
	r.router.Handle(path, r.cors.CORS(source, handler)).Methods(method)
	r.index[routeKey(method, path)] = len(r.entries)
	r.entries = append(r.entries, routeEntry{
		method:    method,
		path:      path,
		synthetic: synthetic,
		source:    source,
	})

	if synthetic {
		r.log.Info("Registered preflight route",
			logger.String("path", path),
		)
		return
	}
	r.log.Info("Registered route",
		logger.String("method", method),
		logger.String("path", path),
		logger.Bool("cors", source.Effective().Enabled()),
	)
}

// Table lists every registered route in registration order with its
// current effective policy
func (r *Router) Table() []RouteEntry {
	out := make([]RouteEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, RouteEntry{
			Method:    e.method,
			Path:      e.path,
			Synthetic: e.synthetic,
			Policy:    e.source.Effective(),
		})
	}
	return out
}

// Handler freezes the route table and returns the dispatching handler
func (r *Router) Handler() http.Handler {
	if !r.frozen {
		for _, g := range r.registry.Groups() {
			r.log.Info("CORS preflight methods",
				logger.String("path", g.Path()),
				logger.Strings("methods", g.Methods()),
			)
		}
	}
	r.frozen = true
	return r.router
}

func routeKey(method, path string) string {
	return method + " " + cors.NormalizePath(path)
}

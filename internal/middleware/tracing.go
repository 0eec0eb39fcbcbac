package middleware

import (
	"context"
	"net/http"

	"cors-gateway/internal/config"
	"cors-gateway/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.16.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cors-gateway"

// TracingMiddleware opens one server span per request
type TracingMiddleware struct {
	config      *config.TracingConfig
	log         logger.Logger
	tracer      trace.Tracer
	tp          *sdktrace.TracerProvider
	initialized bool
}

// NewTracingMiddleware creates a new tracing middleware exporting to Jaeger
func NewTracingMiddleware(config *config.TracingConfig, log logger.Logger) *TracingMiddleware {
	tm := &TracingMiddleware{
		config: config,
		log:    log,
	}

	if config.Enabled {
		if err := tm.initialize(); err != nil {
			log.Error("Failed to initialize tracing", logger.Error(err))
		}
	}

	return tm
}

// NewTracingMiddlewareWithProvider uses an existing tracer provider instead
// of building a Jaeger pipeline
func NewTracingMiddlewareWithProvider(config *config.TracingConfig, log logger.Logger, tp *sdktrace.TracerProvider) *TracingMiddleware {
	return &TracingMiddleware{
		config:      config,
		log:         log,
		tracer:      tp.Tracer(tracerName),
		tp:          tp,
		initialized: config.Enabled,
	}
}

func (t *TracingMiddleware) initialize() error {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.config.Endpoint)))
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(t.config.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.tracer = tp.Tracer(tracerName)
	t.tp = tp
	t.initialized = true

	t.log.Info("Tracing initialized",
		logger.String("provider", t.config.Provider),
		logger.String("endpoint", t.config.Endpoint),
		logger.String("service", t.config.ServiceName),
		logger.Any("sample_rate", t.config.SampleRate),
	)

	return nil
}

// Tracing starts a span named after the matched route template. It is meant
// to run as mux middleware so that the route is known.
func (t *TracingMiddleware) Tracing(next http.Handler) http.Handler {
	if !t.config.Enabled || !t.initialized {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeTemplate(r)
		ctx, span := t.tracer.Start(ctx, r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("http.origin", r.Header.Get("Origin")),
		)

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", recorder.statusCode))
		if recorder.statusCode >= http.StatusInternalServerError {
			span.SetAttributes(attribute.Bool("error", true))
		}
	})
}

// Shutdown flushes and stops the tracer provider
func (t *TracingMiddleware) Shutdown(ctx context.Context) error {
	if t.initialized && t.tp != nil {
		return t.tp.Shutdown(ctx)
	}
	return nil
}

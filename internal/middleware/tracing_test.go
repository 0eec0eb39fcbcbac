package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cors-gateway/internal/config"
	"cors-gateway/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// mockTracingLogger for testing
type mockTracingLogger struct{}

func (m *mockTracingLogger) Debug(msg string, fields ...logger.Field)  {}
func (m *mockTracingLogger) Info(msg string, fields ...logger.Field)   {}
func (m *mockTracingLogger) Warn(msg string, fields ...logger.Field)   {}
func (m *mockTracingLogger) Error(msg string, fields ...logger.Field)  {}
func (m *mockTracingLogger) Fatal(msg string, fields ...logger.Field)  {}
func (m *mockTracingLogger) With(fields ...logger.Field) logger.Logger { return m }

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func newRecordingTracer(t *testing.T) (*TracingMiddleware, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := &config.TracingConfig{Enabled: true, ServiceName: "test-service", SampleRate: 1}
	return NewTracingMiddlewareWithProvider(cfg, &mockTracingLogger{}, tp), sr
}

func TestNewTracingMiddleware_Disabled(t *testing.T) {
	cfg := &config.TracingConfig{Enabled: false}
	log := &mockTracingLogger{}

	m := NewTracingMiddleware(cfg, log)

	assert.NotNil(t, m)
	assert.Equal(t, cfg, m.config)
	assert.Equal(t, log, m.log)
	assert.False(t, m.initialized)
}

func TestTracingMiddleware_Tracing_Disabled(t *testing.T) {
	m := NewTracingMiddleware(&config.TracingConfig{Enabled: false}, &mockTracingLogger{})

	called := false
	handler := m.Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("OK"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/api/test", nil))

	assert.True(t, called)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestTracingMiddleware_Tracing_NotInitialized(t *testing.T) {
	m := &TracingMiddleware{
		config: &config.TracingConfig{Enabled: true},
		log:    &mockTracingLogger{},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := m.Tracing(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTracingMiddleware_SpanPerRoute(t *testing.T) {
	m, sr := newRecordingTracer(t)

	router := mux.NewRouter()
	router.Use(m.Tracing)
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/items/7", nil)
	req.Header.Set("Origin", "http://app.example.com")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/{id}", spans[0].Name())

	attrs := spanAttributes(spans[0])
	assert.Equal(t, "/items/{id}", attrs["http.route"].AsString())
	assert.Equal(t, "http://app.example.com", attrs["http.origin"].AsString())
	assert.Equal(t, int64(500), attrs["http.status_code"].AsInt64())
	assert.True(t, attrs["error"].AsBool())
}

func TestTracingMiddleware_CORSAttributes(t *testing.T) {
	m, sr := newRecordingTracer(t)
	policy := compilePolicy(t, config.CorsEnabled())
	corsMW := NewCORSMiddleware(&mockCORSLogger{}, nil)

	router := mux.NewRouter()
	router.Use(m.Tracing)
	router.Handle("/cors", corsMW.CORS(policy, okHandler(""))).Methods(http.MethodOptions)

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/cors", nil)
	req.Header.Set("Origin", "http://app.example.com")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "reflected", attrs["cors.origin_decision"].AsString())
	assert.Equal(t, "http://app.example.com", attrs["cors.allow_origin"].AsString())
	assert.True(t, attrs["cors.preflight"].AsBool())
	assert.Equal(t, int64(200), attrs["http.status_code"].AsInt64())
}

func TestTracingMiddleware_Shutdown(t *testing.T) {
	log := &mockTracingLogger{}

	disabled := NewTracingMiddleware(&config.TracingConfig{Enabled: false}, log)
	assert.NoError(t, disabled.Shutdown(context.Background()))

	noProvider := &TracingMiddleware{config: &config.TracingConfig{Enabled: true}, log: log, initialized: true}
	assert.NoError(t, noProvider.Shutdown(context.Background()))

	withProvider, _ := newRecordingTracer(t)
	assert.NoError(t, withProvider.Shutdown(context.Background()))
}

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cors-gateway/internal/config"
)

const allMethods = "GET,HEAD,POST,PUT,PATCH,DELETE,OPTIONS"

func mustCompile(t *testing.T, defaults config.CorsSetting) *Policy {
	t.Helper()
	p, err := Compile(defaults, config.CorsSetting{})
	require.NoError(t, err)
	return p
}

func newRequest(method, origin string) *http.Request {
	r := httptest.NewRequest(method, "http://gateway.local/", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestDecorate_Disabled(t *testing.T) {
	h := http.Header{}
	out := Decorate(Disabled, newRequest(http.MethodGet, "http://x.example.com"), h)

	assert.False(t, out.Applied)
	assert.Empty(t, h)
}

func TestDecorate_Origins(t *testing.T) {
	twoOrigins := []string{"http://test.example.com", "http://www.example.com"}
	withWildcard := append(append([]string{}, twoOrigins...), "http://*.a.com")

	tests := []struct {
		name        string
		cfg         config.CorsConfig
		origin      string
		handlerVary string
		allowOrigin string
		vary        string
	}{
		{
			name:        "unmatched origin exposes the list",
			cfg:         config.CorsConfig{Origin: twoOrigins},
			origin:      "http://x.example.com",
			allowOrigin: "http://test.example.com http://www.example.com",
			vary:        "origin",
		},
		{
			name:   "empty list sets nothing",
			cfg:    config.CorsConfig{Origin: []string{}},
			origin: "http://x.example.com",
		},
		{
			name:   "no origin without exposure",
			cfg:    config.CorsConfig{Origin: twoOrigins, IsOriginExposed: boolPtr(false)},
			origin: "",
			vary:   "origin",
		},
		{
			name:   "hidden when no match",
			cfg:    config.CorsConfig{Origin: twoOrigins, IsOriginExposed: boolPtr(false)},
			origin: "http://x.example.com",
			vary:   "origin",
		},
		{
			name:        "matching origin",
			cfg:         config.CorsConfig{Origin: withWildcard},
			origin:      "http://www.example.com",
			handlerVary: "x-test",
			allowOrigin: "http://www.example.com",
			vary:        "x-test,origin",
		},
		{
			name:        "star reflects when matching",
			cfg:         config.CorsConfig{Origin: []string{"*"}},
			origin:      "http://www.example.com",
			handlerVary: "x-test",
			allowOrigin: "http://www.example.com",
			vary:        "x-test,origin",
		},
		{
			name:        "star when matching disabled",
			cfg:         config.CorsConfig{Origin: []string{"*"}, MatchOrigin: boolPtr(false)},
			origin:      "http://www.example.com",
			handlerVary: "x-test",
			allowOrigin: "*",
			vary:        "x-test",
		},
		{
			name:        "matching without exposing the list",
			cfg:         config.CorsConfig{Origin: twoOrigins, IsOriginExposed: boolPtr(false)},
			origin:      "http://www.example.com",
			handlerVary: "x-test",
			allowOrigin: "http://www.example.com",
			vary:        "x-test,origin",
		},
		{
			name:        "wildcard subdomain",
			cfg:         config.CorsConfig{Origin: withWildcard},
			origin:      "http://www.a.com",
			handlerVary: "x-test",
			allowOrigin: "http://www.a.com",
			vary:        "x-test,origin",
		},
		{
			name: "first of several wildcards",
			cfg: config.CorsConfig{Origin: []string{
				"http://test.example.com", "http://www.example.com", "http://*.b.com", "http://*.a.com",
			}},
			origin:      "http://www.a.com",
			handlerVary: "x-test",
			allowOrigin: "http://www.a.com",
			vary:        "x-test,origin",
		},
		{
			name:        "all origins when matching disabled",
			cfg:         config.CorsConfig{Origin: twoOrigins, MatchOrigin: boolPtr(false)},
			origin:      "http://www.a.com",
			handlerVary: "x-test",
			allowOrigin: "http://test.example.com http://www.example.com",
			vary:        "x-test",
		},
		{
			name:        "star without origin header",
			cfg:         config.CorsConfig{},
			origin:      "",
			allowOrigin: "*",
			vary:        "origin",
		},
		{
			name:        "vary token not duplicated",
			cfg:         config.CorsConfig{Origin: twoOrigins},
			origin:      "http://www.example.com",
			handlerVary: "Origin",
			allowOrigin: "http://www.example.com",
			vary:        "Origin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustCompile(t, config.CorsPartial(tt.cfg))
			h := http.Header{}
			if tt.handlerVary != "" {
				h.Set("Vary", tt.handlerVary)
			}

			out := Decorate(p, newRequest(http.MethodGet, tt.origin), h)

			assert.True(t, out.Applied)
			assert.Equal(t, tt.allowOrigin, out.AllowOrigin)
			assert.Equal(t, tt.allowOrigin, h.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.vary, h.Get("Vary"))
			assert.Equal(t, allMethods, h.Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestDecorate_Credentials(t *testing.T) {
	p := mustCompile(t, config.CorsPartial(config.CorsConfig{Credentials: boolPtr(true)}))
	h := http.Header{}

	Decorate(p, newRequest(http.MethodGet, ""), h)

	assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
}

func TestDecorate_NoCredentialsWhenOriginHidden(t *testing.T) {
	p := mustCompile(t, config.CorsPartial(config.CorsConfig{
		Origin:          []string{"http://a.com"},
		IsOriginExposed: boolPtr(false),
		Credentials:     boolPtr(true),
	}))
	h := http.Header{}

	Decorate(p, newRequest(http.MethodGet, "http://b.com"), h)

	assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
}

func TestDecorate_OverrideModes(t *testing.T) {
	twoOrigins := []string{"http://test.example.com", "http://www.example.com"}

	tests := []struct {
		name   string
		cfg    config.CorsConfig
		header string
		preset string
		want   string
		origin string
	}{
		{
			name:   "replace overwrites handler origin",
			cfg:    config.CorsConfig{Origin: twoOrigins},
			header: "Access-Control-Allow-Origin",
			preset: "something",
			origin: "http://x.example.com",
			want:   "http://test.example.com http://www.example.com",
		},
		{
			name:   "nothing computed keeps handler origin",
			cfg:    config.CorsConfig{Origin: []string{}},
			header: "Access-Control-Allow-Origin",
			preset: "something",
			origin: "http://x.example.com",
			want:   "something",
		},
		{
			name:   "preserve keeps handler origin",
			cfg:    config.CorsConfig{Override: overridePtr(config.OverridePreserve)},
			header: "Access-Control-Allow-Origin",
			preset: "something",
			origin: "http://x.example.com",
			want:   "something",
		},
		{
			name:   "preserve fills missing header",
			cfg:    config.CorsConfig{Override: overridePtr(config.OverridePreserve)},
			header: "Access-Control-Allow-Origin",
			origin: "http://x.example.com",
			want:   "http://x.example.com",
		},
		{
			name:   "merge appends to handler methods",
			cfg:    config.CorsConfig{AdditionalMethods: []string{"xyz"}, Override: overridePtr(config.OverrideMerge)},
			header: "Access-Control-Allow-Methods",
			preset: "something",
			want:   "something,GET,HEAD,POST,PUT,PATCH,DELETE,OPTIONS,xyz",
		},
		{
			name:   "merge without handler value",
			cfg:    config.CorsConfig{AdditionalMethods: []string{"xyz"}, Override: overridePtr(config.OverrideMerge)},
			header: "Access-Control-Allow-Methods",
			want:   "GET,HEAD,POST,PUT,PATCH,DELETE,OPTIONS,xyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustCompile(t, config.CorsPartial(tt.cfg))
			h := http.Header{}
			if tt.preset != "" {
				h.Set(tt.header, tt.preset)
			}

			Decorate(p, newRequest(http.MethodGet, tt.origin), h)

			assert.Equal(t, tt.want, h.Get(tt.header))
		})
	}
}

func TestDecorate_MultiValuedHandlerHeader(t *testing.T) {
	t.Run("merge keeps every handler value", func(t *testing.T) {
		p := mustCompile(t, config.CorsPartial(config.CorsConfig{Override: overridePtr(config.OverrideMerge)}))
		h := http.Header{}
		h.Add("Access-Control-Allow-Methods", "A")
		h.Add("Access-Control-Allow-Methods", "B")

		Decorate(p, newRequest(http.MethodGet, "http://app.example.com"), h)

		assert.Equal(t, []string{"A,B," + allMethods}, h.Values("Access-Control-Allow-Methods"))
	})

	t.Run("preserve leaves every handler value", func(t *testing.T) {
		p := mustCompile(t, config.CorsPartial(config.CorsConfig{Override: overridePtr(config.OverridePreserve)}))
		h := http.Header{}
		h.Add("Access-Control-Expose-Headers", "X-One")
		h.Add("Access-Control-Expose-Headers", "X-Two")

		Decorate(p, newRequest(http.MethodGet, "http://app.example.com"), h)

		assert.Equal(t, []string{"X-One", "X-Two"}, h.Values("Access-Control-Expose-Headers"))
	})
}

func TestDecorate_Preflight(t *testing.T) {
	p := mustCompile(t, config.CorsPartial(config.CorsConfig{AdditionalHeaders: []string{"X-Requested-With"}}))
	h := http.Header{}

	out := Decorate(p, newRequest(http.MethodOptions, "http://app.example.com"), h)

	assert.True(t, out.Preflight)
	assert.Equal(t, "http://app.example.com", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, allMethods, h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization,Content-Type,If-None-Match,X-Requested-With", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
}

func TestDecorate_PreflightOnlyHeadersOnOptions(t *testing.T) {
	p := mustCompile(t, config.CorsEnabled())
	h := http.Header{}

	out := Decorate(p, newRequest(http.MethodGet, "http://app.example.com"), h)

	assert.False(t, out.Preflight)
	assert.Empty(t, h.Get("Access-Control-Allow-Headers"))
	assert.Empty(t, h.Get("Access-Control-Max-Age"))
}

func TestDecorate_PreflightWithoutMaxAge(t *testing.T) {
	p := mustCompile(t, config.CorsPartial(config.CorsConfig{MaxAge: intPtr(0), Headers: []string{}}))
	h := http.Header{}

	Decorate(p, newRequest(http.MethodOptions, "http://app.example.com"), h)

	_, hasMaxAge := h["Access-Control-Max-Age"]
	_, hasHeaders := h["Access-Control-Allow-Headers"]
	assert.False(t, hasMaxAge)
	assert.False(t, hasHeaders)
}

func TestDecorate_ExposedHeaders(t *testing.T) {
	p := mustCompile(t, config.CorsEnabled())
	h := http.Header{}
	Decorate(p, newRequest(http.MethodGet, ""), h)
	assert.Equal(t, "WWW-Authenticate,Server-Authorization", h.Get("Access-Control-Expose-Headers"))

	p = mustCompile(t, config.CorsPartial(config.CorsConfig{ExposedHeaders: []string{}}))
	h = http.Header{}
	Decorate(p, newRequest(http.MethodGet, ""), h)
	_, ok := h["Access-Control-Expose-Headers"]
	assert.False(t, ok)
	assert.NotEmpty(t, h.Get("Access-Control-Allow-Methods"))
}

func TestDecorate_RouteMethods(t *testing.T) {
	p := mustCompile(t, config.CorsEnabled()).WithMethods("GET", "PURGE")
	h := http.Header{}

	Decorate(p, newRequest(http.MethodGet, ""), h)

	assert.Equal(t, allMethods+",PURGE", h.Get("Access-Control-Allow-Methods"))
}

func TestOverrideModeString(t *testing.T) {
	assert.Equal(t, "replace", OverrideReplace.String())
	assert.Equal(t, "preserve", OverridePreserve.String())
	assert.Equal(t, "merge", OverrideMerge.String())
	assert.Equal(t, "unknown", OverrideMode(9).String())
}

package cors

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"cors-gateway/internal/config"
)

// options is a fully populated configuration, the intermediate form between
// the partial YAML configuration and a Policy.
type options struct {
	origin                   []string
	isOriginExposed          bool
	matchOrigin              bool
	credentials              bool
	headers                  []string
	additionalHeaders        []string
	methods                  []string
	additionalMethods        []string
	exposedHeaders           []string
	additionalExposedHeaders []string
	maxAge                   int
	override                 OverrideMode
}

// builtin holds the defaults used when CORS is turned on without options
var builtin = options{
	origin:          []string{"*"},
	isOriginExposed: true,
	matchOrigin:     true,
	headers:         []string{"Authorization", "Content-Type", "If-None-Match"},
	methods: []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	},
	exposedHeaders: []string{"WWW-Authenticate", "Server-Authorization"},
	maxAge:         86400,
	override:       OverrideReplace,
}

// merge lays c over o. Lists replace, except additional_* lists which append
// to what o already carries.
func (o options) merge(c *config.CorsConfig) options {
	if c == nil {
		return o
	}
	if c.Origin != nil {
		o.origin = c.Origin
	}
	if c.IsOriginExposed != nil {
		o.isOriginExposed = *c.IsOriginExposed
	}
	if c.MatchOrigin != nil {
		o.matchOrigin = *c.MatchOrigin
	}
	if c.Credentials != nil {
		o.credentials = *c.Credentials
	}
	if c.Headers != nil {
		o.headers = c.Headers
	}
	if c.Methods != nil {
		o.methods = c.Methods
	}
	if c.ExposedHeaders != nil {
		o.exposedHeaders = c.ExposedHeaders
	}
	o.additionalHeaders = concat(o.additionalHeaders, c.AdditionalHeaders)
	o.additionalMethods = concat(o.additionalMethods, c.AdditionalMethods)
	o.additionalExposedHeaders = concat(o.additionalExposedHeaders, c.AdditionalExposedHeaders)
	if c.MaxAge != nil {
		o.maxAge = *c.MaxAge
	}
	if c.Override != nil {
		o.override = overrideMode(*c.Override)
	}
	return o
}

func (o options) policy() *Policy {
	origins := appendUnique(nil, trimAll(o.origin), sameToken)
	return &Policy{
		enabled: true,
		origins: origins,
		matcher: NewOriginMatcher(origins, o.matchOrigin),
		methods: appendUnique(
			appendUnique(nil, splitTokens(o.methods, o.additionalMethods), sameToken),
			[]string{http.MethodOptions}, sameToken),
		headers:         appendUnique(nil, splitTokens(o.headers, o.additionalHeaders), strings.EqualFold),
		exposedHeaders:  appendUnique(nil, splitTokens(o.exposedHeaders, o.additionalExposedHeaders), strings.EqualFold),
		credentials:     o.credentials,
		maxAge:          o.maxAge,
		matchOrigin:     o.matchOrigin,
		isOriginExposed: o.isOriginExposed,
		override:        o.override,
	}
}

// resolveDefaults turns the connection-wide setting into options. The
// boolean reports whether CORS is on by default.
func resolveDefaults(defaults config.CorsSetting) (options, bool, error) {
	if !defaults.Set || !defaults.Enabled {
		return builtin, false, nil
	}
	if err := Validate(defaults.Options); err != nil {
		return options{}, false, fmt.Errorf("connection defaults: %w", err)
	}
	return builtin.merge(defaults.Options), true, nil
}

// CompileDefaults compiles the connection-wide policy on its own
func CompileDefaults(defaults config.CorsSetting) (*Policy, error) {
	base, enabled, err := resolveDefaults(defaults)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return Disabled, nil
	}
	return base.policy(), nil
}

// Compile resolves the effective policy of a route from the connection-wide
// defaults and the route's own setting. The result does not yet include the
// route's verbs; see Policy.WithMethods.
func Compile(defaults, route config.CorsSetting) (*Policy, error) {
	base, enabled, err := resolveDefaults(defaults)
	if err != nil {
		return nil, err
	}
	switch {
	case !route.Set:
		if !enabled {
			return Disabled, nil
		}
		return base.policy(), nil
	case !route.Enabled:
		return Disabled, nil
	case route.Options == nil:
		return base.policy(), nil
	}
	if err := Validate(route.Options); err != nil {
		return nil, err
	}
	return base.merge(route.Options).policy(), nil
}

func overrideMode(o config.Override) OverrideMode {
	switch o {
	case config.OverridePreserve:
		return OverridePreserve
	case config.OverrideMerge:
		return OverrideMerge
	default:
		return OverrideReplace
	}
}

func concat(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	return append(slices.Clone(a), b...)
}

func trimAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitTokens flattens comma-separated entries of the given lists
func splitTokens(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, entry := range list {
			for _, tok := range strings.Split(entry, ",") {
				if tok = strings.TrimSpace(tok); tok != "" {
					out = append(out, tok)
				}
			}
		}
	}
	return out
}

package cors

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	headerOrigin              = "Origin"
	headerVary                = "Vary"
	headerAllowOrigin         = "Access-Control-Allow-Origin"
	headerAllowCredentials    = "Access-Control-Allow-Credentials"
	headerAllowMethods        = "Access-Control-Allow-Methods"
	headerAllowHeaders        = "Access-Control-Allow-Headers"
	headerMaxAge              = "Access-Control-Max-Age"
	headerExposeHeaders       = "Access-Control-Expose-Headers"
	varyOriginToken           = "origin"
	allowCredentialsHeaderVal = "true"
)

// Outcome describes what Decorate did to a response
type Outcome struct {
	// Applied is false when the policy is disabled and nothing was touched
	Applied bool
	// Preflight is true for OPTIONS requests
	Preflight bool
	// Origin is the raw matcher decision
	Origin MatchResult
	// AllowOrigin is the allow-origin value computed, empty when hidden
	AllowOrigin string
}

// Decorate applies p to the response headers h of request r. It must run
// once, after the handler set its own headers and before the status line is
// written.
func Decorate(p *Policy, r *http.Request, h http.Header) Outcome {
	if !p.Enabled() {
		return Outcome{}
	}

	out := Outcome{
		Applied:   true,
		Preflight: r.Method == http.MethodOptions,
		Origin:    p.matcher.Match(r.Header.Get(headerOrigin)),
	}

	if value, ok := p.allowOrigin(out.Origin); ok {
		out.AllowOrigin = value
		p.override.apply(h, headerAllowOrigin, value)
		if p.credentials {
			p.override.apply(h, headerAllowCredentials, allowCredentialsHeaderVal)
		}
	}
	if p.matchOrigin && len(p.origins) > 0 {
		appendVary(h, varyOriginToken)
	}

	p.override.apply(h, headerAllowMethods, strings.Join(p.methods, ","))

	if out.Preflight {
		if len(p.headers) > 0 {
			p.override.apply(h, headerAllowHeaders, strings.Join(p.headers, ","))
		}
		if p.maxAge > 0 {
			p.override.apply(h, headerMaxAge, strconv.Itoa(p.maxAge))
		}
	}

	if len(p.exposedHeaders) > 0 {
		p.override.apply(h, headerExposeHeaders, strings.Join(p.exposedHeaders, ","))
	}

	return out
}

// allowOrigin turns a match result into the allow-origin value, if any
func (p *Policy) allowOrigin(res MatchResult) (string, bool) {
	switch res.Kind {
	case MatchAny, MatchReflected, MatchList:
		return res.Value, res.Value != ""
	case MatchNoOrigin:
		if p.matcher.AllowsAny() {
			return anyOrigin, true
		}
	}
	if p.isOriginExposed && p.matcher.Joined() != "" {
		return p.matcher.Joined(), true
	}
	return "", false
}

// appendVary adds token to the Vary header unless it is already listed
func appendVary(h http.Header, token string) {
	values := h.Values(headerVary)
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return
			}
		}
	}
	if len(values) == 0 {
		h.Set(headerVary, token)
		return
	}
	h.Set(headerVary, strings.Join(values, ",")+","+token)
}

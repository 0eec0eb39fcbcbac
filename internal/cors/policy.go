package cors

import (
	"net/http"
	"slices"
	"strings"
)

// OverrideMode decides what happens to a CORS header the handler already set
type OverrideMode uint8

const (
	// OverrideReplace always writes the computed value
	OverrideReplace OverrideMode = iota
	// OverridePreserve keeps a value set by the handler
	OverridePreserve
	// OverrideMerge appends the computed value to the handler's, comma separated
	OverrideMerge
)

func (m OverrideMode) String() string {
	switch m {
	case OverrideReplace:
		return "replace"
	case OverridePreserve:
		return "preserve"
	case OverrideMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// apply writes value to header name according to the mode. A handler value
// spread over several header lines counts as one comma separated list.
func (m OverrideMode) apply(h http.Header, name, value string) {
	existing := strings.Join(h.Values(name), ",")
	switch {
	case existing == "":
		h.Set(name, value)
	case m == OverridePreserve:
	case m == OverrideMerge:
		h.Set(name, existing+","+value)
	default:
		h.Set(name, value)
	}
}

// Policy is the effective CORS policy of one route. A Policy never changes
// once compiled; methods that derive a new policy return a copy.
type Policy struct {
	enabled         bool
	origins         []string
	matcher         *OriginMatcher
	methods         []string
	headers         []string
	exposedHeaders  []string
	credentials     bool
	maxAge          int
	matchOrigin     bool
	isOriginExposed bool
	override        OverrideMode
}

// Disabled is the policy of routes without CORS
var Disabled = &Policy{}

// PolicySource yields the policy to apply to a response. Route policies
// return themselves; preflight routes return their path group's current
// preflight policy.
type PolicySource interface {
	Effective() *Policy
}

// Effective returns p
func (p *Policy) Effective() *Policy {
	return p
}

func (p *Policy) Enabled() bool { return p != nil && p.enabled }
func (p *Policy) Origins() []string { return slices.Clone(p.origins) }
func (p *Policy) Methods() []string { return slices.Clone(p.methods) }
func (p *Policy) Headers() []string { return slices.Clone(p.headers) }
func (p *Policy) ExposedHeaders() []string { return slices.Clone(p.exposedHeaders) }
func (p *Policy) Credentials() bool { return p.credentials }
func (p *Policy) MaxAge() int { return p.maxAge }
func (p *Policy) MatchOrigin() bool { return p.matchOrigin }
func (p *Policy) IsOriginExposed() bool { return p.isOriginExposed }
func (p *Policy) Override() OverrideMode { return p.override }

// WithMethods returns a copy of p whose methods also include the given
// verbs, appended in order when missing. Disabled policies are returned as is.
func (p *Policy) WithMethods(methods ...string) *Policy {
	if !p.Enabled() {
		return p
	}
	q := *p
	q.methods = appendUnique(slices.Clone(p.methods), methods, sameToken)
	return &q
}

// Equal reports whether p and q resolve to the same CORS behavior
func (p *Policy) Equal(q *Policy) bool {
	if !p.Enabled() || !q.Enabled() {
		return p.Enabled() == q.Enabled()
	}
	return slices.Equal(p.origins, q.origins) &&
		slices.Equal(p.methods, q.methods) &&
		slices.Equal(p.headers, q.headers) &&
		slices.Equal(p.exposedHeaders, q.exposedHeaders) &&
		p.credentials == q.credentials &&
		p.maxAge == q.maxAge &&
		p.matchOrigin == q.matchOrigin &&
		p.isOriginExposed == q.isOriginExposed &&
		p.override == q.override
}

// String summarizes the policy for logs
func (p *Policy) String() string {
	if !p.Enabled() {
		return "cors(disabled)"
	}
	var b strings.Builder
	b.WriteString("cors(origins=[")
	b.WriteString(strings.Join(p.origins, " "))
	b.WriteString("] methods=")
	b.WriteString(strings.Join(p.methods, ","))
	b.WriteString(" override=")
	b.WriteString(p.override.String())
	b.WriteString(")")
	return b.String()
}

func sameToken(a, b string) bool { return a == b }

// appendUnique appends the items of add missing from dst, in order
func appendUnique(dst, add []string, eq func(a, b string) bool) []string {
	for _, s := range add {
		if !slices.ContainsFunc(dst, func(d string) bool { return eq(d, s) }) {
			dst = append(dst, s)
		}
	}
	return dst
}

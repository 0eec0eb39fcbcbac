package cors

import "strings"

const (
	anyOrigin      = "*"
	schemeHostSep  = "://"
	wildcardPrefix = schemeHostSep + anyOrigin + "."
)

// MatchKind classifies the outcome of matching a request origin
type MatchKind uint8

const (
	// MatchNoOrigin means the request carried no Origin header
	MatchNoOrigin MatchKind = iota
	// MatchAny means the allow-list contains "*" and matching is off
	MatchAny
	// MatchReflected means the request origin is echoed back
	MatchReflected
	// MatchList means the whole allow-list is exposed without matching
	MatchList
	// MatchRejected means no pattern matched the request origin
	MatchRejected
)

func (k MatchKind) String() string {
	switch k {
	case MatchNoOrigin:
		return "none"
	case MatchAny:
		return "any"
	case MatchReflected:
		return "reflected"
	case MatchList:
		return "list"
	case MatchRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MatchResult is what an OriginMatcher decided for one request origin.
// Value is empty for MatchNoOrigin and MatchRejected.
type MatchResult struct {
	Kind  MatchKind
	Value string
}

// originPattern is either a literal origin or one with a single wildcard
// label, split around the "*".
type originPattern struct {
	raw      string
	wildcard bool
	prefix   string
	suffix   string
}

func parseOriginPattern(raw string) originPattern {
	i := strings.Index(raw, anyOrigin)
	if i < 0 || raw == anyOrigin {
		return originPattern{raw: raw}
	}
	return originPattern{
		raw:      raw,
		wildcard: true,
		prefix:   raw[:i],
		suffix:   raw[i+1:],
	}
}

func (p originPattern) match(origin string) bool {
	if !p.wildcard {
		return p.raw == origin
	}
	if len(origin) <= len(p.prefix)+len(p.suffix) {
		return false
	}
	if !strings.HasPrefix(origin, p.prefix) || !strings.HasSuffix(origin, p.suffix) {
		return false
	}
	label := origin[len(p.prefix) : len(origin)-len(p.suffix)]
	return !strings.ContainsAny(label, "/:")
}

// OriginMatcher tests request origins against a compiled allow-list.
// It is immutable and safe for concurrent use.
type OriginMatcher struct {
	patterns    []originPattern
	any         bool
	joined      string
	matchOrigin bool
}

// NewOriginMatcher compiles origins, keeping their order
func NewOriginMatcher(origins []string, matchOrigin bool) *OriginMatcher {
	m := &OriginMatcher{
		patterns:    make([]originPattern, 0, len(origins)),
		joined:      strings.Join(origins, " "),
		matchOrigin: matchOrigin,
	}
	for _, o := range origins {
		if o == anyOrigin {
			m.any = true
		}
		m.patterns = append(m.patterns, parseOriginPattern(o))
	}
	return m
}

// Match decides what to do with requestOrigin; an empty string means the
// request had no Origin header.
func (m *OriginMatcher) Match(requestOrigin string) MatchResult {
	if requestOrigin == "" {
		return MatchResult{Kind: MatchNoOrigin}
	}
	if m.any {
		if !m.matchOrigin {
			return MatchResult{Kind: MatchAny, Value: anyOrigin}
		}
		return MatchResult{Kind: MatchReflected, Value: requestOrigin}
	}
	if !m.matchOrigin {
		return MatchResult{Kind: MatchList, Value: m.joined}
	}
	for _, p := range m.patterns {
		if p.match(requestOrigin) {
			return MatchResult{Kind: MatchReflected, Value: requestOrigin}
		}
	}
	return MatchResult{Kind: MatchRejected}
}

// AllowsAny reports whether the allow-list contains "*"
func (m *OriginMatcher) AllowsAny() bool {
	return m.any
}

// Joined is the allow-list rendered as one space-separated string
func (m *OriginMatcher) Joined() string {
	return m.joined
}

// validOriginPattern accepts "*", literals without a wildcard, and patterns
// whose only "*" is the first host label right after the scheme.
func validOriginPattern(p string) bool {
	if p == "" {
		return false
	}
	if p == anyOrigin {
		return true
	}
	switch strings.Count(p, anyOrigin) {
	case 0:
		return true
	case 1:
		i := strings.Index(p, wildcardPrefix)
		if i <= 0 {
			return false
		}
		rest := p[i+len(wildcardPrefix):]
		return rest != "" && !strings.HasPrefix(rest, ".")
	default:
		return false
	}
}

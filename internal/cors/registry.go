package cors

import (
	"slices"
	"strings"
)

// PathGroup gathers the CORS-enabled routes sharing one path. All of them
// share the canonical policy; the preflight policy additionally lists every
// sibling's method.
type PathGroup struct {
	path      string
	policy    *Policy
	methods   []string
	preflight *Policy
}

// Path is the path of the first route registered in the group
func (g *PathGroup) Path() string { return g.path }

// Policy is the canonical policy every sibling must match
func (g *PathGroup) Policy() *Policy { return g.policy }

// Methods lists the sibling methods in registration order
func (g *PathGroup) Methods() []string { return slices.Clone(g.methods) }

// Effective returns the policy served by the synthetic OPTIONS route
func (g *PathGroup) Effective() *Policy { return g.preflight }

func (g *PathGroup) add(method string) {
	g.methods = appendUnique(g.methods, []string{method}, sameToken)
	g.preflight = g.policy.WithMethods(g.methods...)
}

// Registry enforces that routes on the same path agree on their CORS policy.
// It is filled during route registration and only read afterwards; it is not
// safe for concurrent registration.
type Registry struct {
	groups map[string]*PathGroup
	order  []string
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*PathGroup)}
}

// Register records a route. Disabled policies are ignored and yield a nil
// group. created reports whether this route opened a new group, in which
// case the caller owes the path a preflight route.
func (r *Registry) Register(method, path string, p *Policy) (group *PathGroup, created bool, err error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	method = strings.ToUpper(method)
	key := NormalizePath(path)

	g, ok := r.groups[key]
	if !ok {
		g = &PathGroup{path: path, policy: p}
		r.groups[key] = g
		r.order = append(r.order, key)
		created = true
	} else if !g.policy.Equal(p) {
		return nil, false, &ConflictError{Method: method, Path: path}
	}
	g.add(method)
	return g, created, nil
}

// lookup finds the group of path
func (r *Registry) lookup(path string) (*PathGroup, bool) {
	g, ok := r.groups[NormalizePath(path)]
	return g, ok
}

// Groups returns every group in creation order
func (r *Registry) Groups() []*PathGroup {
	out := make([]*PathGroup, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.groups[key])
	}
	return out
}

// NormalizePath erases variable names from a gorilla/mux path template so
// that /users/{id} and /users/{uid} land in the same group. Variable
// patterns are kept: /users/{id:[0-9]+} stays distinct from /users/{id}.
func NormalizePath(path string) string {
	if !strings.Contains(path, "{") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	depth := 0
	skipping := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '{':
			depth++
			if depth == 1 {
				b.WriteByte(c)
				skipping = true
				continue
			}
		case c == '}':
			depth--
			if depth == 0 {
				skipping = false
			}
		case c == ':' && depth == 1 && skipping:
			skipping = false
		}
		if !skipping {
			b.WriteByte(c)
		}
	}
	return b.String()
}

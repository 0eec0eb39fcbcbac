/*
Package cors resolves per-route CORS policies and decorates responses with
them.

Policies are compiled once, at route registration, from the connection-wide
defaults and the route's own setting:

	defaults := config.CorsPartial(config.CorsConfig{Origin: []string{"http://*.example.com"}})
	policy, err := cors.Compile(defaults, route.Cors)

A Registry keyed by path makes sure that every CORS-enabled route on a path
resolves to the same policy, since they all share one synthetic OPTIONS route.
Registering a sibling with a different policy fails with a *ConflictError.

At request time, Decorate computes the Access-Control-* and Vary headers from
the policy, the request's Origin and the headers the handler already set.
How computed values interact with those headers is governed by the policy's
OverrideMode.

Compiled policies are immutable, so Decorate may run concurrently. Compile and
Registry are meant for the single-threaded setup phase.
*/
package cors

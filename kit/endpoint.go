// Package kit holds the small transport-agnostic plumbing shared by the
// bridge surfaces: an endpoint abstraction with middleware chaining,
// request-scoped context values, and the MCP tool adapter.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Both the HTTP and
// MCP surfaces decode into a typed request and delegate to an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
